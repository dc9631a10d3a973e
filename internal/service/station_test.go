package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/langchou/chargehive/internal/api/identity"
	"github.com/langchou/chargehive/internal/api/upstream"
	"github.com/langchou/chargehive/internal/metrics"
	"github.com/langchou/chargehive/internal/models"
	"github.com/langchou/chargehive/internal/repository"
	"github.com/langchou/chargehive/internal/search"
	"github.com/langchou/chargehive/pkg/ws"
)

func ptr[T any](v T) *T { return &v }

type fixture struct {
	svc      *StationService
	store    *repository.MemoryStore
	identity *mockIdentity
	earnings *mockEarnings
	events   *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    repository.NewMemoryStore(),
		identity: &mockIdentity{},
		earnings: &mockEarnings{},
		events:   &recordingPublisher{},
	}
	f.svc = NewStationService(f.store, f.identity, f.earnings, f.events, zaptest.NewLogger(t), metrics.New(prometheus.NewRegistry()))
	return f
}

func (f *fixture) knownUser(id int64, name string) {
	f.identity.On("GetUser", mock.Anything, id).Return(&identity.User{ID: id, Name: name}, nil)
}

func (f *fixture) unknownUser(id int64) {
	f.identity.On("GetUser", mock.Anything, id).Return(nil, fmt.Errorf("get user %d: %w", id, upstream.ErrNotFound))
}

func stationInput(name, city string, ports ...models.PortInput) models.StationInput {
	return models.StationInput{
		Name:       name,
		Address:    "1 Main St",
		City:       city,
		State:      "TX",
		PostalCode: "78701",
		Latitude:   ptr(30.2672),
		Longitude:  ptr(-97.7431),
		Ports:      ports,
	}
}

var ccs50 = models.PortInput{ConnectorType: "CCS", MaxPowerKw: 50, PricePerHour: 5}

func (f *fixture) create(t *testing.T, ownerID int64, in models.StationInput) *models.Station {
	t.Helper()
	st, err := f.svc.CreateStation(context.Background(), ownerID, in)
	require.NoError(t, err)
	return st
}

func TestCreateStation_StartsUnapprovedWithPorts(t *testing.T) {
	f := newFixture(t)
	f.knownUser(42, "Owner")

	st := f.create(t, 42, stationInput("Tesla Supercharger Downtown", "Austin",
		ccs50,
		models.PortInput{ConnectorType: "Type2", MaxPowerKw: 22, PricePerHour: 2.5},
	))

	assert.NotZero(t, st.ID)
	assert.False(t, st.Approved)
	assert.Equal(t, int64(42), st.OwnerID)
	require.Len(t, st.Ports, 2)
	for _, p := range st.Ports {
		assert.NotZero(t, p.ID)
		assert.Equal(t, st.ID, p.StationID)
	}

	got, err := f.svc.GetStation(context.Background(), st.ID)
	require.NoError(t, err)
	assert.False(t, got.Approved)
	assert.Len(t, got.Ports, 2)

	f.identity.AssertNumberOfCalls(t, "GetUser", 1)
	assert.Equal(t, []string{ws.MsgTypeStationCreated}, f.events.types())
}

func TestCreateStation_UnknownOwnerPersistsNothing(t *testing.T) {
	f := newFixture(t)
	f.unknownUser(13)
	ctx := context.Background()

	before, err := f.svc.ListStations(ctx)
	require.NoError(t, err)

	_, err = f.svc.CreateStation(ctx, 13, stationInput("Ghost", "Austin", ccs50))
	require.ErrorIs(t, err, models.ErrOwnerNotFound)
	assert.NotErrorIs(t, err, models.ErrUpstreamUnavailable)

	after, err := f.svc.ListStations(ctx)
	require.NoError(t, err)
	assert.Len(t, after, len(before))
	assert.Empty(t, f.events.types())
	f.identity.AssertNumberOfCalls(t, "GetUser", 1)
}

func TestCreateStation_IdentityUnavailableFailsClosed(t *testing.T) {
	f := newFixture(t)
	f.identity.On("GetUser", mock.Anything, int64(42)).
		Return(nil, fmt.Errorf("get user 42: %w", upstream.ErrUnavailable))

	_, err := f.svc.CreateStation(context.Background(), 42, stationInput("A", "Austin"))
	require.ErrorIs(t, err, models.ErrOwnerNotFound)
	assert.ErrorIs(t, err, models.ErrUpstreamUnavailable)

	all, err := f.svc.ListStations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateStation_InvalidFieldsSkipIdentityCall(t *testing.T) {
	f := newFixture(t)

	in := stationInput("", "Austin", models.PortInput{ConnectorType: "CCS", MaxPowerKw: 0, PricePerHour: -1})
	_, err := f.svc.CreateStation(context.Background(), 42, in)
	require.ErrorIs(t, err, models.ErrValidation)

	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "name")
	assert.Contains(t, verr.Fields, "ports[0].maxPowerKw")
	assert.Contains(t, verr.Fields, "ports[0].pricePerHour")
	f.identity.AssertNotCalled(t, "GetUser", mock.Anything, mock.Anything)
}

func TestUpdateStation_NeverTouchesApprovalOrOwner(t *testing.T) {
	f := newFixture(t)
	f.knownUser(42, "Owner")
	ctx := context.Background()
	st := f.create(t, 42, stationInput("Old Name", "Austin"))

	_, err := f.svc.SetApprovalStatus(ctx, models.ApprovalDecision{StationID: st.ID, Approved: true})
	require.NoError(t, err)

	updated, err := f.svc.UpdateStation(ctx, st.ID, models.StationPatch{Name: ptr("New Name")})
	require.NoError(t, err)
	assert.Equal(t, "New Name", updated.Name)
	assert.Equal(t, "Austin", updated.City)
	assert.True(t, updated.Approved)
	assert.Equal(t, int64(42), updated.OwnerID)
	require.NotNil(t, updated.Latitude)
}

func TestUpdateStation_Errors(t *testing.T) {
	f := newFixture(t)
	f.knownUser(42, "Owner")
	ctx := context.Background()
	st := f.create(t, 42, stationInput("A", "Austin"))

	_, err := f.svc.UpdateStation(ctx, 999, models.StationPatch{Name: ptr("x")})
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.svc.UpdateStation(ctx, 999, models.StationPatch{})
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.svc.UpdateStation(ctx, st.ID, models.StationPatch{Name: ptr("  ")})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = f.svc.UpdateStation(ctx, st.ID, models.StationPatch{Latitude: ptr(91.0)})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestDeleteStation_RemovesPorts(t *testing.T) {
	f := newFixture(t)
	f.knownUser(42, "Owner")
	ctx := context.Background()
	st := f.create(t, 42, stationInput("A", "Austin", ccs50, ccs50))

	require.NoError(t, f.svc.DeleteStation(ctx, st.ID))

	for _, p := range st.Ports {
		_, err := f.svc.GetPortInfo(ctx, st.ID, p.ID)
		assert.ErrorIs(t, err, models.ErrNotFound)
		_, err = f.store.GetPort(ctx, p.ID)
		assert.ErrorIs(t, err, models.ErrNotFound)
	}

	assert.ErrorIs(t, f.svc.DeleteStation(ctx, st.ID), models.ErrNotFound)
	_, err := f.svc.GetStation(ctx, st.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestApprovalScenario(t *testing.T) {
	f := newFixture(t)
	f.knownUser(42, "Owner")
	ctx := context.Background()

	st := f.create(t, 42, stationInput("Plaza", "Austin"))
	assert.False(t, st.Approved)

	approved, err := f.svc.SetApprovalStatus(ctx, models.ApprovalDecision{StationID: st.ID, Approved: true})
	require.NoError(t, err)
	assert.True(t, approved.Approved)

	got, err := f.svc.GetStation(ctx, st.ID)
	require.NoError(t, err)
	assert.True(t, got.Approved)

	unapproved, err := f.svc.ListUnapproved(ctx)
	require.NoError(t, err)
	assert.NotContains(t, stationIDs(unapproved), st.ID)

	approvedList, err := f.svc.ListApproved(ctx)
	require.NoError(t, err)
	assert.Contains(t, stationIDs(approvedList), st.ID)
}

func TestSetApprovalStatus_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.knownUser(42, "Owner")
	ctx := context.Background()
	st := f.create(t, 42, stationInput("A", "Austin"))

	for i := 0; i < 2; i++ {
		got, err := f.svc.SetApprovalStatus(ctx, models.ApprovalDecision{StationID: st.ID, Approved: true, Reason: "ok"})
		require.NoError(t, err)
		assert.True(t, got.Approved)
	}
	_, err := f.svc.SetApprovalStatus(ctx, models.ApprovalDecision{StationID: st.ID, Approved: false})
	require.NoError(t, err)

	assert.Equal(t, []string{
		ws.MsgTypeStationCreated,
		ws.MsgTypeStationApprovalChanged,
		ws.MsgTypeStationApprovalChanged,
	}, f.events.types())

	_, err = f.svc.SetApprovalStatus(ctx, models.ApprovalDecision{StationID: 999, Approved: true})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestPortScenario_AddThenRemove(t *testing.T) {
	f := newFixture(t)
	f.knownUser(42, "Owner")
	ctx := context.Background()
	st := f.create(t, 42, stationInput("A", "Austin"))

	port, err := f.svc.AddPort(ctx, st.ID, ccs50)
	require.NoError(t, err)
	assert.Equal(t, st.ID, port.StationID)

	info, err := f.svc.GetPortInfo(ctx, st.ID, port.ID)
	require.NoError(t, err)
	assert.Equal(t, "CCS", info.ConnectorType)

	require.NoError(t, f.svc.RemovePort(ctx, st.ID, port.ID))

	ports, err := f.svc.ListPorts(ctx, st.ID)
	require.NoError(t, err)
	assert.Empty(t, ports)

	_, err = f.svc.GetPortInfo(ctx, st.ID, port.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAddPort_Errors(t *testing.T) {
	f := newFixture(t)
	f.knownUser(42, "Owner")
	ctx := context.Background()
	st := f.create(t, 42, stationInput("A", "Austin"))

	_, err := f.svc.AddPort(ctx, 999, ccs50)
	assert.ErrorIs(t, err, models.ErrNotFound)

	tests := []models.PortInput{
		{ConnectorType: "", MaxPowerKw: 50, PricePerHour: 5},
		{ConnectorType: "CCS", MaxPowerKw: 0, PricePerHour: 5},
		{ConnectorType: "CCS", MaxPowerKw: 50, PricePerHour: 0},
		{ConnectorType: "CCS", MaxPowerKw: -1, PricePerHour: 5},
	}
	for _, in := range tests {
		_, err := f.svc.AddPort(ctx, st.ID, in)
		assert.ErrorIs(t, err, models.ErrValidation, "%+v", in)
	}

	ports, err := f.svc.ListPorts(ctx, st.ID)
	require.NoError(t, err)
	assert.Empty(t, ports)
}

func TestRemovePort_ScopedToStation(t *testing.T) {
	f := newFixture(t)
	f.knownUser(42, "Owner")
	ctx := context.Background()
	a := f.create(t, 42, stationInput("A", "Austin", ccs50))
	b := f.create(t, 42, stationInput("B", "Austin"))

	assert.ErrorIs(t, f.svc.RemovePort(ctx, b.ID, a.Ports[0].ID), models.ErrNotFound)
	assert.ErrorIs(t, f.svc.RemovePort(ctx, 999, a.Ports[0].ID), models.ErrNotFound)

	ports, err := f.svc.ListPorts(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, ports, 1)
}

func TestUpdatePort(t *testing.T) {
	f := newFixture(t)
	f.knownUser(42, "Owner")
	ctx := context.Background()
	st := f.create(t, 42, stationInput("A", "Austin", ccs50))
	portID := st.Ports[0].ID
	change := models.PortInput{ConnectorType: "CHAdeMO", MaxPowerKw: 100, PricePerHour: 9}

	t.Run("non-owner is rejected and port is unchanged", func(t *testing.T) {
		_, err := f.svc.UpdatePort(ctx, 7, portID, change)
		require.ErrorIs(t, err, models.ErrOwnershipMismatch)

		p, err := f.svc.GetPortInfo(ctx, st.ID, portID)
		require.NoError(t, err)
		assert.Equal(t, "CCS", p.ConnectorType)
		assert.Equal(t, 50.0, p.MaxPowerKw)
		assert.Equal(t, 5.0, p.PricePerHour)
	})

	t.Run("missing port", func(t *testing.T) {
		_, err := f.svc.UpdatePort(ctx, 42, 999, change)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("invalid fields", func(t *testing.T) {
		_, err := f.svc.UpdatePort(ctx, 42, portID, models.PortInput{ConnectorType: "CCS", MaxPowerKw: 10, PricePerHour: 0})
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("owner update returns parent station", func(t *testing.T) {
		updated, err := f.svc.UpdatePort(ctx, 42, portID, change)
		require.NoError(t, err)
		assert.Equal(t, st.ID, updated.ID)
		require.Len(t, updated.Ports, 1)
		assert.Equal(t, "CHAdeMO", updated.Ports[0].ConnectorType)
		assert.Equal(t, 100.0, updated.Ports[0].MaxPowerKw)
		assert.Equal(t, 9.0, updated.Ports[0].PricePerHour)
	})
}

func TestListPorts_MissingStation(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ListPorts(context.Background(), 1)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestGetPortInfo_PortFromAnotherStation(t *testing.T) {
	f := newFixture(t)
	f.knownUser(42, "Owner")
	ctx := context.Background()
	a := f.create(t, 42, stationInput("A", "Austin", ccs50))
	b := f.create(t, 42, stationInput("B", "Austin", ccs50))

	_, err := f.svc.GetPortInfo(ctx, b.ID, a.Ports[0].ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	p, err := f.svc.GetPortInfo(ctx, b.ID, b.Ports[0].ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, p.StationID)
}

func TestListByOwner(t *testing.T) {
	f := newFixture(t)
	f.knownUser(1, "One")
	f.knownUser(2, "Two")
	ctx := context.Background()
	f.create(t, 1, stationInput("A", "Austin"))
	f.create(t, 2, stationInput("B", "Austin"))
	f.create(t, 1, stationInput("C", "Austin"))

	owned, err := f.svc.ListByOwner(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, owned, 2)

	none, err := f.svc.ListByOwner(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSearchStations(t *testing.T) {
	f := newFixture(t)
	f.knownUser(42, "Owner")
	ctx := context.Background()
	tesla := f.create(t, 42, stationInput("Tesla Supercharger Downtown", "Austin", ccs50))
	plaza := f.create(t, 42, stationInput("ChargePoint Plaza", "Dallas"))

	got, err := f.svc.SearchStations(ctx, search.Criteria{Query: ptr("tesla")})
	require.NoError(t, err)
	assert.Equal(t, []int64{tesla.ID}, stationIDs(got))

	got, err = f.svc.SearchStations(ctx, search.Criteria{City: ptr("DALLAS")})
	require.NoError(t, err)
	assert.Equal(t, []int64{plaza.ID}, stationIDs(got))

	got, err = f.svc.SearchStations(ctx, search.Criteria{Available: ptr(true)})
	require.NoError(t, err)
	assert.Equal(t, []int64{tesla.ID}, stationIDs(got))

	got, err = f.svc.SearchStations(ctx, search.Criteria{Available: ptr(false)})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestFindNearby(t *testing.T) {
	f := newFixture(t)
	f.knownUser(42, "Owner")
	ctx := context.Background()

	at := func(name string, lat, lng *float64) models.StationInput {
		in := stationInput(name, "Austin")
		in.Latitude, in.Longitude = lat, lng
		return in
	}
	near := f.create(t, 42, at("near", ptr(30.01), ptr(-97.0)))
	nearer := f.create(t, 42, at("nearer", ptr(30.001), ptr(-97.0)))
	hidden := f.create(t, 42, at("unapproved", ptr(30.0), ptr(-97.0)))
	nowhere := f.create(t, 42, at("no coords", nil, nil))
	far := f.create(t, 42, at("far", ptr(31.0), ptr(-97.0)))

	for _, st := range []*models.Station{near, nearer, nowhere, far} {
		_, err := f.svc.SetApprovalStatus(ctx, models.ApprovalDecision{StationID: st.ID, Approved: true})
		require.NoError(t, err)
	}

	got, err := f.svc.FindNearby(ctx, 30.0, -97.0, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{nearer.ID, near.ID}, stationIDs(got))
	assert.NotContains(t, stationIDs(got), hidden.ID)
	assert.NotContains(t, stationIDs(got), nowhere.ID)

	_, err = f.svc.FindNearby(ctx, 95, 0, 5)
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = f.svc.FindNearby(ctx, 0, 0, -1)
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = f.svc.FindNearby(ctx, math.NaN(), -97.0, 5)
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = f.svc.FindNearby(ctx, 30.0, math.NaN(), 5)
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = f.svc.FindNearby(ctx, 30.0, -97.0, math.Inf(1))
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestGetAvailability(t *testing.T) {
	f := newFixture(t)

	slots, err := f.svc.GetAvailability(1, "2025-03-01")
	require.NoError(t, err)
	require.Len(t, slots, 24)
	assert.Equal(t, "2025-03-01T08:00", slots[0])
	assert.Equal(t, "2025-03-01T08:30", slots[1])
	assert.Equal(t, "2025-03-01T19:30", slots[len(slots)-1])
	assert.NotContains(t, slots, "2025-03-01T20:00")

	again, err := f.svc.GetAvailability(999, "2025-03-01")
	require.NoError(t, err)
	assert.Equal(t, slots, again)

	_, err = f.svc.GetAvailability(1, "03/01/2025")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestGetTotalEarnings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.earnings.On("GetEarnings", mock.Anything, int64(1)).
		Return(&models.Earnings{StationID: 1, TotalEarnings: 99.5, TotalCompletedBookings: 4}, nil)
	f.earnings.On("GetEarnings", mock.Anything, int64(2)).
		Return(nil, fmt.Errorf("get earnings: %w", upstream.ErrUnavailable))
	f.earnings.On("GetEarnings", mock.Anything, int64(3)).
		Return(nil, fmt.Errorf("get earnings: %w", upstream.ErrNotFound))

	got := f.svc.GetTotalEarnings(ctx, 1)
	require.NotNil(t, got)
	assert.Equal(t, 99.5, got.TotalEarnings)

	assert.Nil(t, f.svc.GetTotalEarnings(ctx, 2))
	assert.Nil(t, f.svc.GetTotalEarnings(ctx, 3))
}

func TestStationExistsAndSummary(t *testing.T) {
	f := newFixture(t)
	f.knownUser(42, "Owner")
	ctx := context.Background()
	a := f.create(t, 42, stationInput("A", "Austin"))
	f.create(t, 42, stationInput("B", "Austin"))
	_, err := f.svc.SetApprovalStatus(ctx, models.ApprovalDecision{StationID: a.ID, Approved: true})
	require.NoError(t, err)

	ok, err := f.svc.StationExists(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.svc.StationExists(ctx, 999)
	require.NoError(t, err)
	assert.False(t, ok)

	sum, err := f.svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, &ws.InitData{TotalStations: 2, ApprovedStations: 1, UnapprovedStations: 1}, sum)
}

func stationIDs(list []*models.Station) []int64 {
	out := make([]int64, 0, len(list))
	for _, st := range list {
		out = append(out, st.ID)
	}
	return out
}
