package service

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/langchou/chargehive/internal/api/identity"
	"github.com/langchou/chargehive/internal/models"
)

type mockIdentity struct {
	mock.Mock
}

func (m *mockIdentity) GetUser(ctx context.Context, userID int64) (*identity.User, error) {
	args := m.Called(ctx, userID)
	user, _ := args.Get(0).(*identity.User)
	return user, args.Error(1)
}

type mockEarnings struct {
	mock.Mock
}

func (m *mockEarnings) GetEarnings(ctx context.Context, stationID int64) (*models.Earnings, error) {
	args := m.Called(ctx, stationID)
	earnings, _ := args.Get(0).(*models.Earnings)
	return earnings, args.Error(1)
}

type recordedEvent struct {
	Type    string
	Payload interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) Publish(eventType string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{Type: eventType, Payload: payload})
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
