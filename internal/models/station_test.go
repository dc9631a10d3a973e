package models

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validStationInput() StationInput {
	return StationInput{
		Name:       "Downtown",
		Address:    "1 Main St",
		City:       "Austin",
		State:      "TX",
		PostalCode: "78701",
		Ports:      []PortInput{{ConnectorType: "CCS", MaxPowerKw: 50, PricePerHour: 5}},
	}
}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
	return verr.Fields
}

func TestStationInput_LengthLimits(t *testing.T) {
	require.NoError(t, validStationInput().Validate())

	in := validStationInput()
	in.Name = strings.Repeat("n", MaxNameLen+1)
	in.PostalCode = strings.Repeat("9", MaxPostalCodeLen+1)
	in.Ports[0].ConnectorType = strings.Repeat("c", MaxConnectorTypeLen+1)

	fields := fieldErrors(t, in.Validate())
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "postalCode")
	assert.Contains(t, fields, "ports[0].connectorType")
	assert.NotContains(t, fields, "city")

	// 边界值和首尾空白不计入
	in = validStationInput()
	in.City = "  " + strings.Repeat("ü", MaxCityLen) + "  "
	assert.NoError(t, in.Validate())
}

func TestStationPatch_LengthLimits(t *testing.T) {
	long := strings.Repeat("s", MaxStateLen+1)
	fields := fieldErrors(t, StationPatch{State: &long}.Validate())
	assert.Contains(t, fields, "state")

	ok := strings.Repeat("a", MaxAddressLen)
	assert.NoError(t, StationPatch{Address: &ok}.Validate())
}

func TestPortInput_LengthLimit(t *testing.T) {
	in := PortInput{ConnectorType: strings.Repeat("c", MaxConnectorTypeLen+1), MaxPowerKw: 50, PricePerHour: 5}
	fields := fieldErrors(t, in.Validate())
	assert.Contains(t, fields, "connectorType")
}
