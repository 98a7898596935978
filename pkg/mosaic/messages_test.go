package mosaic

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_SingleTag(t *testing.T) {
	env, err := Decode([]byte(`{"V2xMessageReception":{"receiverName":"veh_3","time":100}}`))
	require.NoError(t, err)
	assert.Equal(t, TypeV2xMessageReception, env.Type)

	var rec V2xMessageReception
	require.NoError(t, json.Unmarshal(env.Payload, &rec))
	assert.Equal(t, "veh_3", rec.ReceiverName)
	assert.Equal(t, int64(100), rec.Time)
}

func TestDecode_Priority(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  string
	}{
		{
			name:  "vehicle updates beat registrations",
			frame: `{"RsuRegistration":{},"VehicleUpdates":{"updated":[]}}`,
			want:  TypeVehicleUpdates,
		},
		{
			name:  "units remove beats vehicle registration",
			frame: `{"VehicleRegistration":{},"UnitsRemove":["a"]}`,
			want:  TypeUnitsRemove,
		},
		{
			name:  "transmission beats reception",
			frame: `{"V2xMessageReception":{},"V2xMessageTransmission":{}}`,
			want:  TypeV2xMessageTransmission,
		},
		{
			name:  "null tag is skipped",
			frame: `{"AgentUpdates":null,"ChargingStationRegistration":{}}`,
			want:  TypeChargingStationRegistration,
		},
		{
			name:  "legacy remove alias",
			frame: `{"VehiclesRemove":["veh_0"]}`,
			want:  TypeUnitsRemove,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Decode([]byte(tt.frame))
			require.NoError(t, err)
			assert.Equal(t, tt.want, env.Type)
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode([]byte(`{"ChargingStationUpdate":{}}`))
	assert.ErrorIs(t, err, ErrNoTag)

	_, err = Decode([]byte(`{}`))
	assert.ErrorIs(t, err, ErrNoTag)

	_, err = Decode([]byte(`{not json`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoTag)

	_, err = Decode([]byte(`["VehicleUpdates"]`))
	require.Error(t, err)
}

func TestEncode(t *testing.T) {
	data, err := Encode(TypeUnitsRemove, UnitsRemove{"veh_0", "agent_1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"UnitsRemove":["veh_0","agent_1"]}`, string(data))

	env, err := Decode(data)
	require.NoError(t, err)
	var names UnitsRemove
	require.NoError(t, json.Unmarshal(env.Payload, &names))
	assert.Equal(t, UnitsRemove{"veh_0", "agent_1"}, names)
}

func TestRegistrationPayloads(t *testing.T) {
	var veh VehicleRegistration
	require.NoError(t, json.Unmarshal([]byte(`{
		"time": 1000000000,
		"vehicleMapping": {
			"name": "veh_0",
			"applications": ["org.example.App"],
			"vehicleType": {"name": "Car", "vehicleClass": "ElectricVehicle"}
		}
	}`), &veh))
	assert.Equal(t, "veh_0", veh.VehicleMapping.Name)
	assert.Equal(t, "ElectricVehicle", veh.VehicleMapping.VehicleType.VehicleClass)
	assert.True(t, veh.Equipped())

	var tl TrafficLightRegistration
	require.NoError(t, json.Unmarshal([]byte(`{
		"trafficLightMapping": {
			"name": "tl_0",
			"position": {"latitude": 52.5, "longitude": 13.4},
			"applications": []
		}
	}`), &tl))
	assert.Equal(t, 52.5, tl.TrafficLightMapping.Position.Latitude)
	assert.False(t, tl.TrafficLightMapping.Equipped())

	var tx V2xMessageTransmission
	require.NoError(t, json.Unmarshal([]byte(`{"message":{"id":7,"routing":{"source":{"sourceName":"rsu_0"}}}}`), &tx))
	assert.Equal(t, "rsu_0", tx.SourceName())

	var agent AgentRegistration
	require.NoError(t, json.Unmarshal([]byte(`{"agentMapping":{"name":"agent_0"},"origin":{"latitude":1.5,"longitude":2.5}}`), &agent))
	assert.Equal(t, "agent_0", agent.AgentMapping.Name)
	assert.Equal(t, GeoPoint{Latitude: 1.5, Longitude: 2.5}, agent.Origin)
}
