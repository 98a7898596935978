package convert

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/OCAP2/visualizer/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestCoreToSession(t *testing.T) {
	s := CoreToSession(core.Session{
		ID:        "8b1d2d7e-0000-4000-8000-000000000001",
		URL:       "ws://localhost:46587",
		StartTime: now,
		Metadata:  map[string]any{"maxRetries": 30},
	})

	assert.Equal(t, "ws://localhost:46587", s.URL)
	assert.False(t, s.EndTime.Valid)
	assert.JSONEq(t, `{"maxRetries":30}`, string(s.Metadata))

	ended := CoreToSession(core.Session{ID: "x", StartTime: now, EndTime: now.Add(time.Minute)})
	assert.True(t, ended.EndTime.Valid)
	assert.Equal(t, now.Add(time.Minute), ended.EndTime.Time)
	assert.Equal(t, "{}", string(ended.Metadata))
}

func TestCoreToUnit(t *testing.T) {
	u := CoreToUnit(core.Unit{
		Name:         "rsu_0",
		Category:     "rsu",
		Equipped:     true,
		Latitude:     52.5,
		Longitude:    13.4,
		HasPosition:  true,
		RegisteredAt: now,
	}, "session-1")

	assert.Equal(t, "session-1", u.SessionID)
	assert.Equal(t, "rsu_0", u.Name)
	xy, ok := u.Position.XY()
	require.True(t, ok)
	assert.Equal(t, 13.4, xy.X)
	assert.Equal(t, 52.5, xy.Y)

	var props map[string]any
	require.NoError(t, json.Unmarshal(u.Properties, &props))
	assert.Equal(t, true, props["equipped"])
	assert.Equal(t, "rsu", props["category"])
}

func TestCoreToUnit_NoPosition(t *testing.T) {
	u := CoreToUnit(core.Unit{Name: "veh_0", Category: "vehicle", Class: "Car"}, "s")

	assert.True(t, u.Position.IsEmpty())
	assert.Equal(t, "Car", u.Class)
}

func TestCoreToUnitPosition(t *testing.T) {
	p := CoreToUnitPosition(core.PositionSample{
		Name:      "agent_0",
		Time:      now,
		SimTime:   5_000_000_000,
		Latitude:  48.1,
		Longitude: 11.5,
		State:     "WALKING",
	}, "s")

	assert.Equal(t, "agent_0", p.UnitName)
	assert.Equal(t, int64(5_000_000_000), p.SimTime)
	assert.Equal(t, "WALKING", p.State)
	xy, ok := p.Position.XY()
	require.True(t, ok)
	assert.Equal(t, 11.5, xy.X)
}

func TestCoreToV2xEventAndRemoval(t *testing.T) {
	e := CoreToV2xEvent(core.V2xEvent{Name: "veh_0", Time: now, Direction: core.V2xSent, MessageID: 7}, "s")
	assert.Equal(t, "sent", e.Direction)
	assert.Equal(t, 7, e.MessageID)

	r := CoreToUnitRemoval(core.Removal{Name: "veh_0", Time: now}, "s")
	assert.Equal(t, "veh_0", r.UnitName)
	assert.Equal(t, now, r.Time)
}
