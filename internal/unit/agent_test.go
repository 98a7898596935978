package unit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgent_DefaultIsWaiting(t *testing.T) {
	a := NewAgent("A1")
	a.SetPosition(48.1, 8.1)

	a.Render(t0)

	assert.Equal(t, "agent-waiting", a.Marker().Icon())
	_, _, ok := a.Marker().Position()
	require.True(t, ok)
}

func TestAgent_StateIcons(t *testing.T) {
	tests := []struct {
		state string
		want  string
	}{
		{AgentWaiting, "agent-waiting"},
		{AgentWalking, "agent-walking"},
		{AgentInSharedVehicle, "agent-in-shared-vehicle"},
		{AgentInPrivateVehicle, "agent-in-private-vehicle"},
		{AgentInPtVehicle, "agent-in-pt-vehicle"},
		{AgentInPtVehicleAtStop, "agent-in-pt-vehicle-at-stop"},
		{"TELEPORTING", "agent-waiting"},
		{"", "agent-waiting"},
	}

	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			a := NewAgent("A1")
			a.SetAgentState(tt.state)
			a.Render(t0)
			assert.Equal(t, tt.want, a.Marker().Icon())
		})
	}
}

func TestAgent_StateIsReplaced(t *testing.T) {
	a := NewAgent("A1")

	a.SetAgentState(AgentWalking)
	a.SetAgentState("bogus")

	assert.Equal(t, "bogus", a.State())
	assert.Equal(t, "agent-waiting", a.Style())
}

func TestAgent_IgnoresFlags(t *testing.T) {
	a := NewAgent("A1")

	a.SetFlag(FlagSending, t0)

	assert.False(t, a.Flag(FlagSending))
}
