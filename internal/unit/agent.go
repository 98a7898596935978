package unit

import "time"

// Agent movement states as reported in AgentUpdates.
const (
	AgentWaiting           = "WAITING"
	AgentWalking           = "WALKING"
	AgentInSharedVehicle   = "IN_SHARED_VEHICLE"
	AgentInPrivateVehicle  = "IN_PRIVATE_VEHICLE"
	AgentInPtVehicle       = "IN_PT_VEHICLE"
	AgentInPtVehicleAtStop = "IN_PT_VEHICLE_AT_STOP"

	agentDefaultIcon = "agent-waiting"
)

var agentIcons = map[string]string{
	AgentWaiting:           "agent-waiting",
	AgentWalking:           "agent-walking",
	AgentInSharedVehicle:   "agent-in-shared-vehicle",
	AgentInPrivateVehicle:  "agent-in-private-vehicle",
	AgentInPtVehicle:       "agent-in-pt-vehicle",
	AgentInPtVehicleAtStop: "agent-in-pt-vehicle-at-stop",
}

// Agent is a pedestrian agent. Agents carry no transient flags; their
// icon follows the movement state alone.
type Agent struct {
	base
	state string
}

var _ Unit = (*Agent)(nil)

// NewAgent creates a waiting agent.
func NewAgent(name string) *Agent {
	return &Agent{
		base:  newBase(name, CategoryAgent, "agent"),
		state: AgentWaiting,
	}
}

// State returns the current movement state.
func (a *Agent) State() string { return a.state }

// SetAgentState replaces the movement state. Values outside the known set
// are kept as they are and render with the default icon.
func (a *Agent) SetAgentState(state string) {
	a.state = state
}

func (a *Agent) SetFlag(string, time.Time) {}

func (a *Agent) Flag(string) bool { return false }

func (a *Agent) Style() string {
	if icon, ok := agentIcons[a.state]; ok {
		return icon
	}
	return agentDefaultIcon
}

func (a *Agent) Render(time.Time) {
	a.place()
	a.marker.SetStyle(a.Style())
	a.marker.Set("agentState", a.state)
}
