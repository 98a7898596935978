// Package mosaic holds the message types exchanged with the MOSAIC
// websocket visualizer server.
//
// Every inbound frame is a JSON object carrying one top-level tag whose
// value is the payload. The only outbound frame is the literal Pull.
package mosaic

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Pull asks the server for everything queued since the last pull.
const Pull = "pull"

// Message tags, in the order they are checked.
const (
	TypeVehicleUpdates              = "VehicleUpdates"
	TypeAgentUpdates                = "AgentUpdates"
	TypeUnitsRemove                 = "UnitsRemove"
	TypeVehicleRegistration         = "VehicleRegistration"
	TypeAgentRegistration           = "AgentRegistration"
	TypeV2xMessageTransmission      = "V2xMessageTransmission"
	TypeV2xMessageReception         = "V2xMessageReception"
	TypeRsuRegistration             = "RsuRegistration"
	TypeTrafficLightRegistration    = "TrafficLightRegistration"
	TypeChargingStationRegistration = "ChargingStationRegistration"

	// TypeVehiclesRemove is sent by older servers instead of UnitsRemove.
	TypeVehiclesRemove = "VehiclesRemove"
)

// Priority lists the recognized tags in decode order.
var Priority = []string{
	TypeVehicleUpdates,
	TypeAgentUpdates,
	TypeUnitsRemove,
	TypeVehiclesRemove,
	TypeVehicleRegistration,
	TypeAgentRegistration,
	TypeV2xMessageTransmission,
	TypeV2xMessageReception,
	TypeRsuRegistration,
	TypeTrafficLightRegistration,
	TypeChargingStationRegistration,
}

// ErrNoTag is returned by Decode when the frame carries no recognized tag.
var ErrNoTag = errors.New("no recognized message tag")

// Envelope is one decoded frame: the winning tag and its raw payload.
type Envelope struct {
	Type    string
	Payload json.RawMessage
}

// Decode parses a frame and picks the first recognized tag in priority
// order. Tags with a JSON null value count as absent.
func Decode(data []byte) (Envelope, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Envelope{}, fmt.Errorf("decode frame: %w", err)
	}
	for _, tag := range Priority {
		raw, ok := fields[tag]
		if !ok || string(raw) == "null" {
			continue
		}
		if tag == TypeVehiclesRemove {
			tag = TypeUnitsRemove
		}
		return Envelope{Type: tag, Payload: raw}, nil
	}
	return Envelope{}, ErrNoTag
}

// Encode wraps a payload under its tag the way the server does.
func Encode(tag string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", tag, err)
	}
	return json.Marshal(map[string]json.RawMessage{tag: raw})
}

// GeoPoint is a WGS84 position in degrees.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// VehicleData is one entry of a VehicleUpdates payload.
type VehicleData struct {
	Time     int64     `json:"time,omitempty"`
	Name     string    `json:"name"`
	Position *GeoPoint `json:"position"`
}

// VehicleUpdates carries the latest positions of moving vehicles.
type VehicleUpdates struct {
	Time    int64         `json:"time,omitempty"`
	Updated []VehicleData `json:"updated"`
}

// AgentData is one entry of an AgentUpdates payload.
type AgentData struct {
	Time     int64     `json:"time,omitempty"`
	Name     string    `json:"name"`
	State    string    `json:"state"`
	Position *GeoPoint `json:"position"`
}

// AgentUpdates carries the latest positions and states of agents.
type AgentUpdates struct {
	Time    int64       `json:"time,omitempty"`
	Updated []AgentData `json:"updated"`
}

// UnitsRemove lists the names of units that left the simulation.
type UnitsRemove []string

// VehicleType describes the type a vehicle was mapped to.
type VehicleType struct {
	Name         string `json:"name,omitempty"`
	VehicleClass string `json:"vehicleClass"`
}

// VehicleMapping is the mapping of a newly spawned vehicle.
type VehicleMapping struct {
	Name         string      `json:"name"`
	Group        string      `json:"group,omitempty"`
	Applications []string    `json:"applications"`
	VehicleType  VehicleType `json:"vehicleType"`
}

// VehicleRegistration announces a vehicle.
type VehicleRegistration struct {
	Time           int64          `json:"time,omitempty"`
	VehicleMapping VehicleMapping `json:"vehicleMapping"`
}

// Equipped reports whether the vehicle runs at least one application.
func (r VehicleRegistration) Equipped() bool {
	return len(r.VehicleMapping.Applications) > 0
}

// AgentMapping is the mapping of a newly spawned agent.
type AgentMapping struct {
	Name  string `json:"name"`
	Group string `json:"group,omitempty"`
}

// AgentRegistration announces an agent at its origin.
type AgentRegistration struct {
	Time         int64        `json:"time,omitempty"`
	AgentMapping AgentMapping `json:"agentMapping"`
	Origin       GeoPoint     `json:"origin"`
}

// StationMapping is the mapping shared by all stationary units.
type StationMapping struct {
	Name         string   `json:"name"`
	Group        string   `json:"group,omitempty"`
	Position     GeoPoint `json:"position"`
	Applications []string `json:"applications"`
}

// Equipped reports whether the station runs at least one application.
func (m StationMapping) Equipped() bool {
	return len(m.Applications) > 0
}

// RsuRegistration announces a roadside unit.
type RsuRegistration struct {
	Time       int64          `json:"time,omitempty"`
	RsuMapping StationMapping `json:"rsuMapping"`
}

// TrafficLightRegistration announces a traffic light group.
type TrafficLightRegistration struct {
	Time                int64          `json:"time,omitempty"`
	TrafficLightMapping StationMapping `json:"trafficLightMapping"`
}

// ChargingStationRegistration announces a charging station.
type ChargingStationRegistration struct {
	Time                   int64          `json:"time,omitempty"`
	ChargingStationMapping StationMapping `json:"chargingStationMapping"`
}

// Source identifies the sender of a V2X message.
type Source struct {
	SourceName string `json:"sourceName"`
}

// Routing is the routing header of a V2X message.
type Routing struct {
	Source Source `json:"source"`
}

// V2xMessage is the part of a V2X message the visualizer reads.
type V2xMessage struct {
	ID      int     `json:"id,omitempty"`
	Routing Routing `json:"routing"`
}

// V2xMessageTransmission reports a unit sending a message.
type V2xMessageTransmission struct {
	Time    int64      `json:"time,omitempty"`
	Message V2xMessage `json:"message"`
}

// SourceName is the name of the sending unit.
func (t V2xMessageTransmission) SourceName() string {
	return t.Message.Routing.Source.SourceName
}

// V2xMessageReception reports a unit receiving a message.
type V2xMessageReception struct {
	Time         int64  `json:"time,omitempty"`
	ReceiverName string `json:"receiverName"`
	MessageID    int    `json:"messageId,omitempty"`
}
