// Package handlers turns decoded MOSAIC events into registry mutations and
// recorder calls. Every handler returns the names of the units whose
// markers must be re-rendered.
package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/OCAP2/visualizer/internal/dispatcher"
	"github.com/OCAP2/visualizer/internal/geo"
	"github.com/OCAP2/visualizer/internal/registry"
	"github.com/OCAP2/visualizer/internal/storage"
	"github.com/OCAP2/visualizer/internal/unit"
	"github.com/OCAP2/visualizer/pkg/core"
	"github.com/OCAP2/visualizer/pkg/mosaic"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Registry *registry.Registry
	Backend  storage.Backend
	Logger   *slog.Logger
}

// Service provides the handler methods for every MOSAIC event type
type Service struct {
	deps Dependencies
}

// NewService creates a new handler service. A nil backend records nothing.
func NewService(deps Dependencies) *Service {
	if deps.Backend == nil {
		deps.Backend = storage.Noop{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{deps: deps}
}

// RegisterHandlers registers one handler per inbound tag.
func (s *Service) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(mosaic.TypeVehicleUpdates, s.HandleVehicleUpdates)
	d.Register(mosaic.TypeAgentUpdates, s.HandleAgentUpdates)
	d.Register(mosaic.TypeUnitsRemove, s.HandleUnitsRemove, dispatcher.Logged())
	d.Register(mosaic.TypeVehicleRegistration, s.HandleVehicleRegistration, dispatcher.Logged())
	d.Register(mosaic.TypeAgentRegistration, s.HandleAgentRegistration, dispatcher.Logged())
	d.Register(mosaic.TypeV2xMessageTransmission, s.HandleV2xMessageTransmission)
	d.Register(mosaic.TypeV2xMessageReception, s.HandleV2xMessageReception)
	d.Register(mosaic.TypeRsuRegistration, s.HandleRsuRegistration, dispatcher.Logged())
	d.Register(mosaic.TypeTrafficLightRegistration, s.HandleTrafficLightRegistration, dispatcher.Logged())
	d.Register(mosaic.TypeChargingStationRegistration, s.HandleChargingStationRegistration, dispatcher.Logged())
}

func decode[T any](e dispatcher.Event) (T, error) {
	var payload T
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return payload, fmt.Errorf("failed to decode %s: %w", e.Type, err)
	}
	return payload, nil
}

// record reports recorder failures without failing the event.
func (s *Service) record(what string, err error) {
	if err != nil {
		s.deps.Logger.Debug("Recorder rejected "+what, "error", err)
	}
}

// validPosition logs and rejects coordinates outside the WGS84 range.
func (s *Service) validPosition(name string, p mosaic.GeoPoint) bool {
	if err := geo.Validate(p.Latitude, p.Longitude); err != nil {
		s.deps.Logger.Warn("Skipping invalid position", "unit", name,
			"latitude", p.Latitude, "longitude", p.Longitude, "error", err)
		return false
	}
	return true
}

// simTime picks the entry time, falling back to the message time.
func simTime(entry, message int64) int64 {
	if entry != 0 {
		return entry
	}
	return message
}

// HandleVehicleUpdates moves vehicles and renders all of them.
func (s *Service) HandleVehicleUpdates(e dispatcher.Event) ([]string, error) {
	msg, err := decode[mosaic.VehicleUpdates](e)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(msg.Updated))
	samples := make([]core.PositionSample, 0, len(msg.Updated))
	for _, v := range msg.Updated {
		names = append(names, v.Name)
		if v.Position == nil || !s.validPosition(v.Name, *v.Position) {
			continue
		}
		if err := s.deps.Registry.SetVehiclePosition(v.Name, v.Position.Latitude, v.Position.Longitude); err != nil {
			continue
		}
		samples = append(samples, core.PositionSample{
			Name:      v.Name,
			Time:      e.Timestamp,
			SimTime:   simTime(v.Time, msg.Time),
			Latitude:  v.Position.Latitude,
			Longitude: v.Position.Longitude,
		})
	}
	if len(samples) > 0 {
		s.record("vehicle positions", s.deps.Backend.RecordPositions(samples))
	}
	return names, nil
}

// HandleAgentUpdates moves agents, replaces their state and renders all of them.
func (s *Service) HandleAgentUpdates(e dispatcher.Event) ([]string, error) {
	msg, err := decode[mosaic.AgentUpdates](e)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(msg.Updated))
	samples := make([]core.PositionSample, 0, len(msg.Updated))
	for _, a := range msg.Updated {
		names = append(names, a.Name)
		if a.Position == nil || !s.validPosition(a.Name, *a.Position) {
			continue
		}
		if err := s.deps.Registry.SetAgentPosition(a.Name, a.State, a.Position.Latitude, a.Position.Longitude); err != nil {
			continue
		}
		samples = append(samples, core.PositionSample{
			Name:      a.Name,
			Time:      e.Timestamp,
			SimTime:   simTime(a.Time, msg.Time),
			Latitude:  a.Position.Latitude,
			Longitude: a.Position.Longitude,
			State:     a.State,
		})
	}
	if len(samples) > 0 {
		s.record("agent positions", s.deps.Backend.RecordPositions(samples))
	}
	return names, nil
}

// HandleUnitsRemove removes units. Nothing is rendered.
func (s *Service) HandleUnitsRemove(e dispatcher.Event) ([]string, error) {
	names, err := decode[mosaic.UnitsRemove](e)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		if s.deps.Registry.RemoveUnit(name) {
			s.record("unit removal", s.deps.Backend.RemoveUnit(name, e.Timestamp))
		}
	}
	return nil, nil
}

// HandleVehicleRegistration adds a vehicle. It is rendered with its first position.
func (s *Service) HandleVehicleRegistration(e dispatcher.Event) ([]string, error) {
	msg, err := decode[mosaic.VehicleRegistration](e)
	if err != nil {
		return nil, err
	}
	m := msg.VehicleMapping
	if s.deps.Registry.AddVehicle(m.Name, m.VehicleType.VehicleClass, msg.Equipped()) {
		s.record("vehicle", s.deps.Backend.AddUnit(&core.Unit{
			Name:         m.Name,
			Category:     unit.CategoryVehicle.String(),
			Class:        m.VehicleType.VehicleClass,
			Equipped:     msg.Equipped(),
			RegisteredAt: e.Timestamp,
		}))
	}
	return nil, nil
}

// HandleAgentRegistration adds an agent at its origin. It is rendered with its first update.
func (s *Service) HandleAgentRegistration(e dispatcher.Event) ([]string, error) {
	msg, err := decode[mosaic.AgentRegistration](e)
	if err != nil {
		return nil, err
	}
	name := msg.AgentMapping.Name
	if !s.validPosition(name, msg.Origin) {
		return nil, nil
	}
	if s.deps.Registry.AddAgent(name, msg.Origin.Latitude, msg.Origin.Longitude) {
		s.record("agent", s.deps.Backend.AddUnit(&core.Unit{
			Name:         name,
			Category:     unit.CategoryAgent.String(),
			Latitude:     msg.Origin.Latitude,
			Longitude:    msg.Origin.Longitude,
			HasPosition:  true,
			RegisteredAt: e.Timestamp,
		}))
	}
	return nil, nil
}

// HandleV2xMessageTransmission flags the sender.
func (s *Service) HandleV2xMessageTransmission(e dispatcher.Event) ([]string, error) {
	msg, err := decode[mosaic.V2xMessageTransmission](e)
	if err != nil {
		return nil, err
	}
	name := msg.SourceName()
	return s.v2x(e, name, unit.FlagSending, core.V2xSent, msg.Time, msg.Message.ID), nil
}

// HandleV2xMessageReception flags the receiver.
func (s *Service) HandleV2xMessageReception(e dispatcher.Event) ([]string, error) {
	msg, err := decode[mosaic.V2xMessageReception](e)
	if err != nil {
		return nil, err
	}
	return s.v2x(e, msg.ReceiverName, unit.FlagReceiving, core.V2xReceived, msg.Time, msg.MessageID), nil
}

func (s *Service) v2x(e dispatcher.Event, name, flag, direction string, simTime int64, messageID int) []string {
	s.deps.Registry.SetUnitState(name, flag, e.Timestamp)
	if s.deps.Registry.Lookup(name).OK {
		s.record("v2x event", s.deps.Backend.RecordV2xEvent(&core.V2xEvent{
			Name:      name,
			Time:      e.Timestamp,
			SimTime:   simTime,
			Direction: direction,
			MessageID: messageID,
		}))
	}
	return []string{name}
}

// HandleRsuRegistration adds a roadside unit and renders it.
func (s *Service) HandleRsuRegistration(e dispatcher.Event) ([]string, error) {
	msg, err := decode[mosaic.RsuRegistration](e)
	if err != nil {
		return nil, err
	}
	m := msg.RsuMapping
	if !s.validPosition(m.Name, m.Position) {
		return nil, nil
	}
	if s.deps.Registry.AddRsu(m.Name, m.Position.Latitude, m.Position.Longitude, m.Equipped()) {
		s.recordStation(e, m, unit.CategoryRsu)
	}
	return []string{m.Name}, nil
}

// HandleTrafficLightRegistration adds an equipped traffic light and
// renders it. Traffic lights without applications are not shown.
func (s *Service) HandleTrafficLightRegistration(e dispatcher.Event) ([]string, error) {
	msg, err := decode[mosaic.TrafficLightRegistration](e)
	if err != nil {
		return nil, err
	}
	m := msg.TrafficLightMapping
	if !m.Equipped() || !s.validPosition(m.Name, m.Position) {
		return nil, nil
	}
	if s.deps.Registry.AddTrafficLight(m.Name, m.Position.Latitude, m.Position.Longitude, true) {
		s.recordStation(e, m, unit.CategoryTrafficLight)
	}
	return []string{m.Name}, nil
}

// HandleChargingStationRegistration adds a charging station and renders it.
func (s *Service) HandleChargingStationRegistration(e dispatcher.Event) ([]string, error) {
	msg, err := decode[mosaic.ChargingStationRegistration](e)
	if err != nil {
		return nil, err
	}
	m := msg.ChargingStationMapping
	if !s.validPosition(m.Name, m.Position) {
		return nil, nil
	}
	if s.deps.Registry.AddChargingStation(m.Name, m.Position.Latitude, m.Position.Longitude, m.Equipped()) {
		s.recordStation(e, m, unit.CategoryChargingStation)
	}
	return []string{m.Name}, nil
}

func (s *Service) recordStation(e dispatcher.Event, m mosaic.StationMapping, category unit.Category) {
	s.record(category.String(), s.deps.Backend.AddUnit(&core.Unit{
		Name:         m.Name,
		Category:     category.String(),
		Equipped:     m.Equipped(),
		Latitude:     m.Position.Latitude,
		Longitude:    m.Position.Longitude,
		HasPosition:  true,
		RegisteredAt: e.Timestamp,
	}))
}
