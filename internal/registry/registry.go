// Package registry is the map controller: it owns every unit view-model,
// keeps their markers in the render layer and re-renders them on demand.
//
// A Registry is not safe for concurrent use. It is owned by the client's
// event loop; other goroutines reach it through client.Do.
package registry

import (
	"errors"
	"log/slog"
	"time"

	"github.com/OCAP2/visualizer/internal/layer"
	"github.com/OCAP2/visualizer/internal/unit"
	geom "github.com/peterstace/simplefeatures/geom"
)

// ErrUnknownUnit is logged when an update references a unit that was never registered.
var ErrUnknownUnit = errors.New("unknown unit")

// CenterZoom is the zoom level applied when the view recentres on the
// first positioned unit.
const CenterZoom = 18

// View is the viewport suggested to map front-ends.
type View struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Zoom      float64 `json:"zoom"`
	Centered  bool    `json:"centered"`
}

// Found is the result of a lookup by name.
type Found struct {
	Category unit.Category
	Unit     unit.Unit
	OK       bool
}

// Registry holds one name to view-model mapping per category.
type Registry struct {
	vehicles         map[string]*unit.Vehicle
	agents           map[string]*unit.Agent
	rsus             map[string]*unit.Rsu
	trafficLights    map[string]*unit.TrafficLight
	chargingStations map[string]*unit.ChargingStation

	layer  *layer.Layer
	view   View
	logger *slog.Logger
}

// New creates an empty registry with the given initial view.
func New(initial View, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	initial.Centered = false
	r := &Registry{
		layer:  layer.New(),
		view:   initial,
		logger: logger,
	}
	r.reset()
	return r
}

func (r *Registry) reset() {
	r.vehicles = make(map[string]*unit.Vehicle)
	r.agents = make(map[string]*unit.Agent)
	r.rsus = make(map[string]*unit.Rsu)
	r.trafficLights = make(map[string]*unit.TrafficLight)
	r.chargingStations = make(map[string]*unit.ChargingStation)
}

// Lookup finds a unit by name, searching vehicles, agents, rsus, traffic
// lights and charging stations in that order.
func (r *Registry) Lookup(name string) Found {
	if v, ok := r.vehicles[name]; ok {
		return Found{Category: unit.CategoryVehicle, Unit: v, OK: true}
	}
	if a, ok := r.agents[name]; ok {
		return Found{Category: unit.CategoryAgent, Unit: a, OK: true}
	}
	if s, ok := r.rsus[name]; ok {
		return Found{Category: unit.CategoryRsu, Unit: s, OK: true}
	}
	if tl, ok := r.trafficLights[name]; ok {
		return Found{Category: unit.CategoryTrafficLight, Unit: tl, OK: true}
	}
	if cs, ok := r.chargingStations[name]; ok {
		return Found{Category: unit.CategoryChargingStation, Unit: cs, OK: true}
	}
	return Found{}
}

// claim reports whether name is free. A name taken by another category is
// logged since names are unique across the whole registry.
func (r *Registry) claim(name string, category unit.Category) bool {
	found := r.Lookup(name)
	if !found.OK {
		return true
	}
	if found.Category != category {
		r.logger.Debug("Unit name already registered in another category",
			"unit", name, "existing", found.Category.String(), "requested", category.String())
	}
	return false
}

// AddVehicle registers a vehicle. It is a no-op when the name is taken.
func (r *Registry) AddVehicle(name, vehicleClass string, equipped bool) bool {
	if !r.claim(name, unit.CategoryVehicle) {
		return false
	}
	v := unit.NewVehicle(name, vehicleClass)
	v.SetEquipped(equipped)
	r.vehicles[name] = v
	r.layer.Add(v.Marker())
	return true
}

// AddAgent registers an agent at its origin.
func (r *Registry) AddAgent(name string, latitude, longitude float64) bool {
	if !r.claim(name, unit.CategoryAgent) {
		return false
	}
	a := unit.NewAgent(name)
	a.SetPosition(latitude, longitude)
	r.agents[name] = a
	r.layer.Add(a.Marker())
	return true
}

// AddRsu registers a roadside unit.
func (r *Registry) AddRsu(name string, latitude, longitude float64, equipped bool) bool {
	if !r.claim(name, unit.CategoryRsu) {
		return false
	}
	s := unit.NewRsu(name, latitude, longitude)
	s.SetEquipped(equipped)
	r.rsus[name] = s
	r.layer.Add(s.Marker())
	return true
}

// AddTrafficLight registers a traffic light.
func (r *Registry) AddTrafficLight(name string, latitude, longitude float64, equipped bool) bool {
	if !r.claim(name, unit.CategoryTrafficLight) {
		return false
	}
	tl := unit.NewTrafficLight(name, latitude, longitude)
	tl.SetEquipped(equipped)
	r.trafficLights[name] = tl
	r.layer.Add(tl.Marker())
	return true
}

// AddChargingStation registers a charging station.
func (r *Registry) AddChargingStation(name string, latitude, longitude float64, equipped bool) bool {
	if !r.claim(name, unit.CategoryChargingStation) {
		return false
	}
	cs := unit.NewChargingStation(name, latitude, longitude)
	cs.SetEquipped(equipped)
	r.chargingStations[name] = cs
	r.layer.Add(cs.Marker())
	return true
}

// SetUnitState raises a transient flag on the named unit. Unknown names
// and flags the unit does not recognize are ignored.
func (r *Registry) SetUnitState(name, flag string, now time.Time) {
	if found := r.Lookup(name); found.OK {
		found.Unit.SetFlag(flag, now)
	}
}

// SetVehiclePosition moves a vehicle. The first position seen by the
// registry recentres the view, even when the vehicle is unknown.
func (r *Registry) SetVehiclePosition(name string, latitude, longitude float64) error {
	var err error
	if v, ok := r.vehicles[name]; ok {
		v.SetPosition(latitude, longitude)
	} else {
		err = ErrUnknownUnit
		r.logger.Warn("Try to set location for non-existing vehicle", "vehicle", name)
	}
	r.center(latitude, longitude)
	return err
}

// SetAgentPosition moves an agent and replaces its movement state.
func (r *Registry) SetAgentPosition(name, state string, latitude, longitude float64) error {
	var err error
	if a, ok := r.agents[name]; ok {
		a.SetPosition(latitude, longitude)
		a.SetAgentState(state)
	} else {
		err = ErrUnknownUnit
		r.logger.Warn("Try to set location for non-existing agent", "agent", name)
	}
	r.center(latitude, longitude)
	return err
}

func (r *Registry) center(latitude, longitude float64) {
	if r.view.Centered {
		return
	}
	r.view = View{
		Latitude:  latitude,
		Longitude: longitude,
		Zoom:      CenterZoom,
		Centered:  true,
	}
	r.logger.Debug("Centered view on first unit", "latitude", latitude, "longitude", longitude)
}

// UpdateViews renders the named units. Unknown names are skipped.
func (r *Registry) UpdateViews(names []string, now time.Time) {
	for _, name := range names {
		if found := r.Lookup(name); found.OK {
			found.Unit.Render(now)
		}
	}
}

// RemoveUnit deletes a unit and its marker. Unknown names are ignored.
func (r *Registry) RemoveUnit(name string) bool {
	found := r.Lookup(name)
	if !found.OK {
		return false
	}
	r.layer.Remove(found.Unit.Marker())
	switch found.Category {
	case unit.CategoryVehicle:
		delete(r.vehicles, name)
	case unit.CategoryAgent:
		delete(r.agents, name)
	case unit.CategoryRsu:
		delete(r.rsus, name)
	case unit.CategoryTrafficLight:
		delete(r.trafficLights, name)
	case unit.CategoryChargingStation:
		delete(r.chargingStations, name)
	}
	return true
}

// RemoveAllUnits empties every category and the render layer. The
// centered flag is kept.
func (r *Registry) RemoveAllUnits() {
	r.reset()
	r.layer.Clear()
}

// View returns the current viewport.
func (r *Registry) View() View {
	return r.view
}

// Len returns the total number of units.
func (r *Registry) Len() int {
	return len(r.vehicles) + len(r.agents) + len(r.rsus) + len(r.trafficLights) + len(r.chargingStations)
}

// Counts returns the number of units per category.
func (r *Registry) Counts() map[unit.Category]int {
	return map[unit.Category]int{
		unit.CategoryVehicle:         len(r.vehicles),
		unit.CategoryAgent:           len(r.agents),
		unit.CategoryRsu:             len(r.rsus),
		unit.CategoryTrafficLight:    len(r.trafficLights),
		unit.CategoryChargingStation: len(r.chargingStations),
	}
}

// Markers returns the markers in the render layer, sorted by name.
func (r *Registry) Markers() []*layer.Marker {
	return r.layer.Markers()
}

// FeatureCollection exports the render layer as GeoJSON.
func (r *Registry) FeatureCollection() geom.GeoJSONFeatureCollection {
	return r.layer.FeatureCollection()
}
