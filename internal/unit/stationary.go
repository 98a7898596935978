package unit

import "time"

// stationary is shared by units with a fixed position announced at
// registration: roadside units, traffic lights and charging stations.
type stationary struct {
	base
	flags
	icon string
}

func newStationary(name string, category Category, kind, icon string, latitude, longitude float64) stationary {
	s := stationary{
		base:  newBase(name, category, kind),
		flags: newFlags(FlagSending, FlagReceiving),
		icon:  icon,
	}
	s.SetPosition(latitude, longitude)
	s.marker.SetGeometry(latitude, longitude)
	return s
}

func (s *stationary) Style() string {
	return overlay(s.icon,
		override{s.equipped, s.icon + "-equipped"},
		override{s.Flag(FlagSending), s.icon + "-sending"},
		override{s.Flag(FlagReceiving), s.icon + "-receiving"},
	)
}

func (s *stationary) Render(now time.Time) {
	s.place()
	s.expire(now)
	s.marker.SetStyle(s.Style())
	s.annotate(s.marker)
}

// Rsu is a roadside unit.
type Rsu struct{ stationary }

// TrafficLight is a traffic light group.
type TrafficLight struct{ stationary }

// ChargingStation is an electric vehicle charging station.
type ChargingStation struct{ stationary }

var (
	_ Unit = (*Rsu)(nil)
	_ Unit = (*TrafficLight)(nil)
	_ Unit = (*ChargingStation)(nil)
)

// NewRsu creates a roadside unit at the given position.
func NewRsu(name string, latitude, longitude float64) *Rsu {
	return &Rsu{newStationary(name, CategoryRsu, "rsu", "roadside-unit", latitude, longitude)}
}

// NewTrafficLight creates a traffic light at the given position.
func NewTrafficLight(name string, latitude, longitude float64) *TrafficLight {
	return &TrafficLight{newStationary(name, CategoryTrafficLight, "trafficLight", "traffic-light", latitude, longitude)}
}

// NewChargingStation creates a charging station at the given position.
func NewChargingStation(name string, latitude, longitude float64) *ChargingStation {
	return &ChargingStation{newStationary(name, CategoryChargingStation, "charging-station", "charging-station", latitude, longitude)}
}
