// Package unit holds the view-models of the units drawn on the map. Each
// view-model owns one marker and maps its current state onto an icon.
package unit

import (
	"time"

	"github.com/OCAP2/visualizer/internal/layer"
)

// Category identifies the kind of simulated unit.
type Category int

const (
	CategoryVehicle Category = iota
	CategoryAgent
	CategoryRsu
	CategoryTrafficLight
	CategoryChargingStation
)

// Categories lists all categories in lookup order.
var Categories = []Category{
	CategoryVehicle,
	CategoryAgent,
	CategoryRsu,
	CategoryTrafficLight,
	CategoryChargingStation,
}

func (c Category) String() string {
	switch c {
	case CategoryVehicle:
		return "vehicle"
	case CategoryAgent:
		return "agent"
	case CategoryRsu:
		return "rsu"
	case CategoryTrafficLight:
		return "trafficLight"
	case CategoryChargingStation:
		return "chargingStation"
	default:
		return "unknown"
	}
}

// Transient flag names.
const (
	FlagSending   = "sending"
	FlagReceiving = "receiving"
	FlagParking   = "parking"
	FlagCharging  = "charging"
)

// FlagTimeout is how long sending/receiving stay set without a new event.
// Expiry is evaluated on render only.
const FlagTimeout = 500 * time.Millisecond

// Unit is the common behavior of all view-models.
type Unit interface {
	Name() string
	Category() Category
	Marker() *layer.Marker

	// Position returns the last known position; ok is false before the
	// first one is known.
	Position() (latitude, longitude float64, ok bool)
	SetPosition(latitude, longitude float64)

	// SetFlag raises a transient flag and stamps it with now. Flags the
	// unit does not know are ignored.
	SetFlag(flag string, now time.Time)
	Flag(flag string) bool

	// Style resolves the icon for the current state without side effects.
	Style() string

	// Render brings the marker up to date with the current state.
	Render(now time.Time)
}

// base carries what every view-model has: name, position and marker.
type base struct {
	name     string
	category Category
	marker   *layer.Marker
	lat, lon float64
	hasPos   bool
}

func newBase(name string, category Category, kind string) base {
	m := layer.NewMarker(name, kind)
	m.Set("category", category.String())
	return base{
		name:     name,
		category: category,
		marker:   m,
	}
}

func (b *base) Name() string          { return b.name }
func (b *base) Category() Category    { return b.category }
func (b *base) Marker() *layer.Marker { return b.marker }

func (b *base) Position() (float64, float64, bool) {
	return b.lat, b.lon, b.hasPos
}

func (b *base) SetPosition(latitude, longitude float64) {
	b.lat, b.lon = latitude, longitude
	b.hasPos = true
}

// place updates the marker geometry when a position is known; otherwise
// the marker keeps whatever placement it had.
func (b *base) place() {
	if b.hasPos {
		b.marker.SetGeometry(b.lat, b.lon)
	}
}

// flags is the set of transient flags a unit recognizes, plus the
// equipped attribute.
type flags struct {
	equipped bool
	values   map[string]bool
	lastSet  time.Time
}

func newFlags(names ...string) flags {
	values := make(map[string]bool, len(names))
	for _, n := range names {
		values[n] = false
	}
	return flags{values: values}
}

func (f *flags) SetEquipped(equipped bool) { f.equipped = equipped }
func (f *flags) Equipped() bool            { return f.equipped }

func (f *flags) SetFlag(flag string, now time.Time) {
	if _, ok := f.values[flag]; !ok {
		return
	}
	f.values[flag] = true
	f.lastSet = now
}

func (f *flags) Flag(flag string) bool {
	return f.values[flag]
}

// expire clears sending and receiving once FlagTimeout has passed since
// the last flag was set. Other flags are left alone.
func (f *flags) expire(now time.Time) {
	if now.Sub(f.lastSet) <= FlagTimeout {
		return
	}
	if _, ok := f.values[FlagSending]; ok {
		f.values[FlagSending] = false
	}
	if _, ok := f.values[FlagReceiving]; ok {
		f.values[FlagReceiving] = false
	}
}

func (f *flags) annotate(m *layer.Marker) {
	m.Set("equipped", f.equipped)
	for name, v := range f.values {
		m.Set(name, v)
	}
}

// overlay applies the override chain: the icon of the last true entry
// wins, otherwise the base icon is kept.
func overlay(icon string, chain ...override) string {
	for _, o := range chain {
		if o.on {
			icon = o.icon
		}
	}
	return icon
}

type override struct {
	on   bool
	icon string
}
