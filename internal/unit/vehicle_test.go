package unit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestFamilyOf(t *testing.T) {
	tests := []struct {
		class string
		want  Family
	}{
		{ClassCar, FamilyCar},
		{ClassElectricVehicle, FamilyCar},
		{ClassAutomatedVehicle, FamilyCar},
		{ClassTaxi, FamilyCar},
		{ClassHighOccupancyVehicle, FamilyCar},
		{ClassPublicTransportVehicle, FamilyBus},
		{ClassBicycle, FamilyBicycle},
		{"Truck", FamilyUnknown},
		{"", FamilyUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.class, func(t *testing.T) {
			assert.Equal(t, tt.want, FamilyOf(tt.class))
		})
	}
}

func TestVehicle_StyleOverrideChain(t *testing.T) {
	tests := []struct {
		name     string
		class    string
		equipped bool
		flags    []string
		want     string
	}{
		{name: "plain car", class: ClassCar, want: "car"},
		{name: "equipped car", class: ClassCar, equipped: true, want: "car-equipped"},
		{name: "parking beats equipped", class: ClassCar, equipped: true, flags: []string{FlagParking}, want: "car-parking"},
		{name: "charging beats parking", class: ClassElectricVehicle, flags: []string{FlagParking, FlagCharging}, want: "car-charging"},
		{name: "sending beats charging", class: ClassCar, equipped: true, flags: []string{FlagCharging, FlagSending}, want: "car-sending"},
		{name: "receiving beats sending", class: ClassTaxi, flags: []string{FlagSending, FlagReceiving}, want: "car-receiving"},
		{name: "bus", class: ClassPublicTransportVehicle, want: "bus"},
		{name: "bus ignores parking", class: ClassPublicTransportVehicle, equipped: true, flags: []string{FlagParking}, want: "bus-equipped"},
		{name: "bus sending", class: ClassPublicTransportVehicle, flags: []string{FlagSending}, want: "bus-sending"},
		{name: "bicycle receiving", class: ClassBicycle, flags: []string{FlagReceiving}, want: "bicycle-receiving"},
		{name: "bicycle ignores charging", class: ClassBicycle, flags: []string{FlagCharging}, want: "bicycle"},
		{name: "unknown class has no overrides", class: "Truck", equipped: true, flags: []string{FlagSending}, want: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewVehicle("veh_0", tt.class)
			v.SetEquipped(tt.equipped)
			for _, f := range tt.flags {
				v.SetFlag(f, t0)
			}
			assert.Equal(t, tt.want, v.Style())
		})
	}
}

func TestVehicle_UnknownFlagIgnored(t *testing.T) {
	v := NewVehicle("veh_0", ClassCar)

	v.SetFlag("flying", t0)

	assert.False(t, v.Flag("flying"))
	assert.Equal(t, "car", v.Style())
}

func TestVehicle_RenderWithoutPositionLeavesMarkerUnplaced(t *testing.T) {
	v := NewVehicle("veh_0", ClassCar)

	v.Render(t0)

	assert.False(t, v.Marker().Placed())
	assert.Equal(t, "car", v.Marker().Icon())
}

func TestVehicle_RenderPlacesMarker(t *testing.T) {
	v := NewVehicle("veh_0", ClassCar)
	v.SetPosition(48.0, 8.0)

	v.Render(t0)

	lat, lon, ok := v.Marker().Position()
	require.True(t, ok)
	assert.Equal(t, 48.0, lat)
	assert.Equal(t, 8.0, lon)
	assert.Equal(t, "markers/car.png", v.Marker().IconSource())
}

func TestVehicle_SendingExpiresAfterTimeout(t *testing.T) {
	v := NewVehicle("V1", ClassCar)
	v.SetPosition(48.0, 8.0)
	v.SetFlag(FlagSending, t0)

	v.Render(t0)
	assert.Equal(t, "car-sending", v.Marker().Icon())

	v.Render(t0.Add(FlagTimeout))
	assert.Equal(t, "car-sending", v.Marker().Icon(), "flag must survive a render exactly at the timeout")
	assert.True(t, v.Flag(FlagSending))

	v.Render(t0.Add(600 * time.Millisecond))
	assert.Equal(t, "car", v.Marker().Icon())
	assert.False(t, v.Flag(FlagSending))
}

func TestVehicle_ExpiryKeepsParkingAndCharging(t *testing.T) {
	v := NewVehicle("veh_0", ClassCar)
	v.SetFlag(FlagParking, t0)
	v.SetFlag(FlagReceiving, t0)

	v.Render(t0.Add(time.Second))

	assert.True(t, v.Flag(FlagParking))
	assert.False(t, v.Flag(FlagReceiving))
	assert.Equal(t, "car-parking", v.Marker().Icon())
}

func TestVehicle_LaterFlagRefreshesTimestamp(t *testing.T) {
	v := NewVehicle("veh_0", ClassCar)
	v.SetFlag(FlagSending, t0)
	v.SetFlag(FlagReceiving, t0.Add(400*time.Millisecond))

	v.Render(t0.Add(800 * time.Millisecond))

	assert.True(t, v.Flag(FlagSending), "expiry is measured from the last flag set")
	assert.Equal(t, "car-receiving", v.Marker().Icon())
}

func TestVehicle_MarkerProperties(t *testing.T) {
	v := NewVehicle("veh_0", ClassBicycle)
	v.SetEquipped(true)
	v.Render(t0)

	props := v.Marker().Properties()
	assert.Equal(t, "veh_0", props["name"])
	assert.Equal(t, "vehicle", props["type"])
	assert.Equal(t, ClassBicycle, props["vehicleClass"])
	assert.Equal(t, true, props["equipped"])
	assert.Equal(t, "bicycle-equipped", props["icon"])
}
