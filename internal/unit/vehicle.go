package unit

import "time"

// Vehicle classes as reported in VehicleRegistration.vehicleType.vehicleClass.
const (
	ClassCar                    = "Car"
	ClassElectricVehicle        = "ElectricVehicle"
	ClassAutomatedVehicle       = "AutomatedVehicle"
	ClassTaxi                   = "Taxi"
	ClassHighOccupancyVehicle   = "HighOccupancyVehicle"
	ClassPublicTransportVehicle = "PublicTransportVehicle"
	ClassBicycle                = "Bicycle"
)

// Family groups vehicle classes that share an icon set.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyCar
	FamilyBus
	FamilyBicycle
)

// FamilyOf maps a vehicle class onto its icon family.
func FamilyOf(class string) Family {
	switch class {
	case ClassCar, ClassElectricVehicle, ClassAutomatedVehicle, ClassTaxi, ClassHighOccupancyVehicle:
		return FamilyCar
	case ClassPublicTransportVehicle:
		return FamilyBus
	case ClassBicycle:
		return FamilyBicycle
	default:
		return FamilyUnknown
	}
}

// Vehicle is a simulated vehicle. Its position is unknown until the first
// VehicleUpdates entry.
type Vehicle struct {
	base
	flags
	class string
}

var _ Unit = (*Vehicle)(nil)

// NewVehicle creates an unequipped vehicle of the given class.
func NewVehicle(name, class string) *Vehicle {
	v := &Vehicle{
		base:  newBase(name, CategoryVehicle, "vehicle"),
		flags: newFlags(FlagSending, FlagReceiving, FlagParking, FlagCharging),
		class: class,
	}
	v.marker.Set("vehicleClass", class)
	return v
}

func (v *Vehicle) Class() string { return v.class }

func (v *Vehicle) Style() string {
	switch FamilyOf(v.class) {
	case FamilyCar:
		return overlay("car",
			override{v.equipped, "car-equipped"},
			override{v.Flag(FlagParking), "car-parking"},
			override{v.Flag(FlagCharging), "car-charging"},
			override{v.Flag(FlagSending), "car-sending"},
			override{v.Flag(FlagReceiving), "car-receiving"},
		)
	case FamilyBus:
		return overlay("bus",
			override{v.equipped, "bus-equipped"},
			override{v.Flag(FlagSending), "bus-sending"},
			override{v.Flag(FlagReceiving), "bus-receiving"},
		)
	case FamilyBicycle:
		return overlay("bicycle",
			override{v.equipped, "bicycle-equipped"},
			override{v.Flag(FlagSending), "bicycle-sending"},
			override{v.Flag(FlagReceiving), "bicycle-receiving"},
		)
	default:
		return "unknown"
	}
}

func (v *Vehicle) Render(now time.Time) {
	v.place()
	v.expire(now)
	v.marker.SetStyle(v.Style())
	v.annotate(v.marker)
}
