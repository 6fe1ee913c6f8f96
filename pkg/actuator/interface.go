// Package actuator drives the pan/tilt servos and the laser.
//
// Consumers depend only on the small interfaces they need. The backend
// (real GPIO/PWM hardware or a simulation) is chosen once at startup by
// Select and injected everywhere else as a Driver.
package actuator

// Axis identifies one servo output.
type Axis int

const (
	// Pan is the horizontal axis.
	Pan Axis = iota
	// Tilt is the vertical axis.
	Tilt
)

// Axes lists every axis in a fixed order.
var Axes = [...]Axis{Pan, Tilt}

// String returns "pan" or "tilt".
func (a Axis) String() string {
	switch a {
	case Pan:
		return "pan"
	case Tilt:
		return "tilt"
	default:
		return "unknown"
	}
}

// AxisDriver controls the PWM outputs of the servo axes.
// Duty cycles are percentages (0-100).
type AxisDriver interface {
	StartAxis(axis Axis, duty float64) error
	SetAxis(axis Axis, duty float64) error
	StopAxis(axis Axis) error
}

// Illuminator switches the laser.
type Illuminator interface {
	SetIllumination(on bool) error
}

// Driver is the full capability set of the pointer head.
type Driver interface {
	AxisDriver
	Illuminator

	// Backend reports which backend is doing the work.
	Backend() Backend
}

// Ensure both backends implement Driver
var (
	_ Driver = (*Hardware)(nil)
	_ Driver = (*Simulated)(nil)
)
