// Package servo maps normalized axis positions onto servo PWM duty cycles.
package servo

import (
	"fmt"
	"math"
)

// Reference hardware profile (SG90-class continuous servo at 50 Hz).
const (
	DefaultCenter    = 5.9 // % duty, neutral position
	DefaultHalfRange = 2.5 // % duty either side of center
)

// Profile describes the duty-cycle window of one servo.
type Profile struct {
	Center    float64 `json:"center" validate:"gt=0,lt=100"`
	HalfRange float64 `json:"half_range" validate:"gt=0,lt=50"`
}

// DefaultProfile returns the reference hardware profile: [3.4, 8.4] around 5.9.
func DefaultProfile() Profile {
	return Profile{Center: DefaultCenter, HalfRange: DefaultHalfRange}
}

// Validate checks that the window is non-empty and stays inside 0-100%.
func (p Profile) Validate() error {
	if p.HalfRange <= 0 {
		return fmt.Errorf("servo: half range must be positive, got %v", p.HalfRange)
	}
	if p.Center-p.HalfRange < 0 || p.Center+p.HalfRange > 100 {
		return fmt.Errorf("servo: duty window [%v, %v] outside 0-100%%", p.Center-p.HalfRange, p.Center+p.HalfRange)
	}
	return nil
}

// Map converts a normalized value to a duty cycle.
// Values outside [-1, 1] are clamped, never rejected. NaN maps to center.
func (p Profile) Map(v float64) float64 {
	if math.IsNaN(v) {
		return p.Center
	}
	return p.Center + Clamp(v)*p.HalfRange
}

// Range returns the lowest and highest duty cycle Map can produce.
func (p Profile) Range() (min, max float64) {
	return p.Center - p.HalfRange, p.Center + p.HalfRange
}

// Clamp limits v to [-1, 1].
func Clamp(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
