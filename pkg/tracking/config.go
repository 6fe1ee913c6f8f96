package tracking

import "fmt"

// Config holds the tunable parameters of the smoothing filter.
// It is set once at startup and never mutated afterwards.
type Config struct {
	// Smoothing is the EMA weight of the newest sample, in (0, 1].
	// 1 snaps straight to the target; values near 0 barely move.
	Smoothing float64 `json:"smoothing" validate:"gt=0,lte=1"`

	// Deadzone is the per-axis change a target must exceed before the
	// filter reacts. Smaller jumps are treated as detector noise.
	Deadzone float64 `json:"deadzone" validate:"gte=0"`
}

// DefaultConfig returns the tuning the pointer ships with.
func DefaultConfig() Config {
	return Config{
		Smoothing: 0.20, // 20% new, 80% old
		Deadzone:  0.04, // ~2% of the frame either side
	}
}

// SteadyConfig returns a configuration for slower, calmer tracking.
func SteadyConfig() Config {
	cfg := DefaultConfig()
	cfg.Smoothing = 0.10
	cfg.Deadzone = 0.06
	return cfg
}

// ResponsiveConfig returns a configuration for fast tracking of moving targets.
func ResponsiveConfig() Config {
	cfg := DefaultConfig()
	cfg.Smoothing = 0.45
	cfg.Deadzone = 0.02
	return cfg
}

// Preset returns the named configuration: "default", "steady" or "responsive".
func Preset(name string) (Config, error) {
	switch name {
	case "", "default":
		return DefaultConfig(), nil
	case "steady":
		return SteadyConfig(), nil
	case "responsive":
		return ResponsiveConfig(), nil
	default:
		return Config{}, fmt.Errorf("tracking: unknown preset %q", name)
	}
}

// Validate checks that the filter parameters are usable.
func (c Config) Validate() error {
	if !(c.Smoothing > 0 && c.Smoothing <= 1) {
		return fmt.Errorf("tracking: smoothing must be in (0, 1], got %v", c.Smoothing)
	}
	if !(c.Deadzone >= 0) {
		return fmt.Errorf("tracking: deadzone must be >= 0, got %v", c.Deadzone)
	}
	return nil
}
