package actuator

import (
	"errors"
	"fmt"
	"log/slog"
)

// Selection is the outcome of backend selection.
type Selection struct {
	Driver  Driver
	Backend Backend

	// Fallback holds the reason hardware was skipped when auto mode fell
	// back to the simulation. Nil otherwise.
	Fallback error
}

// openHardware is swapped in tests.
var openHardware = func(cfg Config, logger *slog.Logger) (Driver, error) {
	return NewHardware(cfg, logger)
}

// Select creates the driver for cfg.Backend. It is called once at startup.
// In auto mode a hardware failure wrapping ErrHardwareUnavailable selects
// the simulation instead; any other error is returned.
func Select(cfg Config, logger *slog.Logger) (Selection, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Backend {
	case BackendSimulated:
		return Selection{Driver: NewSimulated(logger), Backend: BackendSimulated}, nil

	case BackendHardware:
		d, err := openHardware(cfg, logger)
		if err != nil {
			return Selection{}, err
		}
		return Selection{Driver: d, Backend: BackendHardware}, nil

	case BackendAuto, "":
		d, err := openHardware(cfg, logger)
		if err == nil {
			return Selection{Driver: d, Backend: BackendHardware}, nil
		}
		if !errors.Is(err, ErrHardwareUnavailable) {
			return Selection{}, err
		}
		logger.Warn("hardware unavailable, running in simulation mode", "reason", err)
		return Selection{Driver: NewSimulated(logger), Backend: BackendSimulated, Fallback: err}, nil

	default:
		return Selection{}, fmt.Errorf("actuator: unsupported backend %q", cfg.Backend)
	}
}
