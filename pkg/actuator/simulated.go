package actuator

import (
	"log/slog"
	"sync"
)

// AxisSnapshot is the recorded state of one simulated axis.
type AxisSnapshot struct {
	Running bool    `json:"running"`
	Duty    float64 `json:"duty"`
	Starts  int     `json:"starts"`
	Writes  int     `json:"writes"`
	Stops   int     `json:"stops"`
}

// Simulated is a Driver that performs no physical action. It records
// every call so the rest of the system can be exercised without a Pi.
type Simulated struct {
	logger *slog.Logger

	mu           sync.Mutex
	axes         [len(Axes)]AxisSnapshot
	laser        bool
	laserChanges int
}

// NewSimulated creates a simulated driver with both axes stopped and the laser off.
func NewSimulated(logger *slog.Logger) *Simulated {
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulated{
		logger: logger.With("component", "actuator", "backend", BackendSimulated),
	}
}

// Backend returns BackendSimulated.
func (s *Simulated) Backend() Backend {
	return BackendSimulated
}

// StartAxis records a PWM start.
func (s *Simulated) StartAxis(axis Axis, duty float64) error {
	if err := checkAxis(axis); err != nil {
		return err
	}
	s.mu.Lock()
	a := &s.axes[axis]
	a.Running = true
	a.Duty = duty
	a.Starts++
	s.mu.Unlock()

	s.logger.Info("PWM start", "axis", axis, "duty", duty)
	return nil
}

// SetAxis records a duty change.
func (s *Simulated) SetAxis(axis Axis, duty float64) error {
	if err := checkAxis(axis); err != nil {
		return err
	}
	s.mu.Lock()
	s.axes[axis].Duty = duty
	s.axes[axis].Writes++
	s.mu.Unlock()
	return nil
}

// StopAxis records a PWM stop.
func (s *Simulated) StopAxis(axis Axis) error {
	if err := checkAxis(axis); err != nil {
		return err
	}
	s.mu.Lock()
	s.axes[axis].Running = false
	s.axes[axis].Stops++
	s.mu.Unlock()

	s.logger.Info("PWM stop", "axis", axis)
	return nil
}

// SetIllumination records the laser state.
func (s *Simulated) SetIllumination(on bool) error {
	s.mu.Lock()
	s.laser = on
	s.laserChanges++
	s.mu.Unlock()

	if on {
		s.logger.Info("laser on")
	} else {
		s.logger.Info("laser off")
	}
	return nil
}

// Axis returns the recorded state of an axis.
func (s *Simulated) Axis(axis Axis) AxisSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if checkAxis(axis) != nil {
		return AxisSnapshot{}
	}
	return s.axes[axis]
}

// Laser reports whether the simulated laser is on.
func (s *Simulated) Laser() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.laser
}

func checkAxis(axis Axis) error {
	if axis < 0 || int(axis) >= len(Axes) {
		return &ActuationError{Op: "lookup", Output: axis.String(), Err: ErrUnknownAxis}
	}
	return nil
}
