package actuator

import (
	"fmt"
	"log/slog"
	"math"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// Hardware drives Raspberry Pi hardware PWM for the servos and a GPIO
// output for the laser. It is not safe for concurrent use; the tracking
// controller is its only caller.
type Hardware struct {
	axes   [len(Axes)]gpio.PinIO
	laser  gpio.PinIO
	freq   physic.Frequency
	logger *slog.Logger
}

// NewHardware initializes the host drivers and resolves every pin.
// Any failure is wrapped in ErrHardwareUnavailable so callers can fall back.
func NewHardware(cfg Config, logger *slog.Logger) (*Hardware, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("%w: host init: %v", ErrHardwareUnavailable, err)
	}

	h := &Hardware{
		freq:   physic.Frequency(cfg.Frequency) * physic.Hertz,
		logger: logger.With("component", "actuator", "backend", BackendHardware),
	}

	channels := [len(Axes)]int{Pan: cfg.PanChannel, Tilt: cfg.TiltChannel}
	for _, axis := range Axes {
		name, err := ChannelPin(channels[axis])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrHardwareUnavailable, err)
		}
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("%w: %s pin %s not found", ErrHardwareUnavailable, axis, name)
		}
		h.axes[axis] = p
	}

	h.laser = gpioreg.ByName(cfg.LaserPinName())
	if h.laser == nil {
		return nil, fmt.Errorf("%w: laser pin %s not found", ErrHardwareUnavailable, cfg.LaserPinName())
	}

	// Driving the laser low proves we have write access to GPIO.
	if err := h.laser.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("%w: laser pin %s: %v", ErrHardwareUnavailable, h.laser.Name(), err)
	}

	h.logger.Info("hardware PWM and laser initialized",
		"pan_pin", h.axes[Pan].Name(),
		"tilt_pin", h.axes[Tilt].Name(),
		"laser_pin", h.laser.Name(),
		"frequency", h.freq,
	)
	return h, nil
}

// Backend returns BackendHardware.
func (h *Hardware) Backend() Backend {
	return BackendHardware
}

// StartAxis begins emitting PWM on the axis at the given duty.
func (h *Hardware) StartAxis(axis Axis, duty float64) error {
	return h.pwm("start", axis, duty)
}

// SetAxis changes the duty cycle of a running axis.
func (h *Hardware) SetAxis(axis Axis, duty float64) error {
	return h.pwm("set", axis, duty)
}

// StopAxis halts PWM output on the axis.
func (h *Hardware) StopAxis(axis Axis) error {
	p, err := h.pin(axis)
	if err != nil {
		return err
	}
	if err := p.Halt(); err != nil {
		return &ActuationError{Op: "stop", Output: p.Name(), Err: err}
	}
	return nil
}

// SetIllumination drives the laser pin high or low.
func (h *Hardware) SetIllumination(on bool) error {
	level := gpio.Low
	if on {
		level = gpio.High
	}
	if err := h.laser.Out(level); err != nil {
		return &ActuationError{Op: "laser", Output: h.laser.Name(), Err: err}
	}
	return nil
}

func (h *Hardware) pwm(op string, axis Axis, duty float64) error {
	p, err := h.pin(axis)
	if err != nil {
		return err
	}
	if err := p.PWM(percentToDuty(duty), h.freq); err != nil {
		return &ActuationError{Op: op, Output: p.Name(), Err: err}
	}
	return nil
}

func (h *Hardware) pin(axis Axis) (gpio.PinIO, error) {
	if axis < 0 || int(axis) >= len(h.axes) {
		return nil, &ActuationError{Op: "lookup", Output: axis.String(), Err: ErrUnknownAxis}
	}
	return h.axes[axis], nil
}

// percentToDuty converts a 0-100 duty percentage to periph's fixed-point duty.
func percentToDuty(pct float64) gpio.Duty {
	pct = math.Max(0, math.Min(100, pct))
	return gpio.Duty(math.Round(pct / 100 * float64(gpio.DutyMax)))
}
