package tracking

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-laser/pkg/actuator"
	"github.com/teslashibe/go-laser/pkg/servo"
)

// errorLogInterval limits how often repeated actuation failures are logged.
const errorLogInterval = 5 * time.Second

// Duty is the pair of duty cycles last written to the axes.
type Duty struct {
	Pan  float64 `json:"pan"`
	Tilt float64 `json:"tilt"`
}

// Update describes one applied target, passed to OnUpdate.
type Update struct {
	Label  string     `json:"label,omitempty"`
	Target Coordinate `json:"target"`
	State  State      `json:"state"`
	Duty   Duty       `json:"duty"`
}

// Status is a snapshot of the controller for dashboards and the status API.
type Status struct {
	Backend         actuator.Backend `json:"backend"`
	Running         bool             `json:"running"`
	State           State            `json:"state"`
	Duty            Duty             `json:"duty"`
	Updates         uint64           `json:"updates"`
	ActuationErrors uint64           `json:"actuation_errors"`
	LastLabel       string           `json:"last_label,omitempty"`
}

type request struct {
	target Coordinate
	label  string
	reply  chan State
}

// Controller is the single owner of the filter state and the actuator.
// Sessions hand it targets through Track; only the Run goroutine ever
// touches the filter or the driver, so no other locking is needed.
type Controller struct {
	filter  *Filter
	profile servo.Profile
	driver  actuator.Driver
	logger  *slog.Logger

	requests chan request
	stop     chan struct{}
	done     chan struct{}
	started  atomic.Bool

	stopOnce     sync.Once
	teardownOnce sync.Once

	mu     sync.RWMutex
	status Status

	lastErrorLog time.Time

	// OnUpdate is called from the control goroutine after every applied target.
	OnUpdate func(Update)

	// OnActuationError is called from the control goroutine when a write fails.
	OnActuationError func(error)
}

// NewController creates a controller. Call Run to start serving targets.
func NewController(cfg Config, profile servo.Profile, driver actuator.Driver, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		filter:   NewFilter(cfg),
		profile:  profile,
		driver:   driver,
		logger:   logger.With("component", "tracking"),
		requests: make(chan request),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	c.status = Status{
		Backend: driver.Backend(),
		Duty:    Duty{Pan: profile.Map(0), Tilt: profile.Map(0)},
	}
	return c
}

// Run centers both axes, turns the laser on and applies targets until ctx
// is cancelled or Shutdown is called. On exit the laser is switched off and
// both axes are stopped, exactly once.
func (c *Controller) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrStopped
	}
	defer close(c.done)
	defer c.teardown()

	c.start()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.stop:
			return nil
		case req := <-c.requests:
			req.reply <- c.apply(req)
		}
	}
}

// Track submits a target and waits until it has been applied.
// Targets from one caller are applied in the order Track is called.
func (c *Controller) Track(ctx context.Context, target Coordinate, label string) (State, error) {
	req := request{target: target, label: label, reply: make(chan State, 1)}

	select {
	case c.requests <- req:
	case <-c.done:
		return State{}, ErrStopped
	case <-ctx.Done():
		return State{}, ctx.Err()
	}

	// Once accepted, the request is always answered before Run returns.
	return <-req.reply, nil
}

// Shutdown stops the control loop and waits for teardown to finish.
// If Run was never started, teardown runs here instead.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.stopOnce.Do(func() { close(c.stop) })

	if c.started.CompareAndSwap(false, true) {
		c.teardown()
		close(c.done)
		return nil
	}

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the controller has torn down.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Config returns the filter configuration.
func (c *Controller) Config() Config {
	return c.filter.Config()
}

func (c *Controller) start() {
	center := c.profile.Map(0)
	for _, axis := range actuator.Axes {
		if err := c.driver.StartAxis(axis, center); err != nil {
			c.actuationFailed(err)
		}
	}
	if err := c.driver.SetIllumination(true); err != nil {
		c.actuationFailed(err)
	}

	c.mu.Lock()
	c.status.Running = true
	c.mu.Unlock()

	cfg := c.filter.Config()
	c.logger.Info("tracking started",
		"backend", c.driver.Backend(),
		"smoothing", cfg.Smoothing,
		"deadzone", cfg.Deadzone,
		"center_duty", center,
	)
}

// apply runs one target through filter, mapper and driver.
func (c *Controller) apply(req request) State {
	s := c.filter.Update(req.target)
	duty := Duty{Pan: c.profile.Map(s.Pan), Tilt: c.profile.Map(s.Tilt)}

	if err := c.driver.SetAxis(actuator.Pan, duty.Pan); err != nil {
		c.actuationFailed(err)
	}
	if err := c.driver.SetAxis(actuator.Tilt, duty.Tilt); err != nil {
		c.actuationFailed(err)
	}

	c.mu.Lock()
	c.status.State = s
	c.status.Duty = duty
	c.status.Updates++
	c.status.LastLabel = req.label
	c.mu.Unlock()

	label := req.label
	if label == "" {
		label = "object"
	}
	c.logger.Debug("tracking", "label", label, "pan", s.Pan, "tilt", s.Tilt)

	if c.OnUpdate != nil {
		c.OnUpdate(Update{Label: req.label, Target: req.target, State: s, Duty: duty})
	}
	return s
}

// actuationFailed records a failed write. The loop always carries on.
func (c *Controller) actuationFailed(err error) {
	c.mu.Lock()
	c.status.ActuationErrors++
	total := c.status.ActuationErrors
	c.mu.Unlock()

	// Log errors (but don't spam - max once per errorLogInterval)
	if c.lastErrorLog.IsZero() || time.Since(c.lastErrorLog) > errorLogInterval {
		c.logger.Warn("actuation failed", "error", err, "total_errors", total)
		c.lastErrorLog = time.Now()
	}

	if c.OnActuationError != nil {
		c.OnActuationError(err)
	}
}

func (c *Controller) teardown() {
	c.teardownOnce.Do(func() {
		if err := c.driver.SetIllumination(false); err != nil {
			c.logger.Warn("laser off failed", "error", err)
		}
		for _, axis := range actuator.Axes {
			if err := c.driver.StopAxis(axis); err != nil {
				c.logger.Warn("axis stop failed", "axis", axis, "error", err)
			}
		}

		c.mu.Lock()
		c.status.Running = false
		c.mu.Unlock()

		c.logger.Info("tracking stopped, laser off, axes stopped")
	})
}
