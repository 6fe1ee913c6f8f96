package tracking

import "math"

// State is the filtered pointer position, one value per axis in [-1, 1].
// The zero value is the centered position.
type State struct {
	Pan  float64 `json:"pan"`
	Tilt float64 `json:"tilt"`
}

// Filter smooths noisy targets into a stable State.
// Each axis is an exponential moving average gated by a deadzone.
// A Filter is not safe for concurrent use; Controller owns the only one.
type Filter struct {
	cfg   Config
	state State
}

// NewFilter creates a filter starting at the center.
func NewFilter(cfg Config) *Filter {
	return &Filter{cfg: cfg}
}

// Update folds one target into the state and returns the new state.
func (f *Filter) Update(target Coordinate) State {
	f.state.Pan = smooth(f.state.Pan, target.X, f.cfg)
	f.state.Tilt = smooth(f.state.Tilt, target.Y, f.cfg)
	return f.state
}

// State returns the current filter output.
func (f *Filter) State() State {
	return f.state
}

// Config returns the filter parameters.
func (f *Filter) Config() Config {
	return f.cfg
}

// Reset moves the state back to center.
func (f *Filter) Reset() {
	f.state = State{}
}

// smooth applies the deadzone gate then the EMA step for one axis.
// Changes of at most Deadzone hold the previous value.
func smooth(prev, target float64, cfg Config) float64 {
	if math.Abs(target-prev) > cfg.Deadzone {
		return cfg.Smoothing*target + (1-cfg.Smoothing)*prev
	}
	return prev
}
