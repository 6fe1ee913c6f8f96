package tracking

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-laser/pkg/actuator"
	"github.com/teslashibe/go-laser/pkg/servo"
)

// failingDriver wraps a simulated driver and fails every SetAxis.
type failingDriver struct {
	*actuator.Simulated
}

func (f failingDriver) SetAxis(axis actuator.Axis, duty float64) error {
	return &actuator.ActuationError{Op: "set", Output: axis.String(), Err: errors.New("bus error")}
}

func startController(t *testing.T, d actuator.Driver) (*Controller, context.CancelFunc) {
	t.Helper()
	c := NewController(DefaultConfig(), servo.DefaultProfile(), d, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-c.Done()
	})
	return c, cancel
}

func TestController_StartsCentered(t *testing.T) {
	sim := actuator.NewSimulated(nil)
	c, _ := startController(t, sim)

	// A round trip guarantees start() has run.
	if _, err := c.Track(context.Background(), Coordinate{}, ""); err != nil {
		t.Fatalf("Track: %v", err)
	}

	for _, axis := range actuator.Axes {
		a := sim.Axis(axis)
		if !a.Running || a.Starts != 1 {
			t.Errorf("%s should be started once: %+v", axis, a)
		}
		if math.Abs(a.Duty-5.9) > 1e-9 {
			t.Errorf("%s duty = %v, want 5.9", axis, a.Duty)
		}
	}
	if !sim.Laser() {
		t.Error("laser should be on while tracking")
	}

	st := c.Status()
	if st.State != (State{}) || st.Duty != (Duty{Pan: 5.9, Tilt: 5.9}) {
		t.Errorf("unexpected status: %+v", st)
	}
}

func TestController_TrackAppliesFilterAndMapper(t *testing.T) {
	sim := actuator.NewSimulated(nil)
	c, _ := startController(t, sim)

	var updates []Update
	var mu sync.Mutex
	c.OnUpdate = func(u Update) {
		mu.Lock()
		updates = append(updates, u)
		mu.Unlock()
	}

	s, err := c.Track(context.Background(), Coordinate{X: 1, Y: -1}, "cat")
	if err != nil {
		t.Fatalf("Track: %v", err)
	}
	if math.Abs(s.Pan-0.2) > 1e-9 || math.Abs(s.Tilt+0.2) > 1e-9 {
		t.Errorf("state = %+v, want (0.2, -0.2)", s)
	}

	wantPan := 5.9 + 0.2*2.5
	wantTilt := 5.9 - 0.2*2.5
	if d := sim.Axis(actuator.Pan).Duty; math.Abs(d-wantPan) > 1e-9 {
		t.Errorf("pan duty = %v, want %v", d, wantPan)
	}
	if d := sim.Axis(actuator.Tilt).Duty; math.Abs(d-wantTilt) > 1e-9 {
		t.Errorf("tilt duty = %v, want %v", d, wantTilt)
	}

	st := c.Status()
	if st.Updates != 1 || st.LastLabel != "cat" {
		t.Errorf("unexpected status: %+v", st)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(updates) != 1 || updates[0].Label != "cat" {
		t.Errorf("expected one update for cat, got %+v", updates)
	}
}

func TestController_PreservesOrder(t *testing.T) {
	sim := actuator.NewSimulated(nil)
	c, _ := startController(t, sim)

	ref := NewFilter(DefaultConfig())
	targets := []Coordinate{{1, 1}, {-1, -1}, {0.5, -0.5}, {0.9, 0.1}, {-0.3, 0.8}}

	var got State
	for _, tgt := range targets {
		want := ref.Update(tgt)
		s, err := c.Track(context.Background(), tgt, "")
		if err != nil {
			t.Fatalf("Track: %v", err)
		}
		if s != want {
			t.Fatalf("after %+v got %+v, want %+v", tgt, s, want)
		}
		got = s
	}
	if c.Status().State != got {
		t.Errorf("status state %+v != last state %+v", c.Status().State, got)
	}
}

func TestController_ConcurrentSessions(t *testing.T) {
	sim := actuator.NewSimulated(nil)
	c, _ := startController(t, sim)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(sign float64) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if _, err := c.Track(context.Background(), Coordinate{X: sign, Y: -sign}, ""); err != nil {
					t.Errorf("Track: %v", err)
					return
				}
			}
		}(float64(i%2)*2 - 1)
	}
	wg.Wait()

	st := c.Status()
	if st.Updates != 200 {
		t.Errorf("expected 200 updates, got %d", st.Updates)
	}
	if st.State.Pan < -1 || st.State.Pan > 1 {
		t.Errorf("state out of range: %+v", st.State)
	}
	if got := sim.Axis(actuator.Pan).Writes; got != 200 {
		t.Errorf("expected 200 pan writes, got %d", got)
	}
}

func TestController_ActuationFailureIsNotFatal(t *testing.T) {
	sim := actuator.NewSimulated(nil)
	c, _ := startController(t, failingDriver{sim})

	var errs []error
	var mu sync.Mutex
	c.OnActuationError = func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	for i := 0; i < 3; i++ {
		if _, err := c.Track(context.Background(), Coordinate{X: 1, Y: 1}, ""); err != nil {
			t.Fatalf("Track %d: %v", i, err)
		}
	}

	st := c.Status()
	if st.Updates != 3 {
		t.Errorf("loop should keep going, got %d updates", st.Updates)
	}
	if st.ActuationErrors != 6 {
		t.Errorf("expected 6 actuation errors (2 axes x 3), got %d", st.ActuationErrors)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(errs) != 6 || !errors.Is(errs[0], actuator.ErrActuationFailure) {
		t.Errorf("expected 6 observed actuation errors, got %v", errs)
	}
}

func TestController_ShutdownTearsDownOnce(t *testing.T) {
	sim := actuator.NewSimulated(nil)
	c := NewController(DefaultConfig(), servo.DefaultProfile(), sim, nil)

	go c.Run(context.Background())
	if _, err := c.Track(context.Background(), Coordinate{X: 1, Y: 0}, ""); err != nil {
		t.Fatalf("Track: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := c.Shutdown(ctx); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}

	if sim.Laser() {
		t.Error("laser should be off after shutdown")
	}
	for _, axis := range actuator.Axes {
		a := sim.Axis(axis)
		if a.Running || a.Stops != 1 {
			t.Errorf("%s should be stopped exactly once: %+v", axis, a)
		}
	}
	if c.Status().Running {
		t.Error("status should report not running")
	}

	if _, err := c.Track(context.Background(), Coordinate{}, ""); !errors.Is(err, ErrStopped) {
		t.Errorf("Track after shutdown = %v, want ErrStopped", err)
	}
}

func TestController_ShutdownWithoutRun(t *testing.T) {
	sim := actuator.NewSimulated(nil)
	c := NewController(DefaultConfig(), servo.DefaultProfile(), sim, nil)

	if err := c.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	for _, axis := range actuator.Axes {
		if got := sim.Axis(axis).Stops; got != 1 {
			t.Errorf("%s stops = %d, want 1", axis, got)
		}
	}
	if err := c.Run(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("Run after Shutdown = %v, want ErrStopped", err)
	}
}

func TestController_TrackHonoursContext(t *testing.T) {
	sim := actuator.NewSimulated(nil)
	c := NewController(DefaultConfig(), servo.DefaultProfile(), sim, nil)
	// Run is not started, so nothing ever receives.

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Track(ctx, Coordinate{}, ""); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
