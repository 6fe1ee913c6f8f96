package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"

	"github.com/teslashibe/go-laser/pkg/tracking"
)

type tracked struct {
	target tracking.Coordinate
	label  string
}

// fakeTracker records every target it is given.
type fakeTracker struct {
	mu      sync.Mutex
	targets []tracked
	notify  chan struct{}
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{notify: make(chan struct{}, 64)}
}

func (f *fakeTracker) Track(_ context.Context, target tracking.Coordinate, label string) (tracking.State, error) {
	f.mu.Lock()
	f.targets = append(f.targets, tracked{target, label})
	f.mu.Unlock()
	select {
	case f.notify <- struct{}{}:
	default:
	}
	return tracking.State{Pan: target.X, Tilt: target.Y}, nil
}

func (f *fakeTracker) snapshot() []tracked {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tracked(nil), f.targets...)
}

func (f *fakeTracker) waitFor(t *testing.T, n int) []tracked {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		if got := f.snapshot(); len(got) >= n {
			return got
		}
		select {
		case <-f.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for %d targets, have %d", n, len(f.snapshot()))
		}
	}
}

func testAPI(t *testing.T) *webrtc.API {
	t.Helper()
	api, err := NewAPI(Config{IncludeLoopback: true})
	if err != nil {
		t.Fatalf("NewAPI: %v", err)
	}
	return api
}

func testConfig() Config {
	return Config{GatherTimeout: 5 * time.Second, IncludeLoopback: true}
}

// newOfferer plays the browser: a peer connection with a detections data
// channel, whose complete offer is returned.
func newOfferer(t *testing.T, api *webrtc.API) (*webrtc.PeerConnection, *webrtc.DataChannel, <-chan struct{}, Description) {
	t.Helper()

	pc, err := api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		t.Fatalf("offerer: %v", err)
	}
	t.Cleanup(func() { pc.Close() })

	dc, err := pc.CreateDataChannel("detections", nil)
	if err != nil {
		t.Fatalf("data channel: %v", err)
	}
	opened := make(chan struct{})
	dc.OnOpen(func() { close(opened) })

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		t.Fatalf("create offer: %v", err)
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		t.Fatalf("set local: %v", err)
	}
	select {
	case <-gathered:
	case <-time.After(5 * time.Second):
		t.Fatal("offerer gathering timed out")
	}

	ld := pc.LocalDescription()
	return pc, dc, opened, Description{SDP: ld.SDP, Type: ld.Type.String()}
}

func TestNegotiate_RejectsWrongType(t *testing.T) {
	s, err := New(testAPI(t), newFakeTracker(), testConfig(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = s.Negotiate(context.Background(), Description{SDP: "v=0", Type: "answer"})
	if !errors.Is(err, ErrNegotiation) {
		t.Fatalf("expected ErrNegotiation, got %v", err)
	}
	var nerr *NegotiationError
	if !errors.As(err, &nerr) || nerr.SessionID != s.ID() {
		t.Errorf("expected NegotiationError for %s, got %v", s.ID(), err)
	}
	if s.State() != StateClosed {
		t.Errorf("failed negotiation should close the session, state=%s", s.State())
	}
}

func TestNegotiate_RejectsMalformedSDP(t *testing.T) {
	tests := []Description{
		{SDP: "", Type: "offer"},
		{SDP: "this is not sdp", Type: "offer"},
	}
	for _, offer := range tests {
		s, err := New(testAPI(t), newFakeTracker(), testConfig(), nil)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if _, err := s.Negotiate(context.Background(), offer); !errors.Is(err, ErrNegotiation) {
			t.Errorf("offer %q: expected ErrNegotiation, got %v", offer.SDP, err)
		}
		if s.State() == StateActive {
			t.Errorf("offer %q: session must never become active", offer.SDP)
		}
	}
}

func TestNegotiate_Twice(t *testing.T) {
	api := testAPI(t)
	s, err := New(api, newFakeTracker(), testConfig(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	_, _, _, offer := newOfferer(t, api)
	if _, err := s.Negotiate(context.Background(), offer); err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
	if s.State() != StateActive {
		t.Fatalf("expected active, got %s", s.State())
	}
	if _, err := s.Negotiate(context.Background(), offer); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState on second negotiate, got %v", err)
	}
}

func TestHandleMessage(t *testing.T) {
	tr := newFakeTracker()
	s := &Session{tracker: tr, logger: slog.Default(), ctx: context.Background()}

	s.handleMessage([]byte(`{"x": 0, "y": 0, "w": 100, "h": 100, "label": "cup"}`))
	s.handleMessage([]byte(`{"x": 0, "y": 0, "w": 0, "h": 100}`))
	s.handleMessage([]byte(`not json`))
	s.handleMessage([]byte(`{"x": 100, "y": 100, "w": 100, "h": 100}`))

	got := tr.snapshot()
	if len(got) != 2 {
		t.Fatalf("expected 2 tracked targets, got %d", len(got))
	}
	if got[0].target != (tracking.Coordinate{X: 1, Y: -1}) || got[0].label != "cup" {
		t.Errorf("first target = %+v", got[0])
	}
	if got[1].target != (tracking.Coordinate{X: -1, Y: 1}) {
		t.Errorf("second target = %+v", got[1])
	}

	info := s.Info()
	if info.Messages != 4 || info.Rejected != 2 {
		t.Errorf("expected 4 messages / 2 rejected, got %+v", info)
	}
}

func TestHandleMessage_IgnoredWhenClosed(t *testing.T) {
	tr := newFakeTracker()
	s := &Session{tracker: tr, logger: slog.Default(), ctx: context.Background()}
	s.state.Store(int32(StateClosed))

	s.handleMessage([]byte(`{"x": 1, "y": 1, "w": 2, "h": 2}`))
	if len(tr.snapshot()) != 0 {
		t.Error("closed session must not process messages")
	}
}

// packetReader replays packets then reports end of stream.
type packetReader struct {
	packets []*rtp.Packet
}

func (p *packetReader) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	if len(p.packets) == 0 {
		return nil, nil, io.EOF
	}
	pkt := p.packets[0]
	p.packets = p.packets[1:]
	return pkt, nil, nil
}

func TestDrainFrames(t *testing.T) {
	s := &Session{logger: slog.Default()}
	r := &packetReader{packets: []*rtp.Packet{
		{Header: rtp.Header{SequenceNumber: 1}},
		{Header: rtp.Header{SequenceNumber: 2, Marker: true}},
		{Header: rtp.Header{SequenceNumber: 3}},
		{Header: rtp.Header{SequenceNumber: 4}},
		{Header: rtp.Header{SequenceNumber: 5, Marker: true}},
	}}

	s.drainFrames(r) // returns at EOF

	if got := s.frames.Load(); got != 2 {
		t.Errorf("expected 2 frames, got %d", got)
	}
}

func TestStateString(t *testing.T) {
	want := map[State]string{
		StateCreated:     "created",
		StateNegotiating: "negotiating",
		StateActive:      "active",
		StateClosed:      "closed",
		State(42):        "unknown",
	}
	for s, name := range want {
		if s.String() != name {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), name)
		}
	}
}

func TestSession_EndToEnd(t *testing.T) {
	api := testAPI(t)
	tr := newFakeTracker()
	reg, err := NewRegistry(api, tr, testConfig(), PolicyShared, nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	offerer, dc, opened, offer := newOfferer(t, api)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, answer, err := reg.Open(ctx, offer)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if answer.Type != "answer" || answer.SDP == "" {
		t.Fatalf("unexpected answer: %+v", answer)
	}
	if s.State() != StateActive {
		t.Fatalf("expected active session, got %s", s.State())
	}

	if err := offerer.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answer.SDP,
	}); err != nil {
		t.Fatalf("set answer: %v", err)
	}

	select {
	case <-opened:
	case <-time.After(10 * time.Second):
		t.Fatal("data channel never opened")
	}

	msgs := []string{
		`{"x": 0, "y": 0, "w": 100, "h": 100, "label": "ball"}`,
		`{"x": 10, "y": 10, "w": 0, "h": 100}`,
		`{"x": 50, "y": 50, "w": 100, "h": 100}`,
		`{"x": 100, "y": 100, "w": 100, "h": 100}`,
	}
	for _, m := range msgs {
		if err := dc.SendText(m); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	got := tr.waitFor(t, 3)
	want := []tracking.Coordinate{{X: 1, Y: -1}, {X: 0, Y: 0}, {X: -1, Y: 1}}
	for i, w := range want {
		if got[i].target != w {
			t.Errorf("target %d = %+v, want %+v", i, got[i].target, w)
		}
	}
	if got[0].label != "ball" {
		t.Errorf("label = %q, want ball", got[0].label)
	}
	if info := s.Info(); info.Rejected != 1 {
		t.Errorf("expected 1 rejected message, got %+v", info)
	}

	s.Close()
	if s.State() != StateClosed {
		t.Errorf("expected closed, got %s", s.State())
	}
	if reg.Count() != 0 {
		t.Errorf("closed session should leave the registry, count=%d", reg.Count())
	}
}
