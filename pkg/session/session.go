// Package session manages the WebRTC peer sessions of browser clients.
//
// Each session carries a data channel of detection messages, which are
// decoded and handed to the tracking controller in arrival order, and a
// video track, which is drained concurrently.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"

	"github.com/teslashibe/go-laser/pkg/tracking"
)

// State is a session lifecycle state.
type State int32

const (
	StateCreated State = iota
	StateNegotiating
	StateActive
	StateClosed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateNegotiating:
		return "negotiating"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Description is a session description as exchanged with the browser.
type Description struct {
	SDP  string `json:"sdp"`
	Type string `json:"type"`
}

// Tracker is the part of the tracking controller a session drives.
type Tracker interface {
	Track(ctx context.Context, target tracking.Coordinate, label string) (tracking.State, error)
}

// Info is a snapshot of a session for status reporting.
type Info struct {
	ID        string    `json:"id"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	Messages  uint64    `json:"messages"`
	Rejected  uint64    `json:"rejected"`
	Frames    uint64    `json:"frames"`
}

// Session is one negotiated peer connection.
type Session struct {
	id        string
	createdAt time.Time
	cfg       Config
	pc        *webrtc.PeerConnection
	tracker   Tracker
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	state     atomic.Int32
	closeOnce sync.Once

	mu      sync.Mutex
	onClose func(*Session)

	messages atomic.Uint64
	rejected atomic.Uint64
	frames   atomic.Uint64
}

// New creates a session in the Created state.
func New(api *webrtc.API, tracker Tracker, cfg Config, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.GatherTimeout <= 0 {
		cfg.GatherTimeout = DefaultConfig().GatherTimeout
	}

	pc, err := api.NewPeerConnection(cfg.rtcConfiguration())
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:        id,
		createdAt: time.Now(),
		cfg:       cfg,
		pc:        pc,
		tracker:   tracker,
		logger:    logger.With("component", "session", "session", id[:8]),
		ctx:       ctx,
		cancel:    cancel,
	}

	pc.OnDataChannel(s.handleDataChannel)
	pc.OnTrack(s.handleTrack)
	pc.OnConnectionStateChange(s.handleConnectionState)

	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Done is closed when the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

// OnClose registers a callback run once when the session closes.
func (s *Session) OnClose(fn func(*Session)) {
	s.mu.Lock()
	s.onClose = fn
	s.mu.Unlock()
}

// Info returns a snapshot of the session.
func (s *Session) Info() Info {
	return Info{
		ID:        s.id,
		State:     s.State().String(),
		CreatedAt: s.createdAt,
		Messages:  s.messages.Load(),
		Rejected:  s.rejected.Load(),
		Frames:    s.frames.Load(),
	}
}

// Negotiate answers the browser's offer. The answer is returned only after
// ICE gathering completes, so it carries every local candidate. On any
// failure the session is closed and a *NegotiationError is returned.
func (s *Session) Negotiate(ctx context.Context, offer Description) (Description, error) {
	if !s.state.CompareAndSwap(int32(StateCreated), int32(StateNegotiating)) {
		return Description{}, fmt.Errorf("%w: negotiate in state %s", ErrInvalidState, s.State())
	}

	answer, err := s.negotiate(ctx, offer)
	if err != nil {
		s.logger.Warn("negotiation failed", "error", err)
		s.Close()
		return Description{}, &NegotiationError{SessionID: s.id, Err: err}
	}

	s.logger.Info("session active")
	return answer, nil
}

func (s *Session) negotiate(ctx context.Context, offer Description) (Description, error) {
	if offer.Type != webrtc.SDPTypeOffer.String() {
		return Description{}, fmt.Errorf("expected type %q, got %q", webrtc.SDPTypeOffer, offer.Type)
	}
	if strings.TrimSpace(offer.SDP) == "" {
		return Description{}, errors.New("empty sdp")
	}

	if err := s.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  offer.SDP,
	}); err != nil {
		return Description{}, fmt.Errorf("set remote description: %w", err)
	}

	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return Description{}, fmt.Errorf("create answer: %w", err)
	}

	gathered := webrtc.GatheringCompletePromise(s.pc)
	if err := s.pc.SetLocalDescription(answer); err != nil {
		return Description{}, fmt.Errorf("set local description: %w", err)
	}

	timer := time.NewTimer(s.cfg.GatherTimeout)
	defer timer.Stop()
	select {
	case <-gathered:
	case <-timer.C:
		return Description{}, fmt.Errorf("ice gathering timed out after %v", s.cfg.GatherTimeout)
	case <-ctx.Done():
		return Description{}, ctx.Err()
	case <-s.ctx.Done():
		return Description{}, errors.New("session closed during negotiation")
	}

	local := s.pc.LocalDescription()
	if local == nil {
		return Description{}, errors.New("no local description")
	}

	// Both descriptions are set: the session is live unless it closed meanwhile.
	if !s.state.CompareAndSwap(int32(StateNegotiating), int32(StateActive)) {
		return Description{}, fmt.Errorf("%w: session %s", ErrInvalidState, s.State())
	}

	return Description{SDP: local.SDP, Type: local.Type.String()}, nil
}

// Close tears the session down. It is safe to call more than once.
// Closing the peer connection ends both receive loops.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		s.cancel()

		if err := s.pc.Close(); err != nil {
			s.logger.Warn("close peer connection", "error", err)
		}

		s.logger.Info("session closed",
			"messages", s.messages.Load(),
			"rejected", s.rejected.Load(),
			"frames", s.frames.Load(),
		)

		s.mu.Lock()
		fn := s.onClose
		s.mu.Unlock()
		if fn != nil {
			fn(s)
		}
	})
}

func (s *Session) handleDataChannel(dc *webrtc.DataChannel) {
	s.logger.Info("data channel opened", "label", dc.Label())

	// pion delivers messages of one channel sequentially, so handling them
	// inline keeps arrival order.
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		s.handleMessage(msg.Data)
	})
}

// handleMessage runs one detection through decode and tracking.
// Malformed input is logged and skipped; the session stays active.
func (s *Session) handleMessage(data []byte) {
	if s.State() == StateClosed {
		return
	}
	s.messages.Add(1)

	det, target, err := tracking.DecodeMessage(data)
	if err != nil {
		s.rejected.Add(1)
		s.logger.Warn("dropping detection", "error", err)
		return
	}

	if _, err := s.tracker.Track(s.ctx, target, det.Label); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.logger.Warn("tracking update not applied", "error", err)
	}
}

func (s *Session) handleTrack(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	s.logger.Info("got track", "kind", track.Kind(), "codec", track.Codec().MimeType)
	if track.Kind() == webrtc.RTPCodecTypeVideo {
		go s.drainFrames(track)
	}
}

func (s *Session) handleConnectionState(state webrtc.PeerConnectionState) {
	s.logger.Info("connection state", "state", state)
	switch state {
	case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
		go s.Close()
	}
}
