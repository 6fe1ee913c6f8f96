package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/pion/webrtc/v3"
)

// Registry tracks open sessions. The pointer hardware is shared, so the
// registry's Policy decides whether several sessions may drive it at once.
type Registry struct {
	api     *webrtc.API
	tracker Tracker
	cfg     Config
	policy  Policy
	logger  *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates a registry. An empty policy means PolicyShared.
func NewRegistry(api *webrtc.API, tracker Tracker, cfg Config, policy Policy, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch policy {
	case "":
		policy = PolicyShared
	case PolicyShared, PolicyExclusive:
	default:
		return nil, fmt.Errorf("session: unknown policy %q", policy)
	}

	return &Registry{
		api:      api,
		tracker:  tracker,
		cfg:      cfg,
		policy:   policy,
		logger:   logger,
		sessions: make(map[string]*Session),
	}, nil
}

// Policy returns the multi-session policy in force.
func (r *Registry) Policy() Policy {
	return r.policy
}

// Open creates a session for the offer, registers it and negotiates.
// An exclusive registry returns ErrSessionBusy while another session is open.
// A failed negotiation unregisters the session again.
func (r *Registry) Open(ctx context.Context, offer Description) (*Session, Description, error) {
	r.mu.Lock()
	if r.policy == PolicyExclusive && len(r.sessions) > 0 {
		r.mu.Unlock()
		return nil, Description{}, ErrSessionBusy
	}

	s, err := New(r.api, r.tracker, r.cfg, r.logger)
	if err != nil {
		r.mu.Unlock()
		return nil, Description{}, err
	}
	s.OnClose(r.remove)
	r.sessions[s.ID()] = s
	count := len(r.sessions)
	r.mu.Unlock()

	r.logger.Info("session opened", "session", s.ID(), "open_sessions", count, "policy", r.policy)

	answer, err := s.Negotiate(ctx, offer)
	if err != nil {
		return nil, Description{}, err
	}
	return s, answer, nil
}

// Get returns the session with the given ID.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Count returns the number of open sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Infos returns a snapshot of every open session, oldest first.
func (r *Registry) Infos() []Info {
	r.mu.RLock()
	infos := make([]Info, 0, len(r.sessions))
	for _, s := range r.sessions {
		infos = append(infos, s.Info())
	}
	r.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// CloseAll closes every open session.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	open := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		open = append(open, s)
	}
	r.mu.RUnlock()

	for _, s := range open {
		s.Close()
	}
}

func (r *Registry) remove(s *Session) {
	r.mu.Lock()
	delete(r.sessions, s.ID())
	count := len(r.sessions)
	r.mu.Unlock()

	r.logger.Info("session removed", "session", s.ID(), "open_sessions", count)
}
