package session

import (
	"fmt"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"
)

// Policy decides what happens when a second peer connects while one is active.
type Policy string

const (
	// PolicyShared lets every session drive the pointer; the last writer wins.
	PolicyShared Policy = "shared"
	// PolicyExclusive rejects new sessions while one is open.
	PolicyExclusive Policy = "exclusive"
)

// Config holds WebRTC settings shared by every session.
type Config struct {
	// ICEServers are STUN/TURN URLs. Empty for LAN-only use.
	ICEServers []string `json:"ice_servers"`

	// GatherTimeout bounds ICE gathering before the answer is returned.
	GatherTimeout time.Duration `json:"gather_timeout"`

	// UDPPortMin and UDPPortMax restrict the ICE UDP ports (both zero = any).
	UDPPortMin uint16 `json:"udp_port_min"`
	UDPPortMax uint16 `json:"udp_port_max" validate:"gtefield=UDPPortMin"`

	// IncludeLoopback gathers 127.0.0.1 candidates (tests, single-host setups).
	IncludeLoopback bool `json:"include_loopback"`
}

// DefaultConfig returns settings for a LAN deployment.
func DefaultConfig() Config {
	return Config{
		GatherTimeout: 10 * time.Second,
	}
}

// NewAPI builds the pion API used to create peer connections: default
// codecs and interceptors plus the settings in cfg.
func NewAPI(cfg Config) (*webrtc.API, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, ir); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	se := webrtc.SettingEngine{}
	if cfg.UDPPortMin != 0 || cfg.UDPPortMax != 0 {
		if err := se.SetEphemeralUDPPortRange(cfg.UDPPortMin, cfg.UDPPortMax); err != nil {
			return nil, fmt.Errorf("udp port range: %w", err)
		}
	}
	se.SetIncludeLoopbackCandidate(cfg.IncludeLoopback)

	return webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(ir),
		webrtc.WithSettingEngine(se),
	), nil
}

func (c Config) rtcConfiguration() webrtc.Configuration {
	conf := webrtc.Configuration{}
	if len(c.ICEServers) > 0 {
		conf.ICEServers = []webrtc.ICEServer{{URLs: c.ICEServers}}
	}
	return conf
}
