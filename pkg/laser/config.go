// Package laser wires the tracking pointer together: actuator backend,
// tracking controller, WebRTC sessions and the HTTP surface.
package laser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/teslashibe/go-laser/internal/config"
	"github.com/teslashibe/go-laser/internal/log"
	"github.com/teslashibe/go-laser/pkg/actuator"
	"github.com/teslashibe/go-laser/pkg/alert"
	"github.com/teslashibe/go-laser/pkg/servo"
	"github.com/teslashibe/go-laser/pkg/session"
	"github.com/teslashibe/go-laser/pkg/tracking"
)

// Default configuration values.
const (
	DefaultHost    = "0.0.0.0"
	DefaultPort    = 7080
	DefaultPathsDB = "paths.db"
	DefaultWebDir  = "."
)

// Config holds all configuration for the laser application.
// Flag parsing is done in cmd/laser/main.go; this struct is data only.
type Config struct {
	// Host and Port are the HTTP listen address. Port 0 picks a free port.
	Host string `validate:"required"`
	Port int    `validate:"min=0,max=65535"`

	// WebDir holds main.html.
	WebDir string

	// PathsDB is the SQLite file for saved paths.
	PathsDB string `validate:"required"`

	Tracking tracking.Config
	Servo    servo.Profile
	Actuator actuator.Config

	Session session.Config
	Policy  session.Policy `validate:"oneof=shared exclusive"`

	Alert alert.Config

	Log log.Options
}

// DefaultConfig returns the reference deployment settings.
func DefaultConfig() Config {
	return Config{
		Host:     DefaultHost,
		Port:     DefaultPort,
		WebDir:   DefaultWebDir,
		PathsDB:  DefaultPathsDB,
		Tracking: tracking.DefaultConfig(),
		Servo:    servo.DefaultProfile(),
		Actuator: actuator.DefaultConfig(),
		Session:  session.DefaultConfig(),
		Policy:   session.PolicyShared,
		Alert:    alert.DefaultConfig(),
		Log:      log.Options{Level: "info"},
	}
}

// LoadEnvConfig applies environment overrides. Unset variables keep the
// current value. A preset named by TRACKING_PRESET is applied before
// SMOOTHING and DEADZONE, so those still win.
func (c *Config) LoadEnvConfig() error {
	var errs []error
	float := func(key string, dst *float64) {
		v, err := config.Float(key, *dst)
		errs = append(errs, err)
		*dst = v
	}
	integer := func(key string, dst *int) {
		v, err := config.Int(key, *dst)
		errs = append(errs, err)
		*dst = v
	}

	c.Host = config.String("LASER_HOST", c.Host)
	integer("LASER_PORT", &c.Port)
	c.WebDir = config.String("WEB_DIR", c.WebDir)
	c.PathsDB = config.String("PATHS_DB", c.PathsDB)

	if name := config.String("TRACKING_PRESET", ""); name != "" {
		preset, err := tracking.Preset(name)
		errs = append(errs, err)
		if err == nil {
			c.Tracking = preset
		}
	}
	float("SMOOTHING", &c.Tracking.Smoothing)
	float("DEADZONE", &c.Tracking.Deadzone)

	float("SERVO_CENTER", &c.Servo.Center)
	float("SERVO_HALF_RANGE", &c.Servo.HalfRange)

	c.Actuator.Backend = actuator.Backend(config.String("LASER_BACKEND", string(c.Actuator.Backend)))
	integer("PWM_PAN_CHANNEL", &c.Actuator.PanChannel)
	integer("PWM_TILT_CHANNEL", &c.Actuator.TiltChannel)
	integer("PWM_FREQUENCY", &c.Actuator.Frequency)
	integer("LASER_PIN", &c.Actuator.LaserPin)

	c.Policy = session.Policy(config.String("SESSION_POLICY", string(c.Policy)))
	if ice := config.String("ICE_SERVERS", ""); ice != "" {
		c.Session.ICEServers = strings.Split(ice, ",")
	}

	c.Alert.Host = config.String("SMTP_HOST", c.Alert.Host)
	integer("SMTP_PORT", &c.Alert.Port)
	c.Alert.User = config.String("SMTP_USER", c.Alert.User)
	c.Alert.Password = config.String("SMTP_PASSWORD", c.Alert.Password)
	c.Alert.From = config.String("SMTP_FROM", c.Alert.From)
	interval, err := config.Duration("ALERT_INTERVAL", c.Alert.Interval)
	errs = append(errs, err)
	c.Alert.Interval = interval

	c.Log.Level = config.String("LOG_LEVEL", c.Log.Level)
	c.Log.File = config.String("LOG_FILE", c.Log.File)

	return errors.Join(errs...)
}

// Validate checks every section of the configuration.
func (c *Config) Validate() error {
	if err := config.Validate(c); err != nil {
		return &ConfigError{Field: "config", Err: err}
	}
	if err := c.Tracking.Validate(); err != nil {
		return &ConfigError{Field: "Tracking", Err: err}
	}
	if err := c.Servo.Validate(); err != nil {
		return &ConfigError{Field: "Servo", Err: err}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Err
}
