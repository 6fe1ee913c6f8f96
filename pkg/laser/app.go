package laser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"

	"github.com/teslashibe/go-laser/pkg/actuator"
	"github.com/teslashibe/go-laser/pkg/alert"
	"github.com/teslashibe/go-laser/pkg/hub"
	"github.com/teslashibe/go-laser/pkg/paths"
	"github.com/teslashibe/go-laser/pkg/session"
	"github.com/teslashibe/go-laser/pkg/tracking"
	"github.com/teslashibe/go-laser/pkg/web"
)

// Status is the payload of GET /api/status.
type Status struct {
	Tracking tracking.Status `json:"tracking"`
	Policy   session.Policy  `json:"policy"`
	Sessions []session.Info  `json:"sessions"`
	Clients  int             `json:"clients"`
	Alerts   bool            `json:"alerts_enabled"`
}

// App is the laser pointer application orchestrator.
// It manages all components and their lifecycle.
type App struct {
	config Config
	logger *slog.Logger

	// Actuation
	selection  actuator.Selection
	controller *tracking.Controller

	// Sessions
	registry *session.Registry

	// Storage & integrations
	store  *paths.Store
	mailer *alert.Mailer

	// Web
	statusHub *hub.Hub
	webServer *web.Server
	listener  net.Listener

	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates a new application with the given configuration.
func New(cfg Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &App{config: cfg, logger: logger}, nil
}

// Init initializes all components and binds the listen address.
// Call this after New() and before Run().
func (a *App) Init() error {
	sel, err := actuator.Select(a.config.Actuator, a.logger)
	if err != nil {
		return fmt.Errorf("actuator: %w", err)
	}
	a.selection = sel
	if sel.Fallback != nil {
		a.logger.Warn("hardware unavailable, using simulated actuator", "error", sel.Fallback)
	}

	a.statusHub = hub.New("status", a.logger)

	a.controller = tracking.NewController(a.config.Tracking, a.config.Servo, sel.Driver, a.logger)
	a.controller.OnUpdate = func(u tracking.Update) {
		a.statusHub.Publish(hub.EventState, u)
	}
	a.controller.OnActuationError = func(err error) {
		a.statusHub.Publish(hub.EventActuationError, map[string]string{"error": err.Error()})
	}

	api, err := session.NewAPI(a.config.Session)
	if err != nil {
		return fmt.Errorf("webrtc: %w", err)
	}
	a.registry, err = session.NewRegistry(api, a.controller, a.config.Session, a.config.Policy, a.logger)
	if err != nil {
		return fmt.Errorf("sessions: %w", err)
	}

	a.store, err = paths.Open(a.config.PathsDB)
	if err != nil {
		return fmt.Errorf("paths: %w", err)
	}

	a.mailer = alert.New(a.config.Alert, a.logger)
	if !a.mailer.Enabled() {
		a.logger.Info("alert mail disabled, SMTP_HOST or SMTP_FROM not set")
	}

	a.webServer = web.NewServer(web.Config{
		Host:   a.config.Host,
		Port:   a.config.Port,
		WebDir: a.config.WebDir,
	}, web.Deps{
		Sessions: a.registry,
		Paths:    a.store,
		Alerts:   a.mailer,
		Status:   func() any { return a.Status() },
		Hub:      a.statusHub,
	}, a.logger)

	addr := net.JoinHostPort(a.config.Host, strconv.Itoa(a.config.Port))
	a.listener, err = net.Listen("tcp", addr)
	if err != nil {
		a.store.Close()
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	a.logger.Info("initialized",
		"backend", sel.Backend,
		"policy", a.registry.Policy(),
		"addr", a.listener.Addr().String(),
	)
	return nil
}

// Addr returns the bound listen address. Valid after Init.
func (a *App) Addr() net.Addr {
	return a.listener.Addr()
}

// Status returns a snapshot of the whole application.
func (a *App) Status() Status {
	return Status{
		Tracking: a.controller.Status(),
		Policy:   a.registry.Policy(),
		Sessions: a.registry.Infos(),
		Clients:  a.statusHub.ClientCount(),
		Alerts:   a.mailer.Enabled(),
	}
}

// Run starts the control loop and the HTTP server.
// Blocks until ctx is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.statusHub.Run(ctx)

	errc := make(chan error, 2)
	go func() {
		if err := a.controller.Run(ctx); err != nil {
			errc <- fmt.Errorf("controller: %w", err)
		}
	}()
	go func() {
		if err := a.webServer.Listen(a.listener); err != nil {
			errc <- fmt.Errorf("web server: %w", err)
		}
	}()

	a.logger.Info("laser pointer ready", "addr", a.listener.Addr().String())

	select {
	case <-ctx.Done():
		return nil
	case err := <-errc:
		return err
	case <-a.controller.Done():
		return errors.New("controller stopped")
	}
}

// Shutdown gracefully shuts down all components: the server stops
// accepting, sessions are closed, then the laser is switched off and the
// axes stopped. It runs once; later calls return the first result.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownOnce.Do(func() {
		var errs []error
		if a.webServer != nil {
			if err := a.webServer.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("web server: %w", err))
			}
		}
		if a.listener != nil {
			// Already closed when the server was serving on it.
			a.listener.Close()
		}
		if a.registry != nil {
			a.registry.CloseAll()
		}
		if a.controller != nil {
			if err := a.controller.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("controller: %w", err))
			}
		}
		if a.store != nil {
			if err := a.store.Close(); err != nil {
				errs = append(errs, fmt.Errorf("paths: %w", err))
			}
		}
		a.shutdownErr = errors.Join(errs...)
		a.logger.Info("shutdown complete")
	})
	return a.shutdownErr
}
