// Package web serves the browser client, the signalling endpoint and the
// path, alert and status APIs.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-laser/pkg/alert"
	"github.com/teslashibe/go-laser/pkg/hub"
	"github.com/teslashibe/go-laser/pkg/paths"
	"github.com/teslashibe/go-laser/pkg/session"
)

// IndexFile is served at "/" from the web directory.
const IndexFile = "main.html"

// SessionOpener answers browser offers.
type SessionOpener interface {
	Open(ctx context.Context, offer session.Description) (*session.Session, session.Description, error)
}

// PathStore saves and lists drawn paths.
type PathStore interface {
	Save(ctx context.Context, name string, points json.RawMessage) (paths.Entry, error)
	List(ctx context.Context) ([]paths.Entry, error)
}

// AlertSender mails detection alerts.
type AlertSender interface {
	Send(ctx context.Context, a alert.Alert) error
}

// Config holds server settings.
type Config struct {
	Host   string
	Port   int
	WebDir string
}

// Addr returns host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Deps are the components the handlers call into.
type Deps struct {
	Sessions SessionOpener
	Paths    PathStore
	Alerts   AlertSender
	Status   func() any
	Hub      *hub.Hub
}

// Server is the HTTP server.
type Server struct {
	app    *fiber.App
	cfg    Config
	deps   Deps
	logger *slog.Logger

	// ctx bounds websocket clients; cancelled on Shutdown.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates the server and registers its routes.
func NewServer(cfg Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With("component", "web"),
		ctx:    ctx,
		cancel: cancel,
	}

	app := fiber.New(fiber.Config{
		AppName:               "go-laser",
		DisableStartupMessage: true,
	})

	// The page may be opened from another origin during development.
	app.Use(cors.New())

	app.Get("/", s.handleIndex)
	app.Post("/offer", s.handleOffer)
	app.Post("/save_path", s.handleSavePath)
	app.Get("/get_paths", s.handleGetPaths)
	app.Post("/send_alert", s.handleSendAlert)

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// Start listens on the configured address. It blocks until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("listening", "addr", s.cfg.Addr(), "web_dir", s.cfg.WebDir)
	return s.app.Listen(s.cfg.Addr())
}

// Listen serves on an existing listener. It blocks until Shutdown.
func (s *Server) Listen(ln net.Listener) error {
	s.logger.Info("listening", "addr", ln.Addr().String(), "web_dir", s.cfg.WebDir)
	return s.app.Listener(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	return s.app.ShutdownWithContext(ctx)
}
