// go-laser - WebRTC-driven pan-tilt laser pointer
// Browsers stream detections over a data channel; the pointer follows them.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-laser/internal/config"
	"github.com/teslashibe/go-laser/internal/log"
	"github.com/teslashibe/go-laser/pkg/actuator"
	"github.com/teslashibe/go-laser/pkg/laser"
	"github.com/teslashibe/go-laser/pkg/session"
	"github.com/teslashibe/go-laser/pkg/tracking"
)

// shutdownTimeout bounds the graceful shutdown.
const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Init("info")
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}

	log.Setup(cfg.Log)

	app, err := laser.New(cfg, log.L())
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}

	if err := app.Init(); err != nil {
		log.Error("initialization failed", "error", err)
		app.Shutdown(context.Background())
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.Shutdown(ctx); err != nil {
			log.Error("shutdown", "error", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx); err != nil {
		log.Error("runtime error", "error", err)
	}
}

// loadConfig builds the configuration: defaults, then .env and the
// environment, then command line flags.
func loadConfig() (laser.Config, error) {
	cfg := laser.DefaultConfig()

	envFile := flag.String("env", config.DefaultEnvFile, "Dotenv file to load")
	host := flag.String("host", "", "Listen host (overrides LASER_HOST)")
	port := flag.Int("port", 0, "Listen port (overrides LASER_PORT)")
	backend := flag.String("backend", "", "Actuator backend: auto, hardware, simulated (overrides LASER_BACKEND)")
	policy := flag.String("policy", "", "Session policy: shared, exclusive (overrides SESSION_POLICY)")
	preset := flag.String("preset", "", "Tracking preset: default, steady, responsive (overrides TRACKING_PRESET)")
	webDir := flag.String("web-dir", "", "Directory holding main.html (overrides WEB_DIR)")
	pathsDB := flag.String("paths-db", "", "SQLite file for saved paths (overrides PATHS_DB)")
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		return cfg, err
	}
	if err := cfg.LoadEnvConfig(); err != nil {
		return cfg, err
	}

	if *host != "" {
		cfg.Host = *host
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *backend != "" {
		cfg.Actuator.Backend = actuator.Backend(*backend)
	}
	if *policy != "" {
		cfg.Policy = session.Policy(*policy)
	}
	if *preset != "" {
		p, err := tracking.Preset(*preset)
		if err != nil {
			return cfg, err
		}
		cfg.Tracking = p
	}
	if *webDir != "" {
		cfg.WebDir = *webDir
	}
	if *pathsDB != "" {
		cfg.PathsDB = *pathsDB
	}
	if *debug {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}
