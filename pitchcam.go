package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pitchcam/config"
	"pitchcam/detection"
	"pitchcam/overlay"
	"pitchcam/pipeline"
	"pitchcam/store"
	"pitchcam/stream"
	"pitchcam/tracking"

	"github.com/rs/zerolog"
)

const shutdownTimeout = 5 * time.Second

var (
	configPath = flag.String("config", "", "JSON configuration file (optional; built-in defaults otherwise)")
	device     = flag.String("device", "", "Capture device ID or video file/URL (overrides config)\n\t\tExample: -device=0 or -device=/dev/video2")
	addr       = flag.String("addr", "", "HTTP listen address (overrides config)\n\t\tExample: -addr=:5000")
	debugMode  = flag.Bool("debug", false, "Enable debug logging (overrides config logLevel)")
	kalman     = flag.Bool("kalman", false, "Smooth detections with the Kalman filter before estimating speed")
	model      = flag.String("model", "", "Speed model: baseline, freefall or smoothed (overrides config)")
	storePath  = flag.String("store", "", "SQLite speed log path (overrides config; empty keeps the log disabled)")
	trajectory = flag.Bool("trajectory", false, "Draw the buffered trajectory and a marker on the ball")
)

// applyFlagOverrides copies explicitly set flags over the loaded configuration
func applyFlagOverrides(cfg *config.Config, set map[string]bool) {
	if set["device"] {
		cfg.Device = *device
	}
	if set["addr"] {
		cfg.Addr = *addr
	}
	if set["debug"] && *debugMode {
		cfg.LogLevel = "debug"
	}
	if set["kalman"] {
		cfg.Tracking.Kalman = *kalman
	}
	if set["model"] {
		cfg.Speed.Model = *model
	}
	if set["store"] {
		cfg.Store.Path = *storePath
	}
	if set["trajectory"] {
		cfg.Trajectory = *trajectory
	}
}

func setDebugFunctions(fn func(string, string, ...string)) {
	detection.SetDebugFunction(fn)
	tracking.SetDebugFunction(fn)
	overlay.SetDebugFunction(fn)
	pipeline.SetDebugFunction(fn)
	stream.SetDebugFunction(fn)
}

func main() {
	flag.Parse()

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	applyFlagOverrides(cfg, set)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	level := parseLevel(cfg.LogLevel)
	zerolog.SetGlobalLevel(level)
	globalDebugLogger = NewDebugLogger(os.Stderr, level, false)
	setDebugFunctions(debugMsg)

	debugMsg("INFO", fmt.Sprintf("Speed model %s at %.1f px/m, Kalman %v, device %s",
		cfg.Speed.Model, cfg.Speed.PixelsPerMeter, cfg.Tracking.Kalman, cfg.Device))

	var readings stream.ReadingLister
	var recorder pipeline.Recorder
	if cfg.Store.Path != "" {
		db, err := store.Open(cfg.Store.Path)
		if err != nil {
			debugMsg("ERROR", fmt.Sprintf("Speed log unavailable: %v", err))
			os.Exit(1)
		}
		defer db.Close()
		readings = db
		recorder = db
		debugMsg("STORE", "Recording speeds to "+cfg.Store.Path)
	}

	sessionConfig := cfg.SessionConfig()
	srv := stream.NewServer(stream.Options{
		OpenSource: func() (stream.Source, error) {
			return stream.OpenCamera(cfg.Device)
		},
		NewSession: func() (*pipeline.Session, error) {
			return pipeline.NewSession(sessionConfig, recorder)
		},
		Readings:    readings,
		JPEGQuality: cfg.JPEGQuality,
	})

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		debugMsg("INFO", fmt.Sprintf("Received signal %v. Shutting down...", sig))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// Open streams never go idle, so fall back to closing them
		if err := httpServer.Shutdown(ctx); err != nil {
			httpServer.Close()
		}
	}()

	debugMsg("INFO", "Listening on "+cfg.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		debugMsg("ERROR", fmt.Sprintf("HTTP server failed: %v", err))
		os.Exit(1)
	}
	debugMsg("INFO", "Server stopped")
}
