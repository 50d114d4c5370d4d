package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/labframe/api/api"
	"github.com/labframe/api/cfg"
	"github.com/labframe/api/notify"
	"github.com/labframe/api/publisher"
	_ "github.com/labframe/api/publisher/sink"
	"github.com/labframe/api/store"
	"github.com/labframe/api/telemetry"
)

const statsCollectInterval = time.Minute

func main() {
	flag.Parse()

	// Load configuration
	err := cfg.Load(*cfg.ConfigPathFlag)
	if err != nil {
		panic(err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("Invalid configuration: %v", err))
	}

	// Setup logging
	var writer io.Writer = zerolog.NewConsoleWriter()
	if cfg.Config.Logging.Format == "json" {
		writer = os.Stdout
	}
	gLog := zerolog.New(writer).
		With().
		Timestamp().
		Uint64("instance_id", cfg.Config.InstanceID).
		Logger()

	if cfg.Config.Logging.Verbose {
		log.Logger = gLog.Level(zerolog.DebugLevel)
	} else {
		log.Logger = gLog.Level(zerolog.InfoLevel)
	}

	log.Info().Msg("LabFrame API - lab data with live change feeds")
	telemetry.InitializeTelemetry()
	telemetry.InitMetrics()

	// Project stores
	manager, err := store.NewManager(cfg.Config.DataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize project manager")
		return
	}
	defer manager.Close()

	// Change notification pipeline: one detector per open project,
	// fanned out through the hub
	hub := notify.NewHub(cfg.Config.Notify.QueueSize)
	defer hub.Close()

	detectors := notify.NewDetectorSet(hub, cfg.PollInterval())
	defer detectors.Close()

	manager.OnOpen(func(name string, s *store.Store) {
		detectors.Watch(name, s)
	})
	manager.OnEvict(func(name string) {
		detectors.Unwatch(name)
	})

	// Open the active project up front so its detector runs before the
	// first request arrives
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	if _, err := manager.Get(startupCtx, ""); err != nil {
		cancelStartup()
		log.Fatal().Err(err).Msg("Failed to open active project")
		return
	}
	cancelStartup()

	// External sinks
	registry, err := publisher.NewRegistry(hub, cfg.Config.Sinks)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize publisher registry")
		return
	}
	if err := registry.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start publisher registry")
		return
	}
	defer registry.Stop()

	collector := telemetry.NewMetricsCollector(manager, statsCollectInterval)
	collector.Start()
	defer collector.Stop()

	// HTTP API
	server := api.NewServer(api.NewHandlers(manager, hub))
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	log.Info().
		Str("data_dir", cfg.Config.DataDir).
		Dur("poll_interval", cfg.PollInterval()).
		Int("sinks", len(cfg.Config.Sinks)).
		Msg("LabFrame API started successfully")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP server shutdown incomplete")
	}
}
