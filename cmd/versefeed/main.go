package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/versefeed/internal/catalog"
	"github.com/friendsincode/versefeed/internal/config"
	"github.com/friendsincode/versefeed/internal/db"
	"github.com/friendsincode/versefeed/internal/eventbus"
	"github.com/friendsincode/versefeed/internal/events"
	"github.com/friendsincode/versefeed/internal/logging"
	"github.com/friendsincode/versefeed/internal/registry"
	"github.com/friendsincode/versefeed/internal/server"
	"github.com/friendsincode/versefeed/internal/session"
	"github.com/friendsincode/versefeed/internal/telemetry"
)

var (
	logger zerolog.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "versefeed",
	Short: "Versefeed - media playback coordination engine",
	Long:  "Versefeed coordinates playback across the content feed: one active player, scroll-driven autoplay, and app-wide mute state.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the playback coordination service",
	Long:  "Host the playback registry and audio session with the HTTP introspection API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration (called by commands that need it)
func loadConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = logging.Setup(cfg.Environment)
	return nil
}

func newSessionStore() (session.Store, func(), error) {
	switch cfg.SessionBackend {
	case config.SessionStoreRedis:
		store, err := session.NewRedisStore(session.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("initialize redis session store: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return session.NewFileStore(cfg.SessionStatePath), func() {}, nil
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	logger.Info().Msg("Versefeed starting")

	tracerProvider, err := telemetry.InitTracer(context.Background(), telemetry.TracerConfig{
		ServiceName:    "versefeed",
		ServiceVersion: "0.1.0",
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     cfg.TracingSampleRate,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown tracer provider")
		}
	}()

	database, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := db.Close(database); err != nil {
			logger.Error().Err(err).Msg("failed to close database")
		}
	}()

	catalogSvc := catalog.New(database, logger)
	if err := catalogSvc.Migrate(context.Background()); err != nil {
		return fmt.Errorf("migrate catalog: %w", err)
	}

	store, closeStore, err := newSessionStore()
	if err != nil {
		return err
	}
	defer closeStore()

	bus := events.NewBus()
	sessionMgr := session.NewManager(store, logger)
	sessionMgr.Subscribe(func(state session.AudioState) {
		bus.Publish(events.EventSessionChanged, events.Payload{
			"muted":       state.Muted,
			"volume":      state.Volume,
			"global_mute": state.GlobalMute,
		})
	})

	reg := registry.New(sessionMgr, bus, registry.Options{
		MaxStartAttempts: cfg.MaxStartAttempts,
		RetryInterval:    cfg.StartRetryInterval,
	}, logger)
	defer reg.Close()

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	if cfg.NATSEnabled {
		bridge, err := eventbus.NewBridge(cfg.NATSURL, cfg.EventSubjectPrefix, logger)
		if err != nil {
			return fmt.Errorf("initialize event bridge: %w", err)
		}
		bridge.Forward(bgCtx, bus,
			events.EventPlaybackActivated,
			events.EventPlaybackDeactivated,
			events.EventPlaybackFailed,
			events.EventSessionChanged,
			events.EventCardLiked,
			events.EventCardCommented,
			events.EventCardDownloaded,
		)
		defer func() {
			bgCancel()
			bridge.Close()
		}()
		logger.Info().Str("url", cfg.NATSURL).Msg("event bridge connected")
	}

	srv := server.New(cfg, reg, sessionMgr, logger)
	httpServer := srv.HTTPServer()

	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down gracefully...")

	reg.PauseAll()

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("Versefeed stopped")
	return nil
}
