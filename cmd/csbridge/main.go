package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"csbridge/internal/attachments"
	"csbridge/internal/config"
	"csbridge/internal/constants"
	"csbridge/internal/database"
	"csbridge/internal/events"
	"csbridge/internal/exclusions"
	"csbridge/internal/gate"
	"csbridge/internal/metrics"
	"csbridge/internal/models"
	"csbridge/internal/retry"
	"csbridge/internal/service"
	"csbridge/internal/timestamps"
	"csbridge/internal/tracing"
	"csbridge/pkg/circuitbreaker"
	"csbridge/pkg/gemini"
	"csbridge/pkg/whatsapp"
	"csbridge/pkg/whatsapp/types"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging (includes sensitive information)")
	configPath = flag.String("config", "config.json", "Path to configuration file (.json, .yaml or .yml)")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("csbridge %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting csbridge")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	configureLogLevel(logger, cfg.LogLevel, *verbose)

	tracingManager := tracing.NewTracingManager(cfg.Tracing, Version, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	db, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	zone := timestamps.NewZone(cfg.Timezone.Name, cfg.Timezone.OffsetHours)

	store, err := attachments.NewStore(cfg.Uploads.Dir, db, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize attachment store: %w", err)
	}
	exclusionStore, err := exclusions.NewFileStore(cfg.Gate.ExclusionsFile)
	if err != nil {
		return fmt.Errorf("failed to open exclusion list: %w", err)
	}
	inboundGate := gate.New(gate.Config{
		Keywords:      cfg.Gate.Keywords,
		MaxTextLength: cfg.Gate.MaxTextLength,
	}, exclusionStore, logger)

	waConfig := types.ClientConfig{
		BaseURL:     cfg.WhatsApp.APIBaseURL,
		APIKey:      cfg.WhatsApp.APIKey,
		SessionName: cfg.WhatsApp.SessionName,
		Timeout:     time.Duration(cfg.WhatsApp.TimeoutMs) * time.Millisecond,
	}
	if err := validator.New().Struct(waConfig); err != nil {
		return fmt.Errorf("invalid WhatsApp client configuration: %w", err)
	}
	waClient := whatsapp.NewClient(waConfig)

	generator := gemini.NewClient(gemini.Config{
		BaseURL: cfg.Generative.APIBaseURL,
		Model:   cfg.Generative.Model,
		APIKey:  cfg.Generative.APIKey,
		Timeout: time.Duration(cfg.Generative.TimeoutSec) * time.Second,
	})
	if cfg.Generative.APIKey == "" {
		logger.Warn("GEMINI_API_KEY not set, every auto-reply will use the fallback text")
	}
	breaker := circuitbreaker.NewWithLogger("generation",
		uint32(cfg.Generative.BreakerMaxFailures),
		time.Duration(cfg.Generative.BreakerResetSec)*time.Second,
		logger,
		circuitbreaker.WithStateChangeHook(func(name string, _, to circuitbreaker.State) {
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
		}),
	)

	publisher := newPublisher(cfg.Events, logger)
	defer publisher.Close()

	dispatcher := service.NewDispatcher(waClient, db, store, publisher, logger)
	replier := service.NewAutoReplier(generator, dispatcher, breaker, zone, timestamps.SystemClock(), service.AutoReplyConfig{
		Persona:      cfg.Generative.Persona,
		BusinessName: cfg.Generative.BusinessName,
		FallbackText: cfg.Generative.FallbackText,
		Timeout:      time.Duration(cfg.Generative.TimeoutSec) * time.Second,
	}, logger)
	intake := service.NewIntake(inboundGate, db, store, replier, publisher, logger)
	support := service.NewSupportService(db, store, dispatcher, exclusionStore, waClient, publisher, logger)

	listener := service.NewEventListener(waClient, intake, waClient, retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: time.Duration(cfg.Retry.InitialBackoffMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Retry.MaxBackoffMs) * time.Millisecond,
		Multiplier:   2.0,
		Jitter:       true,
	}), logger)

	ctxWithVerbose := service.WithVerbose(ctx, *verbose)
	if cfg.WhatsApp.EventMode == constants.EventModeWebsocket {
		if err := listener.Start(ctxWithVerbose); err != nil {
			return fmt.Errorf("failed to start event listener: %w", err)
		}
		defer listener.Stop()
		logger.WithField("session", cfg.WhatsApp.SessionName).Info("Listening for WhatsApp events over websocket")
	} else {
		logger.Info("Receiving WhatsApp events on /webhook/whatsapp")
	}

	watcher := config.NewConfigWatcher(*configPath, logger)
	watcher.WatchKeywords(inboundGate)
	go func() {
		if err := watcher.Start(ctx); err != nil {
			logger.WithError(err).Warn("Configuration watcher stopped")
		}
	}()

	server := NewServer(cfg, support, listener, db, zone, *verbose, logger)
	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		logger.Error(err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}

	logger.Info("Server shutdown completed")
	return nil
}

// configureLogLevel applies -verbose or the configured level. Without -verbose
// the level never goes below info, so message bodies stay out of the logs.
func configureLogLevel(logger *logrus.Logger, configured string, verbose bool) {
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled - sensitive information will be logged")
		return
	}
	level, err := logrus.ParseLevel(configured)
	if err != nil {
		logger.Warnf("Invalid log level %q, defaulting to info", configured)
		level = logrus.InfoLevel
	}
	if level > logrus.InfoLevel {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
}

// openDatabase opens the store with exponential backoff; the volume may not be
// mounted yet when the container starts.
func openDatabase(ctx context.Context, cfg *models.Config, logger *logrus.Logger) (*database.Database, error) {
	var db *database.Database
	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: time.Duration(cfg.Retry.InitialBackoffMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Retry.MaxBackoffMs) * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  constants.DefaultDatabaseRetryAttempts,
		Jitter:       true,
	})
	err := backoff.Retry(ctx, func() error {
		var initErr error
		db, initErr = database.New(cfg.Database.Path)
		if initErr != nil {
			logger.Warnf("Failed to initialize database: %v", initErr)
		}
		return initErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database after retries: %w", err)
	}
	return db, nil
}

// newPublisher connects the AMQP publisher when configured and otherwise
// returns a no-op. A broker outage at startup does not stop the bridge.
func newPublisher(cfg models.EventsConfig, logger *logrus.Logger) events.Publisher {
	if cfg.AMQPURL == "" {
		return events.Noop{}
	}
	pub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.Exchange, logger)
	if err != nil {
		logger.WithError(err).Warn("Failed to connect event publisher, events are disabled")
		return events.Noop{}
	}
	logger.WithField("exchange", cfg.Exchange).Info("Publishing conversation events")
	return pub
}
