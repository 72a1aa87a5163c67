package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goodtune/sitefocus/internal/api"
	"github.com/goodtune/sitefocus/internal/config"
	"github.com/goodtune/sitefocus/internal/hostname"
	"github.com/goodtune/sitefocus/internal/metrics"
	"github.com/goodtune/sitefocus/internal/model"
	"github.com/goodtune/sitefocus/internal/notify"
	"github.com/goodtune/sitefocus/internal/policy"
	"github.com/goodtune/sitefocus/internal/recommend"
	"github.com/goodtune/sitefocus/internal/storage"
	"github.com/goodtune/sitefocus/internal/storage/bolt"
	"github.com/goodtune/sitefocus/internal/storage/redis"
	"github.com/goodtune/sitefocus/internal/systemd"
	"github.com/goodtune/sitefocus/internal/tracking"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start sitefocus server",
	Long:  `Start the sitefocus daemon with the add-on API, the tracking supervisor and the metrics endpoint.`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger
	logger, logCloser := setupLogger(cfg.Logging)
	defer func() { _ = logCloser.Close() }()
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting sitefocus")

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	// Initialize storage
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().
		Str("type", cfg.Storage.Type).
		Str("path", cfg.Storage.Path).
		Msg("Storage initialized")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Model loads in the background; recommendations stay empty until it does
	loader := newModelLoader(cfg.Model, logger)
	engine, err := newRecommender(cfg, loader, policy.RealClock{}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize recommendations: %w", err)
	}
	if cfg.Recommendation.Mode == config.ModeModel {
		loader.Start(ctx)
	}

	resolver, err := hostname.NewResolver(cfg.Tracking.HostnameCacheSize)
	if err != nil {
		return err
	}

	hub := notify.NewHub(logger)

	supervisor := tracking.NewSupervisor(tracking.Config{
		TickInterval:    parseDuration(cfg.Tracking.TickInterval, tracking.DefaultTickInterval),
		FlushEveryTicks: cfg.Tracking.FlushEveryTicks,
		FlushInterval:   parseDuration(cfg.Tracking.FlushInterval, tracking.DefaultFlushInterval),
		BlockedPage:     cfg.Enforcement.BlockedPage,
		MandatorySite:   cfg.Enforcement.MandatorySite,
	}, tracking.Dependencies{
		Store:       store.State(),
		Resolver:    resolver,
		Browser:     hub,
		Notifier:    hub,
		Recommender: engine,
	}, logger)

	supervisorErr := make(chan error, 1)
	go func() {
		supervisorErr <- supervisor.Run(ctx)
	}()

	// Initialize API Server
	apiAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.APIPort)
	apiServer := api.NewServer(api.Config{
		ListenAddr:     apiAddr,
		AllowedOrigins: cfg.Server.AllowOrigins,
	}, supervisor, hub, logger)
	if sdListeners.API != nil {
		apiServer.SetListener(sdListeners.API)
	}
	if err := apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	// Initialize Metrics Server
	var metricsServer *metrics.Server
	if cfg.Server.MetricsPort > 0 || sdListeners.Metrics != nil {
		metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort)
		metricsServer = metrics.NewServer(metricsAddr, logger)
		if sdListeners.Metrics != nil {
			metricsServer.SetListener(sdListeners.Metrics)
		}
		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to notify systemd")
	}

	logger.Info().
		Str("api", apiAddr).
		Str("mode", cfg.Recommendation.Mode).
		Msg("sitefocus startup complete")

	// Wait for shutdown signal
	<-ctx.Done()

	logger.Info().Msg("Shutdown signal received, gracefully stopping...")
	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to notify systemd")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error stopping API server")
	}

	// The supervisor flushes usage before returning
	if err := <-supervisorErr; err != nil {
		logger.Error().Err(err).Msg("Tracking supervisor error")
	}

	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping metrics server")
		}
	}

	logger.Info().Msg("sitefocus stopped")
	return nil
}

// newModelLoader builds the decision tree loader from configuration
func newModelLoader(cfg config.ModelConfig, logger zerolog.Logger) *model.Loader {
	return model.NewLoader(model.Config{
		Source:      cfg.Source,
		MaxAttempts: cfg.MaxAttempts,
		RetryDelay:  parseDuration(cfg.RetryDelay, 2*time.Second),
		HTTPTimeout: parseDuration(cfg.HTTPTimeout, 10*time.Second),
	}, logger)
}

// newRecommender builds the recommendation engine for the configured mode
func newRecommender(cfg *config.Config, loader *model.Loader, clock policy.Clock, logger zerolog.Logger) (*recommend.Engine, error) {
	var rule recommend.Rule
	if cfg.Recommendation.Mode == config.ModeThreshold {
		threshold, err := policy.NewThresholdRule(policy.ThresholdConfig{
			ThresholdSeconds: cfg.Recommendation.ThresholdSeconds,
			VisitThreshold:   cfg.Recommendation.VisitThreshold,
			PolicyFile:       cfg.Recommendation.PolicyFile,
		}, logger)
		if err != nil {
			return nil, err
		}
		rule = threshold
	}

	return recommend.NewEngine(recommend.Config{
		Mode:            cfg.Recommendation.Mode,
		ExcludedDomains: cfg.Recommendation.ExcludedDomains,
		WorkHoursStart:  cfg.Recommendation.WorkHoursStart,
		WorkHoursEnd:    cfg.Recommendation.WorkHoursEnd,
	}, loader, rule, clock, logger), nil
}

// openStorage opens the configured storage backend
func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "", "bolt":
		return bolt.Open(cfg.Path)
	case "redis":
		return redis.Open(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// setupLogger configures the logger based on configuration. The returned
// closer releases the log file, if any.
func setupLogger(cfg config.LoggingConfig) (zerolog.Logger, io.Closer) {
	// Set log level
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	var out io.WriteCloser = nopCloser{os.Stdout}
	if cfg.File != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
	}

	// Set output format
	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out, NoColor: cfg.File != ""}).With().Timestamp().Logger(), out
	}

	// Default to JSON
	return zerolog.New(out).With().Timestamp().Logger(), out
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// parseDuration parses a duration string with a fallback
func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
