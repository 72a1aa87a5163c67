package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Tracking metrics
	SessionsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sitefocus_sessions_started_total",
			Help: "Total tracking sessions started by tab activation",
		},
	)

	TrackedSeconds = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sitefocus_tracked_seconds_total",
			Help: "Total seconds of active tab dwell time recorded",
		},
	)

	ActiveSession = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sitefocus_active_session",
			Help: "Whether a tracking session is currently running",
		},
	)

	Flushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitefocus_flushes_total",
			Help: "Tracking data flushes to the store",
		},
		[]string{"reason"},
	)

	StoreErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitefocus_store_errors_total",
			Help: "Failed store operations",
		},
		[]string{"operation"},
	)

	// Enforcement metrics
	FocusBlocks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sitefocus_focus_blocks_total",
			Help: "Sessions redirected to the blocked page",
		},
	)

	FocusModeEnabled = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sitefocus_focus_mode_enabled",
			Help: "Whether focus mode is on",
		},
	)

	BlockedSites = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sitefocus_blocked_sites",
			Help: "Number of entries in the block list",
		},
	)

	// Recommendation metrics
	Recommendations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sitefocus_recommendations",
			Help: "Size of the most recent recommendation set",
		},
	)

	ModelLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sitefocus_model_loaded",
			Help: "Whether the decision tree model is loaded",
		},
	)

	ModelLoadAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sitefocus_model_load_attempts_total",
			Help: "Attempts made to fetch the decision tree model",
		},
	)

	// API metrics
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitefocus_commands_total",
			Help: "Commands received from the add-on",
		},
		[]string{"type", "result"},
	)

	NotificationsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sitefocus_notifications_dropped_total",
			Help: "Notifications dropped because a subscriber was too slow",
		},
	)

	Subscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sitefocus_event_subscribers",
			Help: "Number of connected event stream subscribers",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		SessionsStarted,
		TrackedSeconds,
		ActiveSession,
		Flushes,
		StoreErrors,
		FocusBlocks,
		FocusModeEnabled,
		BlockedSites,
		Recommendations,
		ModelLoaded,
		ModelLoadAttempts,
		CommandsTotal,
		NotificationsDropped,
		Subscribers,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			// Use systemd socket-activated listener
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			// Create and bind listener ourselves
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
