// Package api is the local HTTP surface the browser add-on talks to.
package api

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/goodtune/sitefocus/internal/notify"
	"github.com/goodtune/sitefocus/internal/tracking"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// Supervisor is the state owner the API forwards to
type Supervisor interface {
	TabActivated(ctx context.Context, tabID int, url string) (bool, error)
	TabRemoved(ctx context.Context, tabID int) (bool, error)
	ToggleFocusMode(ctx context.Context, enabled bool) error
	ResetTrackingData(ctx context.Context) error
	AddBlockedSite(ctx context.Context, site string) (string, bool, error)
	FocusMode(ctx context.Context) (bool, error)
	Snapshot(ctx context.Context) (tracking.Snapshot, error)
}

// Events provides notification subscriptions for the event stream
type Events interface {
	Subscribe() *notify.Subscription
	Unsubscribe(sub *notify.Subscription)
}

// Config holds the API server configuration.
type Config struct {
	ListenAddr     string
	AllowedOrigins []string
	KeepAlive      time.Duration // event stream comment interval
}

// Server represents the API HTTP server.
type Server struct {
	config     Config
	supervisor Supervisor
	events     Events
	router     *mux.Router
	server     *http.Server
	listener   net.Listener // Optional pre-created listener (for systemd socket activation)
	logger     zerolog.Logger

	closing   chan struct{}
	closeOnce sync.Once
}

// NewServer creates a new API server.
func NewServer(cfg Config, supervisor Supervisor, events Events, logger zerolog.Logger) *Server {
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 15 * time.Second
	}

	s := &Server{
		config:     cfg,
		supervisor: supervisor,
		events:     events,
		router:     mux.NewRouter(),
		logger:     logger.With().Str("component", "api").Logger(),
		closing:    make(chan struct{}),
	}

	// Setup routes
	s.setupRoutes()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})

	// No WriteTimeout: the event stream is long lived
	s.server = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           corsHandler.Handler(s.router),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Apply global middleware
	s.router.Use(LoggingMiddleware(s.logger))

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/messages", s.handleMessage).Methods(http.MethodPost)
	api.HandleFunc("/tabs/activated", s.handleTabActivated).Methods(http.MethodPost)
	api.HandleFunc("/tabs/removed", s.handleTabRemoved).Methods(http.MethodPost)
	api.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	api.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the API server.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.config.ListenAddr).Msg("Starting API server")
	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated API listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("API server error")
		}
	}()
	return nil
}

// Stop gracefully stops the API server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping API server")
	// Event streams never go idle on their own
	s.closeOnce.Do(func() { close(s.closing) })
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}
