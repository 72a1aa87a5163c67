// Package tracking owns the active browsing session: it counts dwell time
// per hostname, enforces focus mode and periodically persists usage.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/goodtune/sitefocus/internal/hostname"
	"github.com/goodtune/sitefocus/internal/metrics"
	"github.com/goodtune/sitefocus/internal/notify"
	"github.com/goodtune/sitefocus/internal/policy"
	"github.com/goodtune/sitefocus/internal/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// DefaultTickInterval is the dwell time credited per tick
	DefaultTickInterval = time.Second

	// DefaultFlushEveryTicks is how many session ticks pass between flushes
	DefaultFlushEveryTicks = 5

	// DefaultFlushInterval is the activity independent flush period
	DefaultFlushInterval = 30 * time.Second
)

// ErrStopped is returned for requests made after the supervisor stopped
var ErrStopped = errors.New("supervisor stopped")

// HostResolver maps a tab URL to its hostname
type HostResolver interface {
	Resolve(rawURL string) (string, error)
}

// Notifier receives outbound notifications
type Notifier interface {
	Publish(n notify.Notification) int
}

// Recommender evaluates usage for sites worth blocking
type Recommender interface {
	Evaluate(ctx context.Context, usage map[string]storage.UsageRecord, blocked map[string]struct{}) []string
}

// Config holds supervisor configuration
type Config struct {
	TickInterval    time.Duration
	FlushEveryTicks int
	FlushInterval   time.Duration
	BlockedPage     string
	MandatorySite   string
}

// Dependencies are the collaborators of the supervisor. Store and Resolver
// are required.
type Dependencies struct {
	Store       storage.StateStore
	Resolver    HostResolver
	Browser     Browser
	Notifier    Notifier
	Recommender Recommender
	Clock       policy.Clock
	NewTicker   TickerFactory
}

// Supervisor serializes every state change on one goroutine. Tab events,
// commands, session ticks and the periodic flush are all handled by Run.
type Supervisor struct {
	config      Config
	store       storage.StateStore
	resolver    HostResolver
	notifier    Notifier
	recommender Recommender
	enforcer    *Enforcer
	clock       policy.Clock
	newTicker   TickerFactory
	logger      zerolog.Logger

	// Owned by the Run goroutine
	state   SessionState
	session *Session

	requests chan func()
	stopped  chan struct{}
}

// NewSupervisor creates a supervisor. Call Run to start it.
func NewSupervisor(config Config, deps Dependencies, logger zerolog.Logger) *Supervisor {
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultTickInterval
	}
	if config.FlushEveryTicks <= 0 {
		config.FlushEveryTicks = DefaultFlushEveryTicks
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = DefaultFlushInterval
	}
	if deps.Clock == nil {
		deps.Clock = policy.RealClock{}
	}
	if deps.NewTicker == nil {
		deps.NewTicker = NewRealTicker
	}

	logger = logger.With().Str("component", "tracking").Logger()

	return &Supervisor{
		config:      config,
		store:       deps.Store,
		resolver:    deps.Resolver,
		notifier:    deps.Notifier,
		recommender: deps.Recommender,
		enforcer:    NewEnforcer(deps.Browser, config.BlockedPage, logger),
		clock:       deps.Clock,
		newTicker:   deps.NewTicker,
		logger:      logger,
		state: SessionState{
			Usage:   make(map[string]storage.UsageRecord),
			Blocked: make(map[string]struct{}),
		},
		requests: make(chan func()),
		stopped:  make(chan struct{}),
	}
}

// Run loads state from the store and processes events until ctx is done.
// The active session is ended and usage flushed before Run returns.
func (s *Supervisor) Run(ctx context.Context) error {
	defer close(s.stopped)

	s.load(ctx)

	flushTicker := s.newTicker(s.config.FlushInterval)
	defer flushTicker.Stop()

	s.logger.Info().
		Dur("tick_interval", s.config.TickInterval).
		Int("flush_every_ticks", s.config.FlushEveryTicks).
		Dur("flush_interval", s.config.FlushInterval).
		Msg("Tracking supervisor started")

	for {
		var tickC <-chan time.Time
		if s.session != nil && s.session.Phase == PhaseTracking {
			tickC = s.session.ticker.C()
		}

		select {
		case <-ctx.Done():
			s.shutdown(context.WithoutCancel(ctx))
			return nil
		case req := <-s.requests:
			req()
		case <-tickC:
			s.tick(ctx)
		case <-flushTicker.C():
			s.flush(ctx, "interval")
		}
	}
}

// Done is closed once Run has returned
func (s *Supervisor) Done() <-chan struct{} {
	return s.stopped
}

// do runs fn on the supervisor goroutine and waits for it to finish
func (s *Supervisor) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	req := func() {
		defer close(done)
		fn()
	}

	select {
	case s.requests <- req:
	case <-s.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	<-done
	return nil
}

// TabActivated ends the current session and starts tracking the hostname of
// url on tabID. A URL without a hostname ends the current session without
// starting a new one.
func (s *Supervisor) TabActivated(ctx context.Context, tabID int, url string) (bool, error) {
	var (
		started bool
		err     error
	)
	if doErr := s.do(ctx, func() {
		started, err = s.startSession(tabID, url)
	}); doErr != nil {
		return false, doErr
	}
	return started, err
}

// TabRemoved terminates the session if it tracks tabID
func (s *Supervisor) TabRemoved(ctx context.Context, tabID int) (bool, error) {
	var ended bool
	err := s.do(ctx, func() {
		if s.session == nil || s.session.TabID != tabID {
			return
		}
		s.endSession(PhaseTerminated)
		ended = true
	})
	return ended, err
}

// ToggleFocusMode sets the focus mode flag and persists it
func (s *Supervisor) ToggleFocusMode(ctx context.Context, enabled bool) error {
	return s.do(ctx, func() {
		s.state.FocusMode = enabled
		s.setFocusGauge()

		if err := s.store.SetFocusMode(context.WithoutCancel(ctx), enabled); err != nil {
			s.storeError("set_focus_mode", err)
		}

		s.logger.Info().Bool("focus_mode", enabled).Msg("Focus mode changed")
	})
}

// ResetTrackingData clears all usage and publishes the empty summary
func (s *Supervisor) ResetTrackingData(ctx context.Context) error {
	return s.do(ctx, func() {
		s.state.Usage = make(map[string]storage.UsageRecord)

		if err := s.store.SetTrackingData(context.WithoutCancel(ctx), s.state.Usage); err != nil {
			s.storeError("set_tracking_data", err)
		}

		s.publish(notify.UpdateSummary(s.state.Usage))
		s.logger.Info().Msg("Tracking data reset")
	})
}

// AddBlockedSite adds site to the block list. It returns the canonical form
// of site and whether it was newly added.
func (s *Supervisor) AddBlockedSite(ctx context.Context, site string) (string, bool, error) {
	canonical, err := hostname.Canonical(site)
	if err != nil {
		return "", false, err
	}

	var added bool
	err = s.do(ctx, func() {
		if s.state.IsBlocked(canonical) {
			return
		}
		s.state.Blocked[canonical] = struct{}{}
		added = true
		s.persistBlocked(context.WithoutCancel(ctx))

		s.logger.Info().Str("site", canonical).Msg("Site added to block list")
	})
	return canonical, added, err
}

// FocusMode returns the focus mode flag
func (s *Supervisor) FocusMode(ctx context.Context) (bool, error) {
	var enabled bool
	err := s.do(ctx, func() {
		enabled = s.state.FocusMode
	})
	return enabled, err
}

// Snapshot returns a copy of the current state
func (s *Supervisor) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.do(ctx, func() {
		snap = Snapshot{
			TrackingData: storage.CloneUsage(s.state.Usage),
			BlockedSites: s.state.BlockedList(),
			FocusMode:    s.state.FocusMode,
		}
		if s.session != nil {
			snap.ActiveSession = s.session.info()
		}
	})
	return snap, err
}

func (s *Supervisor) load(ctx context.Context) {
	sites, err := s.store.GetBlockedSites(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.storeError("get_blocked_sites", err)
	}
	for _, site := range sites {
		s.state.Blocked[site] = struct{}{}
	}

	if mandatory, err := hostname.Canonical(s.config.MandatorySite); err == nil {
		s.state.Blocked[mandatory] = struct{}{}
	} else if s.config.MandatorySite != "" {
		s.logger.Error().Err(err).Str("site", s.config.MandatorySite).Msg("Invalid mandatory site")
	}
	s.persistBlocked(ctx)

	usage, err := s.store.GetTrackingData(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.storeError("get_tracking_data", err)
	}
	if usage != nil {
		s.state.Usage = usage
	}

	focus, err := s.store.GetFocusMode(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.storeError("get_focus_mode", err)
	}
	s.state.FocusMode = focus
	s.setFocusGauge()

	s.logger.Info().
		Int("blocked_sites", len(s.state.Blocked)).
		Int("tracked_sites", len(s.state.Usage)).
		Bool("focus_mode", s.state.FocusMode).
		Msg("State loaded")
}

func (s *Supervisor) startSession(tabID int, url string) (bool, error) {
	s.endSession(PhaseTerminated)

	host, err := s.resolver.Resolve(url)
	if err != nil {
		s.logger.Warn().Err(err).Int("tab_id", tabID).Str("url", url).Msg("Not tracking tab")
		return false, fmt.Errorf("failed to resolve tab url: %w", err)
	}

	rec := s.state.Usage[host]
	rec.Visits++
	s.state.Usage[host] = rec

	s.session = &Session{
		ID:        uuid.NewString(),
		TabID:     tabID,
		Hostname:  host,
		StartedAt: s.clock.Now(),
		Phase:     PhaseTracking,
		ticker:    s.newTicker(s.config.TickInterval),
	}

	metrics.SessionsStarted.Inc()
	metrics.ActiveSession.Set(1)

	s.logger.Debug().
		Str("session_id", s.session.ID).
		Int("tab_id", tabID).
		Str("host", host).
		Int64("visits", rec.Visits).
		Msg("Started tracking session")

	return true, nil
}

func (s *Supervisor) endSession(phase Phase) {
	if s.session == nil {
		return
	}

	if s.session.Phase == PhaseTracking {
		s.session.ticker.Stop()
		s.session.Phase = phase
		metrics.ActiveSession.Set(0)
	}

	s.logger.Debug().
		Str("session_id", s.session.ID).
		Str("host", s.session.Hostname).
		Int("ticks", s.session.Ticks).
		Str("phase", s.session.Phase.String()).
		Msg("Ended tracking session")

	s.session = nil
}

func (s *Supervisor) tick(ctx context.Context) {
	sess := s.session

	if s.enforcer.ShouldBlock(&s.state, sess.Hostname) {
		s.enforcer.Block(ctx, sess)
		return
	}

	rec := s.state.Usage[sess.Hostname]
	rec.TimeSeconds++
	s.state.Usage[sess.Hostname] = rec
	sess.Ticks++
	metrics.TrackedSeconds.Inc()

	if sess.Ticks%s.config.FlushEveryTicks == 0 {
		s.flush(ctx, "ticks")
		s.recommend(ctx)
	}
}

func (s *Supervisor) flush(ctx context.Context, reason string) {
	if err := s.store.SetTrackingData(ctx, storage.CloneUsage(s.state.Usage)); err != nil {
		s.storeError("set_tracking_data", err)
		return
	}
	metrics.Flushes.WithLabelValues(reason).Inc()
	s.publish(notify.UpdateSummary(s.state.Usage))
}

func (s *Supervisor) recommend(ctx context.Context) {
	if s.recommender == nil {
		return
	}

	blocked := make(map[string]struct{}, len(s.state.Blocked))
	for site := range s.state.Blocked {
		blocked[site] = struct{}{}
	}

	sites := s.recommender.Evaluate(ctx, storage.CloneUsage(s.state.Usage), blocked)
	s.publish(notify.RecommendBlockedSites(sites))
}

func (s *Supervisor) shutdown(ctx context.Context) {
	s.endSession(PhaseTerminated)
	s.flush(ctx, "shutdown")
	s.logger.Info().Msg("Tracking supervisor stopped")
}

func (s *Supervisor) persistBlocked(ctx context.Context) {
	metrics.BlockedSites.Set(float64(len(s.state.Blocked)))
	if err := s.store.SetBlockedSites(ctx, s.state.BlockedList()); err != nil {
		s.storeError("set_blocked_sites", err)
	}
}

func (s *Supervisor) publish(n notify.Notification) {
	if s.notifier != nil {
		s.notifier.Publish(n)
	}
}

func (s *Supervisor) setFocusGauge() {
	if s.state.FocusMode {
		metrics.FocusModeEnabled.Set(1)
	} else {
		metrics.FocusModeEnabled.Set(0)
	}
}

func (s *Supervisor) storeError(operation string, err error) {
	metrics.StoreErrors.WithLabelValues(operation).Inc()
	s.logger.Error().Err(err).Str("operation", operation).Msg("Store operation failed")
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
