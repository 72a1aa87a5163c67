package tracking

import (
	"context"

	"github.com/goodtune/sitefocus/internal/metrics"
	"github.com/rs/zerolog"
)

// Browser carries out tab navigation in the add-on
type Browser interface {
	Redirect(ctx context.Context, tabID int, url string) error
}

// Enforcer moves sessions on blocked sites from Tracking to Blocked while
// focus mode is on
type Enforcer struct {
	browser     Browser
	blockedPage string
	logger      zerolog.Logger
}

// NewEnforcer creates an enforcer redirecting to blockedPage
func NewEnforcer(browser Browser, blockedPage string, logger zerolog.Logger) *Enforcer {
	return &Enforcer{
		browser:     browser,
		blockedPage: blockedPage,
		logger:      logger.With().Str("component", "enforcer").Logger(),
	}
}

// ShouldBlock reports whether a tracking session on host must be blocked
func (e *Enforcer) ShouldBlock(state *SessionState, host string) bool {
	return state.FocusMode && state.IsBlocked(host)
}

// Block redirects the session's tab and stops its ticks. The session stays
// Blocked even if the redirect could not be delivered.
func (e *Enforcer) Block(ctx context.Context, sess *Session) {
	sess.ticker.Stop()
	sess.Phase = PhaseBlocked
	metrics.FocusBlocks.Inc()
	metrics.ActiveSession.Set(0)

	if e.browser == nil {
		e.logger.Warn().Int("tab_id", sess.TabID).Msg("No browser attached, cannot redirect")
		return
	}
	if err := e.browser.Redirect(ctx, sess.TabID, e.blockedPage); err != nil {
		e.logger.Warn().
			Err(err).
			Int("tab_id", sess.TabID).
			Str("host", sess.Hostname).
			Msg("Failed to redirect blocked tab")
		return
	}

	e.logger.Info().
		Str("session_id", sess.ID).
		Int("tab_id", sess.TabID).
		Str("host", sess.Hostname).
		Msg("Blocked site in focus mode")
}
