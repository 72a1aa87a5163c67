package tracking

import (
	"time"

	"github.com/goodtune/sitefocus/internal/storage"
)

// Phase is the lifecycle state of a tracking session
type Phase int

const (
	// PhaseTracking accumulates time on every tick
	PhaseTracking Phase = iota
	// PhaseBlocked means the tab was redirected away by focus mode
	PhaseBlocked
	// PhaseTerminated means the tab was switched away from or closed
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseTracking:
		return "tracking"
	case PhaseBlocked:
		return "blocked"
	case PhaseTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Ticker delivers session ticks
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a ticker firing every d
type TickerFactory func(d time.Duration) Ticker

type realTicker struct {
	t *time.Ticker
}

// NewRealTicker wraps time.Ticker
func NewRealTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// Session is the single active tracking session
type Session struct {
	ID        string
	TabID     int
	Hostname  string
	StartedAt time.Time
	Ticks     int
	Phase     Phase

	ticker Ticker
}

// SessionInfo is a read-only view of a session
type SessionInfo struct {
	ID        string    `json:"id"`
	TabID     int       `json:"tabId"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"startedAt"`
	Ticks     int       `json:"ticks"`
	Phase     string    `json:"phase"`
}

func (s *Session) info() *SessionInfo {
	return &SessionInfo{
		ID:        s.ID,
		TabID:     s.TabID,
		Hostname:  s.Hostname,
		StartedAt: s.StartedAt,
		Ticks:     s.Ticks,
		Phase:     s.Phase.String(),
	}
}

// SessionState is the process-wide state owned by the supervisor loop
type SessionState struct {
	Usage     map[string]storage.UsageRecord
	Blocked   map[string]struct{}
	FocusMode bool
}

// IsBlocked reports whether host is on the block list
func (s *SessionState) IsBlocked(host string) bool {
	_, ok := s.Blocked[host]
	return ok
}

// BlockedList returns the block list in lexical order
func (s *SessionState) BlockedList() []string {
	return sortedKeys(s.Blocked)
}

// Snapshot is a copy of the supervisor state at one point in time
type Snapshot struct {
	TrackingData  map[string]storage.UsageRecord `json:"trackingData"`
	BlockedSites  []string                       `json:"blockedSites"`
	FocusMode     bool                           `json:"focusMode"`
	ActiveSession *SessionInfo                   `json:"activeSession"`
}
