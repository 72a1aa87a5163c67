package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key has never been written to storage.
var ErrNotFound = errors.New("storage: record not found")

// Keys of the persisted extension state.
const (
	KeyBlockedSites = "blockedSites"
	KeyTrackingData = "trackingData"
	KeyFocusMode    = "focusMode"
)

// Store represents the root storage interface.
type Store interface {
	Close() error
	State() StateStore
}

// StateStore persists the blocked sites, tracking data and focus mode flag.
// Writes replace the stored value for the key; there is no merge.
type StateStore interface {
	GetBlockedSites(ctx context.Context) ([]string, error)
	SetBlockedSites(ctx context.Context, sites []string) error
	GetTrackingData(ctx context.Context) (map[string]UsageRecord, error)
	SetTrackingData(ctx context.Context, data map[string]UsageRecord) error
	GetFocusMode(ctx context.Context) (bool, error)
	SetFocusMode(ctx context.Context, enabled bool) error
}
