package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/goodtune/sitefocus/internal/config"
	"github.com/goodtune/sitefocus/internal/storage"
	"github.com/google/go-cmp/cmp"
)

func setupTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	// miniredis.Addr() returns "host:port", so Port stays zero
	cfg := config.RedisConfig{
		Host:         mr.Addr(),
		Port:         0,
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 1,
		DialTimeout:  "5s",
		ReadTimeout:  "3s",
		WriteTimeout: "3s",
		KeyPrefix:    "test",
	}

	store, err := Open(cfg)
	if err != nil {
		t.Fatalf("Failed to open Redis store: %v", err)
	}

	return store, mr
}

func TestStateStore_MissingKeys(t *testing.T) {
	store, _ := setupTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	state := store.State()

	if _, err := state.GetBlockedSites(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for blocked sites, got %v", err)
	}
	if _, err := state.GetTrackingData(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for tracking data, got %v", err)
	}
	if _, err := state.GetFocusMode(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for focus mode, got %v", err)
	}
}

func TestStateStore_BlockedSites(t *testing.T) {
	store, mr := setupTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	state := store.State()

	if err := state.SetBlockedSites(ctx, []string{"web.whatsapp.com", "news.example.com"}); err != nil {
		t.Fatalf("SetBlockedSites failed: %v", err)
	}

	sites, err := state.GetBlockedSites(ctx)
	if err != nil {
		t.Fatalf("GetBlockedSites failed: %v", err)
	}
	want := []string{"news.example.com", "web.whatsapp.com"}
	if diff := cmp.Diff(want, sites); diff != "" {
		t.Errorf("Blocked sites mismatch (-want +got):\n%s", diff)
	}

	if !mr.Exists("test:blocked_sites") {
		t.Error("Expected test:blocked_sites key to exist")
	}

	// Replacing with fewer entries drops the old ones
	if err := state.SetBlockedSites(ctx, []string{"web.whatsapp.com"}); err != nil {
		t.Fatalf("SetBlockedSites failed: %v", err)
	}
	sites, err = state.GetBlockedSites(ctx)
	if err != nil {
		t.Fatalf("GetBlockedSites failed: %v", err)
	}
	if len(sites) != 1 || sites[0] != "web.whatsapp.com" {
		t.Errorf("Expected only web.whatsapp.com, got %v", sites)
	}
}

func TestStateStore_TrackingData(t *testing.T) {
	store, _ := setupTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	state := store.State()

	usage := map[string]storage.UsageRecord{
		"docs.example.com":   {TimeSeconds: 12, Visits: 1},
		"social.example.com": {TimeSeconds: 400, Visits: 7},
	}
	if err := state.SetTrackingData(ctx, usage); err != nil {
		t.Fatalf("SetTrackingData failed: %v", err)
	}

	got, err := state.GetTrackingData(ctx)
	if err != nil {
		t.Fatalf("GetTrackingData failed: %v", err)
	}
	if diff := cmp.Diff(usage, got); diff != "" {
		t.Errorf("Tracking data mismatch (-want +got):\n%s", diff)
	}

	// Reset writes an empty map, which must read back as empty rather than missing
	if err := state.SetTrackingData(ctx, map[string]storage.UsageRecord{}); err != nil {
		t.Fatalf("SetTrackingData failed: %v", err)
	}
	got, err = state.GetTrackingData(ctx)
	if err != nil {
		t.Fatalf("GetTrackingData after reset failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected empty tracking data, got %v", got)
	}
}

func TestStateStore_FocusMode(t *testing.T) {
	store, mr := setupTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	state := store.State()

	if err := state.SetFocusMode(ctx, true); err != nil {
		t.Fatalf("SetFocusMode failed: %v", err)
	}
	enabled, err := state.GetFocusMode(ctx)
	if err != nil {
		t.Fatalf("GetFocusMode failed: %v", err)
	}
	if !enabled {
		t.Error("Expected focus mode to be enabled")
	}

	value, err := mr.Get("test:focus_mode")
	if err != nil {
		t.Fatalf("miniredis Get failed: %v", err)
	}
	if value != "1" {
		t.Errorf("Expected stored value 1, got %q", value)
	}

	if err := state.SetFocusMode(ctx, false); err != nil {
		t.Fatalf("SetFocusMode failed: %v", err)
	}
	enabled, err = state.GetFocusMode(ctx)
	if err != nil {
		t.Fatalf("GetFocusMode failed: %v", err)
	}
	if enabled {
		t.Error("Expected focus mode to be disabled")
	}
}
