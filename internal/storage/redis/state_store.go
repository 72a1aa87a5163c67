package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/goodtune/sitefocus/internal/storage"
	"github.com/redis/go-redis/v9"
)

type stateStore struct {
	client *redis.Client

	blockedKey        string
	blockedMarkerKey  string
	trackingKey       string
	trackingMarkerKey string
	focusKey          string

	replaceTracking *redis.Script
	replaceBlocked  *redis.Script
}

func newStateStore(client *redis.Client, prefix string) *stateStore {
	return &stateStore{
		client:            client,
		blockedKey:        fmt.Sprintf("%s:blocked_sites", prefix),
		blockedMarkerKey:  fmt.Sprintf("%s:blocked_sites:written", prefix),
		trackingKey:       fmt.Sprintf("%s:tracking", prefix),
		trackingMarkerKey: fmt.Sprintf("%s:tracking:written", prefix),
		focusKey:          fmt.Sprintf("%s:focus_mode", prefix),
		replaceTracking:   redis.NewScript(replaceTrackingScript),
		replaceBlocked:    redis.NewScript(replaceBlockedScript),
	}
}

// GetBlockedSites returns the blocked sites in lexical order
func (s *stateStore) GetBlockedSites(ctx context.Context) ([]string, error) {
	if err := s.requireWritten(ctx, s.blockedMarkerKey); err != nil {
		return nil, err
	}

	sites, err := s.client.SMembers(ctx, s.blockedKey).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(sites)
	return sites, nil
}

// SetBlockedSites replaces the blocked sites set
func (s *stateStore) SetBlockedSites(ctx context.Context, sites []string) error {
	args := make([]interface{}, 0, len(sites))
	for _, site := range sites {
		args = append(args, site)
	}

	keys := []string{s.blockedKey, s.blockedMarkerKey}
	return s.replaceBlocked.Run(ctx, s.client, keys, args...).Err()
}

// GetTrackingData reads every hostname entry of the tracking hash
func (s *stateStore) GetTrackingData(ctx context.Context) (map[string]storage.UsageRecord, error) {
	if err := s.requireWritten(ctx, s.trackingMarkerKey); err != nil {
		return nil, err
	}

	fields, err := s.client.HGetAll(ctx, s.trackingKey).Result()
	if err != nil {
		return nil, err
	}

	data := make(map[string]storage.UsageRecord, len(fields))
	for host, raw := range fields {
		var rec storage.UsageRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("failed to parse tracking entry %s: %w", host, err)
		}
		data[host] = rec
	}
	return data, nil
}

// SetTrackingData replaces the tracking hash in a single script call
func (s *stateStore) SetTrackingData(ctx context.Context, data map[string]storage.UsageRecord) error {
	args := make([]interface{}, 0, len(data)*2)
	for host, rec := range data {
		encoded, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode tracking entry %s: %w", host, err)
		}
		args = append(args, host, string(encoded))
	}

	keys := []string{s.trackingKey, s.trackingMarkerKey}
	return s.replaceTracking.Run(ctx, s.client, keys, args...).Err()
}

// GetFocusMode reads the focus mode flag
func (s *stateStore) GetFocusMode(ctx context.Context) (bool, error) {
	value, err := s.client.Get(ctx, s.focusKey).Result()
	if errors.Is(err, redis.Nil) {
		return false, storage.ErrNotFound
	}
	if err != nil {
		return false, err
	}
	return value == "1", nil
}

// SetFocusMode stores the focus mode flag
func (s *stateStore) SetFocusMode(ctx context.Context, enabled bool) error {
	value := "0"
	if enabled {
		value = "1"
	}
	return s.client.Set(ctx, s.focusKey, value, 0).Err()
}

func (s *stateStore) requireWritten(ctx context.Context, markerKey string) error {
	exists, err := s.client.Exists(ctx, markerKey).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return storage.ErrNotFound
	}
	return nil
}
