package bolt

import (
	"context"

	"github.com/goodtune/sitefocus/internal/storage"
	"go.etcd.io/bbolt"
)

type stateStore struct {
	db *bbolt.DB
}

func (s *stateStore) GetBlockedSites(ctx context.Context) ([]string, error) {
	sites, err := getBucketValue[[]string](ctx, s.db, bucketState, storage.KeyBlockedSites)
	if err != nil {
		return nil, err
	}
	return *sites, nil
}

func (s *stateStore) SetBlockedSites(ctx context.Context, sites []string) error {
	if sites == nil {
		sites = []string{}
	}
	return putBucketValue(ctx, s.db, bucketState, storage.KeyBlockedSites, sites)
}

func (s *stateStore) GetTrackingData(ctx context.Context) (map[string]storage.UsageRecord, error) {
	data, err := getBucketValue[map[string]storage.UsageRecord](ctx, s.db, bucketState, storage.KeyTrackingData)
	if err != nil {
		return nil, err
	}
	return storage.CloneUsage(*data), nil
}

func (s *stateStore) SetTrackingData(ctx context.Context, data map[string]storage.UsageRecord) error {
	return putBucketValue(ctx, s.db, bucketState, storage.KeyTrackingData, storage.CloneUsage(data))
}

func (s *stateStore) GetFocusMode(ctx context.Context) (bool, error) {
	enabled, err := getBucketValue[bool](ctx, s.db, bucketState, storage.KeyFocusMode)
	if err != nil {
		return false, err
	}
	return *enabled, nil
}

func (s *stateStore) SetFocusMode(ctx context.Context, enabled bool) error {
	return putBucketValue(ctx, s.db, bucketState, storage.KeyFocusMode, enabled)
}
