package storage

// UsageRecord holds accumulated browsing usage for one hostname.
type UsageRecord struct {
	TimeSeconds int64 `json:"time"`
	Visits      int64 `json:"visits"`
}

// CloneUsage returns a copy of a tracking data map. A nil map yields an
// empty, non-nil map.
func CloneUsage(data map[string]UsageRecord) map[string]UsageRecord {
	out := make(map[string]UsageRecord, len(data))
	for host, rec := range data {
		out[host] = rec
	}
	return out
}
