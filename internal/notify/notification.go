package notify

import (
	"encoding/json"
	"fmt"

	"github.com/goodtune/sitefocus/internal/storage"
)

// Type names an outbound notification
type Type string

const (
	TypeUpdateSummary         Type = "updateSummary"
	TypeRecommendBlockedSites Type = "recommendBlockedSites"
	TypeRedirect              Type = "redirect"
)

// Notification is a message pushed to the add-on
type Notification struct {
	Type         Type
	TrackingData map[string]storage.UsageRecord
	Sites        []string
	TabID        int
	URL          string
}

// UpdateSummary carries a copy of the current usage map
func UpdateSummary(usage map[string]storage.UsageRecord) Notification {
	return Notification{Type: TypeUpdateSummary, TrackingData: storage.CloneUsage(usage)}
}

// RecommendBlockedSites carries the latest recommendation set
func RecommendBlockedSites(sites []string) Notification {
	out := make([]string, len(sites))
	copy(out, sites)
	return Notification{Type: TypeRecommendBlockedSites, Sites: out}
}

// Redirect asks the add-on to navigate a tab
func Redirect(tabID int, url string) Notification {
	return Notification{Type: TypeRedirect, TabID: tabID, URL: url}
}

// MarshalJSON emits only the fields that belong to the notification type
func (n Notification) MarshalJSON() ([]byte, error) {
	switch n.Type {
	case TypeUpdateSummary:
		data := n.TrackingData
		if data == nil {
			data = map[string]storage.UsageRecord{}
		}
		return json.Marshal(struct {
			Type         Type                           `json:"type"`
			TrackingData map[string]storage.UsageRecord `json:"trackingData"`
		}{n.Type, data})
	case TypeRecommendBlockedSites:
		sites := n.Sites
		if sites == nil {
			sites = []string{}
		}
		return json.Marshal(struct {
			Type  Type     `json:"type"`
			Sites []string `json:"sites"`
		}{n.Type, sites})
	case TypeRedirect:
		return json.Marshal(struct {
			Type  Type   `json:"type"`
			TabID int    `json:"tabId"`
			URL   string `json:"url"`
		}{n.Type, n.TabID, n.URL})
	default:
		return nil, fmt.Errorf("unknown notification type %q", n.Type)
	}
}
