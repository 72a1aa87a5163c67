package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/goodtune/sitefocus/internal/storage"
	"github.com/rs/zerolog"
)

func TestNotificationJSON(t *testing.T) {
	tests := []struct {
		name string
		n    Notification
		want string
	}{
		{
			name: "summary",
			n:    UpdateSummary(map[string]storage.UsageRecord{"a.example.com": {TimeSeconds: 12, Visits: 1}}),
			want: `{"type":"updateSummary","trackingData":{"a.example.com":{"time":12,"visits":1}}}`,
		},
		{
			name: "empty summary",
			n:    UpdateSummary(nil),
			want: `{"type":"updateSummary","trackingData":{}}`,
		},
		{
			name: "recommendations",
			n:    RecommendBlockedSites([]string{"a.example.com"}),
			want: `{"type":"recommendBlockedSites","sites":["a.example.com"]}`,
		},
		{
			name: "no recommendations",
			n:    RecommendBlockedSites(nil),
			want: `{"type":"recommendBlockedSites","sites":[]}`,
		},
		{
			name: "redirect",
			n:    Redirect(7, "blocked.html"),
			want: `{"type":"redirect","tabId":7,"url":"blocked.html"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.n)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}

	if _, err := json.Marshal(Notification{Type: "bogus"}); err == nil {
		t.Error("Expected error for unknown type")
	}
}

func TestUpdateSummaryCopiesUsage(t *testing.T) {
	usage := map[string]storage.UsageRecord{"a.example.com": {TimeSeconds: 1}}
	n := UpdateSummary(usage)
	usage["a.example.com"] = storage.UsageRecord{TimeSeconds: 99}

	if n.TrackingData["a.example.com"].TimeSeconds != 1 {
		t.Error("Expected notification to hold a copy of the usage map")
	}
}

func TestHubPublish(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	a := hub.Subscribe()
	b := hub.Subscribe()

	if got := hub.Publish(RecommendBlockedSites([]string{"x.example.com"})); got != 2 {
		t.Fatalf("Expected delivery to 2 subscribers, got %d", got)
	}

	for _, sub := range []*Subscription{a, b} {
		n := <-sub.C
		if n.Type != TypeRecommendBlockedSites || len(n.Sites) != 1 {
			t.Errorf("Unexpected notification: %+v", n)
		}
	}

	hub.Unsubscribe(a)
	hub.Unsubscribe(a)
	if _, ok := <-a.C; ok {
		t.Error("Expected unsubscribed channel to be closed")
	}
	if hub.Subscribers() != 1 {
		t.Errorf("Expected 1 subscriber, got %d", hub.Subscribers())
	}
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	for i := 0; i < subscriberBuffer; i++ {
		hub.Publish(UpdateSummary(nil))
	}
	if got := hub.Publish(UpdateSummary(nil)); got != 0 {
		t.Errorf("Expected full subscriber to be skipped, got %d deliveries", got)
	}
}

func TestHubRedirect(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	ctx := context.Background()

	if err := hub.Redirect(ctx, 3, "blocked.html"); !errors.Is(err, ErrNoSubscribers) {
		t.Errorf("Expected ErrNoSubscribers, got %v", err)
	}

	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	if err := hub.Redirect(ctx, 3, "blocked.html"); err != nil {
		t.Fatalf("Redirect failed: %v", err)
	}
	n := <-sub.C
	if n.Type != TypeRedirect || n.TabID != 3 || n.URL != "blocked.html" {
		t.Errorf("Unexpected redirect notification: %+v", n)
	}
}
