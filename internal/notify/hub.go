// Package notify fans out notifications to connected add-on event streams.
package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/goodtune/sitefocus/internal/metrics"
	"github.com/rs/zerolog"
)

// ErrNoSubscribers is returned when a redirect has nobody to deliver to
var ErrNoSubscribers = errors.New("no event subscribers")

const subscriberBuffer = 32

// Subscription receives notifications until it is unsubscribed
type Subscription struct {
	id int
	C  <-chan Notification
	ch chan Notification
}

// Hub delivers notifications to every subscriber. Slow subscribers miss
// notifications rather than stall the publisher.
type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]*Subscription
	logger zerolog.Logger
}

// NewHub creates an empty hub
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		subs:   make(map[int]*Subscription),
		logger: logger.With().Str("component", "notify").Logger(),
	}
}

// Subscribe registers a new subscriber
func (h *Hub) Subscribe() *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	ch := make(chan Notification, subscriberBuffer)
	sub := &Subscription{id: h.nextID, C: ch, ch: ch}
	h.subs[sub.id] = sub

	metrics.Subscribers.Set(float64(len(h.subs)))
	h.logger.Debug().Int("subscriber", sub.id).Msg("Subscriber connected")
	return sub
}

// Unsubscribe removes the subscriber and closes its channel
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub.id]; !ok {
		return
	}
	delete(h.subs, sub.id)
	close(sub.ch)

	metrics.Subscribers.Set(float64(len(h.subs)))
	h.logger.Debug().Int("subscriber", sub.id).Msg("Subscriber disconnected")
}

// Publish delivers n to every subscriber without blocking and returns how
// many received it
func (h *Hub) Publish(n Notification) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for id, sub := range h.subs {
		select {
		case sub.ch <- n:
			delivered++
		default:
			metrics.NotificationsDropped.Inc()
			h.logger.Warn().Int("subscriber", id).Str("type", string(n.Type)).Msg("Subscriber too slow, notification dropped")
		}
	}
	return delivered
}

// Subscribers returns the number of connected subscribers
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Redirect publishes a redirect instruction for tabID
func (h *Hub) Redirect(_ context.Context, tabID int, url string) error {
	if h.Publish(Redirect(tabID, url)) == 0 {
		return ErrNoSubscribers
	}
	return nil
}
