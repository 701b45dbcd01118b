// Package hub fans outbound wallet messages out to connected tab and UI
// subscribers.
package hub

import (
	"context"
	"sync"

	"github.com/asaskevich/EventBus"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	klog "github.com/Klingon-tech/klingnet-walletd/internal/log"
	"github.com/Klingon-tech/klingnet-walletd/internal/messaging"
)

// Bus topics.
const (
	topicTab = "hub:tab"
	topicUI  = "hub:ui"
)

// DefaultBuffer is the per-subscriber message buffer.
const DefaultBuffer = 64

// Subscription receives messages for one tab or for the wallet UI.
type Subscription struct {
	ID    string
	TabID string // empty for UI subscriptions
	UI    bool

	ch     chan messaging.Message
	closed bool
}

// C returns the message channel. It is closed on Unsubscribe or Close.
func (s *Subscription) C() <-chan messaging.Message {
	return s.ch
}

// Hub routes published messages to subscribers. A slow subscriber whose
// buffer is full loses messages instead of blocking the publisher.
type Hub struct {
	bus    EventBus.Bus
	buffer int
	logger zerolog.Logger

	mu   sync.RWMutex
	subs map[string]*Subscription
}

// New creates a hub with the given per-subscriber buffer size.
func New(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	h := &Hub{
		bus:    EventBus.New(),
		buffer: buffer,
		logger: klog.WithComponent("hub"),
		subs:   make(map[string]*Subscription),
	}
	// Handlers are registered once; subscriber churn is handled by subs.
	h.bus.Subscribe(topicTab, h.deliverTab)
	h.bus.Subscribe(topicUI, h.deliverUI)
	return h
}

// NewTabID returns a fresh identifier for a tab that did not provide one.
func NewTabID() string {
	return uuid.NewString()
}

// Subscribe registers a subscriber for messages addressed to tabID.
func (h *Hub) Subscribe(tabID string) *Subscription {
	return h.add(&Subscription{TabID: tabID})
}

// SubscribeUI registers a wallet UI subscriber. UI subscribers receive every
// message sent to any tab plus UI-only notifications.
func (h *Hub) SubscribeUI() *Subscription {
	return h.add(&Subscription{UI: true})
}

func (h *Hub) add(s *Subscription) *Subscription {
	s.ID = uuid.NewString()
	s.ch = make(chan messaging.Message, h.buffer)
	h.mu.Lock()
	h.subs[s.ID] = s
	h.mu.Unlock()
	h.logger.Debug().Str("sub", s.ID).Str("tab", s.TabID).Bool("ui", s.UI).Msg("Subscriber added")
	return s
}

// Unsubscribe removes the subscription and closes its channel. Safe to call twice.
func (h *Hub) Unsubscribe(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.closed {
		return
	}
	delete(h.subs, s.ID)
	s.closed = true
	close(s.ch)
}

// Count returns the number of active subscriptions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close removes every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, s := range h.subs {
		delete(h.subs, id)
		s.closed = true
		close(s.ch)
	}
}

// SendToUI publishes a UI-only message.
func (h *Hub) SendToUI(_ context.Context, msg messaging.Message) error {
	h.bus.Publish(topicUI, msg)
	return nil
}

// ForTab returns a sender that delivers to tabID and to the UI.
func (h *Hub) ForTab(tabID string) messaging.Sender {
	return messaging.SenderFunc(func(_ context.Context, msg messaging.Message) error {
		h.bus.Publish(topicTab, tabID, msg)
		h.bus.Publish(topicUI, msg)
		return nil
	})
}

func (h *Hub) deliverTab(tabID string, msg messaging.Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		if !s.UI && s.TabID == tabID {
			h.offer(s, msg)
		}
	}
}

func (h *Hub) deliverUI(msg messaging.Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		if s.UI {
			h.offer(s, msg)
		}
	}
}

// offer sends without blocking. Caller holds mu.
func (h *Hub) offer(s *Subscription, msg messaging.Message) {
	select {
	case s.ch <- msg:
	default:
		h.logger.Warn().Str("sub", s.ID).Str("type", string(msg.Type)).Msg("Subscriber buffer full, message dropped")
	}
}
