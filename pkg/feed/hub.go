package feed

import (
	"sync"

	"github.com/foomo/helpboard/post"
	"go.uber.org/zap"
)

// Hub fans feed snapshots out to subscriptions
type Hub struct {
	l             *zap.Logger
	mu            sync.RWMutex
	current       *post.Snapshot
	subscriptions map[*Subscription]struct{}
}

// Subscription receives filtered snapshots, only the newest one is kept
// when the reader falls behind
type Subscription struct {
	hub     *Hub
	filter  post.Filter
	mu      sync.Mutex
	closed  bool
	last    uint64
	updates chan *post.Snapshot
}

// ------------------------------------------------------------------------------------------------
// ~ Constructor
// ------------------------------------------------------------------------------------------------

func NewHub(l *zap.Logger) *Hub {
	return &Hub{
		l:             l.Named("feed"),
		subscriptions: map[*Subscription]struct{}{},
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Public methods
// ------------------------------------------------------------------------------------------------

// Publish remembers the snapshot and hands it to all subscriptions, it never blocks.
// Snapshots older than the current one are dropped.
func (h *Hub) Publish(s *post.Snapshot) {
	if s == nil {
		return
	}
	h.mu.Lock()
	if h.current != nil && h.current.Version > s.Version {
		h.mu.Unlock()
		h.l.Debug("dropping outdated snapshot", zap.Uint64("version", s.Version))
		return
	}
	h.current = s
	subs := make([]*Subscription, 0, len(h.subscriptions))
	for sub := range h.subscriptions {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(s)
	}
}

// Subscribe delivers the current snapshot right away, then every published one
func (h *Hub) Subscribe(filter post.Filter) *Subscription {
	sub := &Subscription{
		hub:     h,
		filter:  filter,
		updates: make(chan *post.Snapshot, 1),
	}

	h.mu.Lock()
	h.subscriptions[sub] = struct{}{}
	current := h.current
	count := len(h.subscriptions)
	h.mu.Unlock()

	h.l.Debug("subscribed", zap.String("category", filter.String()), zap.Int("subscriptions", count))
	if current != nil {
		sub.deliver(current)
	}
	return sub
}

// Current the last published snapshot, nil before the first one
func (h *Hub) Current() *post.Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions)
}

// Close ends all subscriptions
func (h *Hub) Close() error {
	h.mu.Lock()
	subs := make([]*Subscription, 0, len(h.subscriptions))
	for sub := range h.subscriptions {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	return nil
}

// C the channel snapshots are delivered on, closed by Close
func (s *Subscription) C() <-chan *post.Snapshot {
	return s.updates
}

func (s *Subscription) Filter() post.Filter {
	return s.filter
}

// Close can be called more than once
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	delete(s.hub.subscriptions, s)
	s.hub.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.updates)
}

// ------------------------------------------------------------------------------------------------
// ~ Private methods
// ------------------------------------------------------------------------------------------------

func (s *Subscription) deliver(snapshot *post.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || (s.last != 0 && snapshot.Version <= s.last) {
		return
	}
	s.last = snapshot.Version
	filtered := snapshot.Filter(s.filter)

	// replace a pending snapshot the reader did not pick up yet
	select {
	case <-s.updates:
	default:
	}
	s.updates <- filtered
}
