// Package broadcast fans pipeline events out to live subscribers.
//
// Delivery is best effort: each subscriber owns a bounded buffer, and when a
// subscriber falls behind its oldest undelivered events are dropped rather
// than stalling the publisher or other subscribers.
package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/gatewatch/internal/domain/model"
	"github.com/okian/gatewatch/pkg/logger"
	"github.com/okian/gatewatch/pkg/metrics"
)

// Default broadcaster configuration constants.
const (
	defaultBufferSize   = 64
	defaultPingTimeout  = 60 * time.Second
	defaultReapInterval = 10 * time.Second
)

// Filter narrows which events a subscriber receives. Zero values match
// everything.
type Filter struct {
	CameraID      string
	PersonID      string
	MinConfidence float64
}

func (f Filter) matches(ev model.Event) bool {
	if f.CameraID != "" && ev.CameraID != f.CameraID {
		return false
	}
	if f.PersonID != "" && ev.PersonID != f.PersonID {
		return false
	}
	if f.MinConfidence > 0 && ev.Confidence < f.MinConfidence {
		return false
	}
	return true
}

// Subscriber is one live consumer registration.
type Subscriber struct {
	ID     string
	C      <-chan model.Event
	filter Filter
	ch     chan model.Event

	mu       sync.Mutex
	lastSeen time.Time
	closed   bool
}

// Touch refreshes the subscriber's liveness deadline. Called on every
// keep-alive received from the consumer.
func (s *Subscriber) Touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// SetFilter replaces the subscriber's filter.
func (s *Subscriber) SetFilter(f Filter) {
	s.mu.Lock()
	s.filter = f
	s.mu.Unlock()
}

// deliver hands an event to the subscriber without blocking, shedding the
// oldest buffered event when the buffer is full. Send and close share the
// subscriber mutex, so a concurrent Unsubscribe or reap can never race a
// publish onto a closed channel.
func (s *Subscriber) deliver(ev model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.filter.matches(ev) {
		return
	}

	select {
	case s.ch <- ev:
		metrics.RecordEventDelivered()
	default:
		// Shed the oldest buffered event, then retry once.
		select {
		case <-s.ch:
			metrics.RecordEventDropped()
		default:
		}
		select {
		case s.ch <- ev:
			metrics.RecordEventDelivered()
		default:
			metrics.RecordEventDropped()
		}
	}
}

// closeCh closes the subscriber channel exactly once.
func (s *Subscriber) closeCh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

func (s *Subscriber) stale(deadline time.Duration, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen) > deadline
}

// Broadcaster is the subscriber registry and fan-out point.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[string]*Subscriber

	bufferSize   int
	pingTimeout  time.Duration
	reapInterval time.Duration

	stop chan struct{}
	once sync.Once

	logger logger.Logger
}

// NewBroadcaster creates a broadcaster and starts its stale-subscriber reaper.
func NewBroadcaster(opts ...Option) *Broadcaster {
	b := &Broadcaster{
		subs:         make(map[string]*Subscriber),
		bufferSize:   defaultBufferSize,
		pingTimeout:  defaultPingTimeout,
		reapInterval: defaultReapInterval,
		stop:         make(chan struct{}),
		logger:       logger.Get().Named("broadcast"),
	}

	for _, opt := range opts {
		opt(b)
	}

	go b.reaper()
	return b
}

// Subscribe registers a consumer and returns its subscription. The channel is
// closed on Unsubscribe, reaping, or Close.
func (b *Broadcaster) Subscribe(f Filter) *Subscriber {
	ch := make(chan model.Event, b.bufferSize)
	sub := &Subscriber{
		ID:       uuid.NewString(),
		C:        ch,
		ch:       ch,
		filter:   f,
		lastSeen: time.Now(),
	}

	b.mu.Lock()
	b.subs[sub.ID] = sub
	count := len(b.subs)
	b.mu.Unlock()

	metrics.UpdateSubscriberCount(count)
	return sub
}

// Unsubscribe removes a subscriber and closes its channel. Idempotent.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
	}
	count := len(b.subs)
	b.mu.Unlock()

	if !ok {
		return
	}
	sub.closeCh()
	metrics.UpdateSubscriberCount(count)
}

// Publish delivers an event to every matching subscriber. Never blocks: a
// full subscriber buffer sheds its oldest event to make room.
func (b *Broadcaster) Publish(ctx context.Context, ev model.Event) {
	metrics.RecordEventPublished()

	b.mu.RLock()
	subs := make([]*Subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		s.deliver(ev)
	}
}

// Len returns the current subscriber count.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close drops all subscribers and stops the reaper.
func (b *Broadcaster) Close() {
	b.once.Do(func() { close(b.stop) })

	b.mu.Lock()
	for id, sub := range b.subs {
		sub.closeCh()
		delete(b.subs, id)
	}
	b.mu.Unlock()

	metrics.UpdateSubscriberCount(0)
}

// reaper drops subscribers that stopped sending keep-alives so their buffers
// and registry slots are reclaimed.
func (b *Broadcaster) reaper() {
	ticker := time.NewTicker(b.reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stop:
			return
		case now := <-ticker.C:
			b.mu.Lock()
			var reaped []string
			for id, sub := range b.subs {
				if sub.stale(b.pingTimeout, now) {
					sub.closeCh()
					delete(b.subs, id)
					reaped = append(reaped, id)
				}
			}
			count := len(b.subs)
			b.mu.Unlock()

			if len(reaped) > 0 {
				metrics.UpdateSubscriberCount(count)
				b.logger.Info(context.Background(), "reaped stale subscribers",
					logger.Int("count", len(reaped)),
				)
			}
		}
	}
}
