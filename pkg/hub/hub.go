package hub

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

// DefaultBufferSize matches the websocket writer's send queue.
const DefaultBufferSize = 256

// Publisher forwards events to other instances. Publish failures make the hub deliver locally.
type Publisher interface {
	Publish(ctx context.Context, payload []byte) error
}

// Subscriber is one live push connection.
type Subscriber struct {
	ID string

	mu     sync.RWMutex
	ch     chan Event
	closed bool
}

// Events is closed when the subscriber is removed or the hub shuts down.
func (s *Subscriber) Events() <-chan Event { return s.ch }

// offer never blocks; a full or closed subscriber misses the event.
func (s *Subscriber) offer(e Event) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- e:
		return true
	default:
		return false
	}
}

func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Hub fans events out to every subscriber. Safe for concurrent use.
type Hub struct {
	logger      *zap.Logger
	bufferSize  int
	subscribers *xsync.Map[string, *Subscriber]
	publisher   atomic.Pointer[publisherBox]
	closed      atomic.Bool
}

type publisherBox struct{ p Publisher }

func New(logger *zap.Logger) *Hub {
	return &Hub{
		logger:      logger,
		bufferSize:  DefaultBufferSize,
		subscribers: xsync.NewMap[string, *Subscriber](),
	}
}

// SetPublisher routes Broadcast through p; whoever consumes p must call Deliver.
// A nil p restores local delivery.
func (h *Hub) SetPublisher(p Publisher) {
	if p == nil {
		h.publisher.Store(nil)
		return
	}
	h.publisher.Store(&publisherBox{p: p})
}

// Add registers a new subscriber. After Close it returns a subscriber whose channel is already closed.
func (h *Hub) Add() *Subscriber {
	s := &Subscriber{ID: uuid.NewString(), ch: make(chan Event, h.bufferSize)}
	if h.closed.Load() {
		s.close()
		return s
	}
	h.subscribers.Store(s.ID, s)
	h.logger.Debug("Subscriber added", zap.String("subscriber_id", s.ID), zap.Int("subscribers", h.subscribers.Size()))
	return s
}

// Remove unregisters and closes the subscriber. Unknown ids are ignored.
func (h *Hub) Remove(id string) {
	if s, ok := h.subscribers.LoadAndDelete(id); ok {
		s.close()
		h.logger.Debug("Subscriber removed", zap.String("subscriber_id", id), zap.Int("subscribers", h.subscribers.Size()))
	}
}

// Size returns the number of live subscribers.
func (h *Hub) Size() int { return h.subscribers.Size() }

// Broadcast sends e to every subscriber on every instance. Delivery is best-effort.
func (h *Hub) Broadcast(ctx context.Context, e Event) {
	if box := h.publisher.Load(); box != nil {
		payload, err := json.Marshal(e)
		if err == nil {
			if err = box.p.Publish(ctx, payload); err == nil {
				return
			}
		}
		h.logger.Warn("Relay publish failed, delivering locally", zap.String("type", string(e.Type)), zap.Error(err))
	}
	h.Deliver(e)
}

// Deliver sends e to the subscribers of this instance only and returns how many accepted it.
func (h *Hub) Deliver(e Event) int {
	delivered, dropped := 0, 0
	h.subscribers.Range(func(_ string, s *Subscriber) bool {
		if s.offer(e) {
			delivered++
		} else {
			dropped++
		}
		return true
	})
	if dropped > 0 {
		h.logger.Debug("Event dropped for slow subscribers", zap.String("type", string(e.Type)), zap.Int("dropped", dropped))
	}
	return delivered
}

// Close closes every subscriber channel. Subsequent Adds get closed subscribers.
func (h *Hub) Close() {
	h.closed.Store(true)
	h.subscribers.Range(func(id string, s *Subscriber) bool {
		h.subscribers.Delete(id)
		s.close()
		return true
	})
	h.logger.Info("Broadcast hub closed")
}
