package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/aescanero/scenegen/pkg/domain"
	"github.com/aescanero/scenegen/pkg/ports"
	"go.uber.org/zap"
)

// ErrClosed is returned when subscribing to a closed bus
var ErrClosed = errors.New("event bus closed")

// subscriberBuffer is the number of undelivered events a subscription holds
// before new events for it are dropped
const subscriberBuffer = 256

// EventBus implements ports.EventBus in process. Each subscription receives
// events in publish order on its own goroutine, so a slow handler never
// blocks publishers.
type EventBus struct {
	logger *zap.Logger

	mu          sync.RWMutex
	subscribers map[string]map[uint64]*subscription
	nextID      uint64
	closed      bool
}

type subscription struct {
	events chan domain.Event
	done   chan struct{}
	once   sync.Once
}

func (s *subscription) stop() {
	s.once.Do(func() { close(s.done) })
}

// NewEventBus creates a new in-memory event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		logger:      logger,
		subscribers: make(map[string]map[uint64]*subscription),
	}
}

// Publish delivers an event to every subscriber of the topic
func (e *EventBus) Publish(ctx context.Context, topic string, event domain.Event) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, sub := range e.subscribers[topic] {
		select {
		case sub.events <- event:
		case <-sub.done:
		default:
			e.logger.Warn("subscriber buffer full, dropping event",
				zap.String("topic", topic),
				zap.String("event_id", event.ID),
				zap.String("job_id", event.JobID))
		}
	}

	return nil
}

// Subscribe calls handler for every event on topic until ctx is cancelled
func (e *EventBus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.nextID++
	id := e.nextID
	sub := &subscription{
		events: make(chan domain.Event, subscriberBuffer),
		done:   make(chan struct{}),
	}
	if e.subscribers[topic] == nil {
		e.subscribers[topic] = make(map[uint64]*subscription)
	}
	e.subscribers[topic][id] = sub
	e.mu.Unlock()

	go func() {
		defer e.unsubscribe(topic, id)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.done:
				return
			case event := <-sub.events:
				if err := handler(ctx, event); err != nil {
					e.logger.Debug("event handler error",
						zap.String("topic", topic),
						zap.String("event_id", event.ID),
						zap.Error(err))
				}
			}
		}
	}()

	return nil
}

// Close stops every subscription
func (e *EventBus) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, subs := range e.subscribers {
		for _, sub := range subs {
			sub.stop()
		}
	}
	e.subscribers = make(map[string]map[uint64]*subscription)
	e.closed = true
	return nil
}

// unsubscribe removes one subscription from a topic
func (e *EventBus) unsubscribe(topic string, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	subs := e.subscribers[topic]
	if sub, ok := subs[id]; ok {
		sub.stop()
		delete(subs, id)
	}
	if len(subs) == 0 {
		delete(e.subscribers, topic)
	}
}
