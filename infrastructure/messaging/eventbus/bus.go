package eventbus

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"familytree/application/ports"
	"familytree/domain/events"
)

var _ ports.EventPublisher = (*Bus)(nil)

// Handler processes one domain event
type Handler func(ctx context.Context, event events.DomainEvent) error

// Subscription identifies a registered handler
type Subscription struct {
	id  uint64
	key reflect.Type
}

type entry struct {
	id       uint64
	name     string
	priority int
	handle   Handler
}

// anyEvent keys subscribers that receive every event
var anyEvent = reflect.TypeOf((*events.DomainEvent)(nil)).Elem()

// Bus dispatches domain events to in-process subscribers, synchronously and in
// priority order (lower numbers first).
type Bus struct {
	mu       sync.RWMutex
	handlers map[reflect.Type][]entry
	nextID   uint64
	timeout  time.Duration
	logger   *zap.Logger
}

// New creates a new event bus
func New(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		handlers: make(map[reflect.Type][]entry),
		timeout:  30 * time.Second,
		logger:   logger,
	}
}

// Subscribe registers a typed handler for events of type T
func Subscribe[T events.DomainEvent](b *Bus, name string, priority int, fn func(ctx context.Context, event T) error) Subscription {
	key := reflect.TypeOf((*T)(nil)).Elem()
	return b.add(key, name, priority, func(ctx context.Context, event events.DomainEvent) error {
		typed, ok := event.(T)
		if !ok {
			return nil
		}
		return fn(ctx, typed)
	})
}

// SubscribeAll registers a handler for every event
func (b *Bus) SubscribeAll(name string, priority int, fn Handler) Subscription {
	return b.add(anyEvent, name, priority, fn)
}

func (b *Bus) add(key reflect.Type, name string, priority int, fn Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	list := append(b.handlers[key], entry{id: b.nextID, name: name, priority: priority, handle: fn})
	sort.SliceStable(list, func(i, j int) bool { return list[i].priority < list[j].priority })
	b.handlers[key] = list

	b.logger.Debug("Registered event handler",
		zap.String("handler", name),
		zap.String("eventType", key.String()),
		zap.Int("priority", priority))
	return Subscription{id: b.nextID, key: key}
}

// Unsubscribe removes a handler; unknown subscriptions are ignored
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.handlers[sub.key]
	filtered := list[:0:0]
	for _, e := range list {
		if e.id != sub.id {
			filtered = append(filtered, e)
		}
	}
	if len(filtered) == 0 {
		delete(b.handlers, sub.key)
		return
	}
	b.handlers[sub.key] = filtered
}

// Publish dispatches event to its typed subscribers, then to catch-all ones.
// Every handler runs even when an earlier one fails; the last error is returned.
func (b *Bus) Publish(ctx context.Context, event events.DomainEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}

	b.mu.RLock()
	typed := b.handlers[reflect.TypeOf(event)]
	all := b.handlers[anyEvent]
	// copy so handlers may subscribe without deadlocking
	handlers := make([]entry, 0, len(typed)+len(all))
	handlers = append(handlers, typed...)
	handlers = append(handlers, all...)
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.logger.Debug("No handlers registered for event type",
			zap.String("eventType", event.GetEventType()))
		return nil
	}

	var lastError error
	for _, h := range handlers {
		if err := b.run(ctx, h, event); err != nil {
			lastError = err
			b.logger.Error("Event handler failed",
				zap.String("handler", h.name),
				zap.String("eventType", event.GetEventType()),
				zap.Error(err))
		}
	}
	return lastError
}

// PublishBatch publishes events in order
func (b *Bus) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	failed := 0
	for _, event := range batch {
		if err := b.Publish(ctx, event); err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("failed to dispatch %d of %d events", failed, len(batch))
	}
	return nil
}

func (b *Bus) run(ctx context.Context, h entry, event events.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Event handler panicked",
				zap.String("handler", h.name),
				zap.String("eventType", event.GetEventType()),
				zap.Any("panic", r),
				zap.Stack("stack"))
			err = fmt.Errorf("handler %s panicked: %v", h.name, r)
		}
	}()

	handlerCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return h.handle(handlerCtx, event)
}
