package events

import (
	"context"
	"sync"

	"powerball/models"

	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeDrawRecorded  EventType = "draw_recorded"
	EventTypeSyncCompleted EventType = "sync_completed"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// DrawRecordedEvent is raised after a draw was inserted or changed in the store
type DrawRecordedEvent struct {
	Draw     models.Draw
	Created  bool // false when an existing draw was corrected
	Backfill bool // recorded by a full sync or the first sync into an empty store
}

func (e DrawRecordedEvent) Type() EventType {
	return EventTypeDrawRecorded
}

// SyncCompletedEvent is raised when a sync run finishes, successfully or not
type SyncCompletedEvent struct {
	Result models.SyncResult
}

func (e SyncCompletedEvent) Type() EventType {
	return EventTypeSyncCompleted
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Publisher accepts events for later delivery
type Publisher interface {
	Publish(e Event)
}

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	wg       sync.WaitGroup
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers")

	// Call handlers asynchronously to avoid blocking the sync
	for i, handler := range handlers {
		b.wg.Add(1)
		go func(h Handler, handlerIndex int) {
			defer b.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// Publish emits immediately with a background context
func (b *Bus) Publish(e Event) {
	b.Emit(context.Background(), e)
}

// Wait blocks until every handler started so far has returned
func (b *Bus) Wait() {
	b.wg.Wait()
}

// TransactionalBus holds pending events coupled to a unit of work.
// Flushes to the underlying event bus.
type TransactionalBus struct {
	real    *Bus
	pending []Event // stashed until Flush
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// Pending returns the number of events waiting for a commit
func (b *TransactionalBus) Pending() int {
	return len(b.pending)
}

// Flush is called after a successful commit
func (b *TransactionalBus) Flush(ctx context.Context) {
	if b.real == nil {
		b.pending = nil
		return
	}

	log.WithField("pendingEventCount", len(b.pending)).Debug("Flushing pending events to main event bus")

	// Handlers outlive the transaction, so they get a detached context
	eventCtx := context.WithoutCancel(ctx)
	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
}

// Discard is called after a rollback
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
