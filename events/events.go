package events

import (
	"context"
	"sync"
	"time"

	"walletledger/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeLedgerEntryRecorded  EventType = "ledger_entry_recorded"
	EventTypeAccountRegistered    EventType = "account_registered"
	EventTypeAccountRetired       EventType = "account_retired"
	EventTypeMaintenanceCompleted EventType = "maintenance_completed"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// LedgerEntryRecordedEvent is published once per committed balance mutation
type LedgerEntryRecordedEvent struct {
	EntryID       int64
	FromAccountID *int64
	ToAccountID   *int64
	Amount        decimal.Decimal
	Kind          models.TransactionKind
	Correction    bool
	ActorID       int64
}

func (e LedgerEntryRecordedEvent) Type() EventType {
	return EventTypeLedgerEntryRecorded
}

// AccountRegisteredEvent represents a new account entering the hierarchy
type AccountRegisteredEvent struct {
	AccountID   int64
	AccountType models.AccountType
	OwnerRef    *int64
}

func (e AccountRegisteredEvent) Type() EventType {
	return EventTypeAccountRegistered
}

// AccountRetiredEvent represents a completed lifecycle action
type AccountRetiredEvent struct {
	AccountID int64
	Mode      models.RetireMode
	Reason    string
	ActorID   int64
}

func (e AccountRetiredEvent) Type() EventType {
	return EventTypeAccountRetired
}

// MaintenanceCompletedEvent reports the outcome of a scheduled archival or purge run
type MaintenanceCompletedEvent struct {
	Task      string
	Processed int64
	Failures  []string
	Duration  time.Duration
}

func (e MaintenanceCompletedEvent) Type() EventType {
	return EventTypeMaintenanceCompleted
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	inflight sync.WaitGroup
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

// Emit publishes an event to all registered handlers.
// Handlers run on their own goroutines and a panicking handler is logged, not propagated.
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers")

	b.inflight.Add(len(handlers))
	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer b.inflight.Done()
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

// Wait blocks until every handler started by Emit has returned
func (b *Bus) Wait() {
	b.inflight.Wait()
}

// TransactionalBus holds events raised inside a unit of work until it commits.
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	log.WithFields(log.Fields{
		"eventType":    e.Type(),
		"pendingCount": len(b.pending),
	}).Debug("Queued event on transactional bus")
	b.pending = append(b.pending, e)
}

// Flush emits all pending events. Called after a successful commit.
func (b *TransactionalBus) Flush(ctx context.Context) error {
	// Handlers outlive the request, so they must not inherit its cancellation
	eventCtx := context.WithoutCancel(ctx)

	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}

	log.WithField("flushed", len(b.pending)).Debug("Transactional bus flushed")
	b.pending = nil
	return nil
}

// Discard drops pending events. Called after a rollback.
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
