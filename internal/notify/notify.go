package notify

import (
	"context"
	"time"
)

const (
	EventTransactionCompleted = "transaction.completed"
	EventTransactionFailed    = "transaction.failed"
	EventMemberRegistered     = "member.registered"
	EventMatchingCompleted    = "matching.completed"
)

type Event struct {
	Name          string
	UserID        uint
	TransactionID uint
	Fields        map[string]string
	At            time.Time
}

// Notifier accepts events without blocking the caller.
type Notifier interface {
	Notify(ev Event)
}

// Sink delivers one event. Errors are logged by the dispatcher and never retried.
type Sink interface {
	Name() string
	Handle(ctx context.Context, ev Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Notify(Event) {}
