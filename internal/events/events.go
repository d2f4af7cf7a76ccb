// Package events announces expense lifecycle changes to other systems.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/expensetracker/internal/domain/expense"
)

type Type string

const (
	ExpenseCreated Type = "expense.created"
	ExpenseUpdated Type = "expense.updated"
	ExpenseDeleted Type = "expense.deleted"
)

var ErrInvalidType = errors.New("invalid event type")

func (t Type) IsValid() bool {
	switch t {
	case ExpenseCreated, ExpenseUpdated, ExpenseDeleted:
		return true
	default:
		return false
	}
}

// Event is the message body. Expense is omitted on deletes.
type Event struct {
	Type       Type             `json:"type"`
	ExpenseID  string           `json:"expenseId"`
	UserID     string           `json:"userId"`
	Expense    *expense.Expense `json:"expense,omitempty"`
	OccurredAt time.Time        `json:"occurredAt"`
	RequestID  string           `json:"requestId,omitempty"`
}

func New(t Type, e expense.Expense, requestID string) Event {
	ev := Event{
		Type:       t,
		ExpenseID:  e.ID,
		UserID:     e.UserID,
		OccurredAt: time.Now().UTC(),
		RequestID:  requestID,
	}

	if t != ExpenseDeleted {
		ev.Expense = &e
	}

	return ev
}

func Encode(ev Event) ([]byte, error) {
	if !ev.Type.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, ev.Type)
	}

	return json.Marshal(ev)
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop drops every event; used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                        { return nil }
