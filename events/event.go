package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	LoanRequested         Type = "LoanRequested"
	LoanCreated           Type = "LoanCreated"
	LoanApproved          Type = "LoanApproved"
	LoanRejected          Type = "LoanRejected"
	LoanCancelled         Type = "LoanCancelled"
	LoanReturned          Type = "LoanReturned"
	LoanPartiallyReturned Type = "LoanPartiallyReturned"
	LoanOverdue           Type = "LoanOverdue"
	LoanDueSoon           Type = "LoanDueSoon"
	ExtensionRequested    Type = "ExtensionRequested"
	ExtensionApproved     Type = "ExtensionApproved"
	ExtensionRejected     Type = "ExtensionRejected"
	FineIssued            Type = "FineIssued"
	FinePaid              Type = "FinePaid"
	FineWaived            Type = "FineWaived"
)

// Event is a fact about the loan workflow, published after the change is committed.
// Ids are hex strings so the event can cross process boundaries unchanged.
type Event struct {
	ID          string            `json:"id"`
	Type        Type              `json:"type"`
	UserID      string            `json:"userId"`
	LoanID      string            `json:"loanId,omitempty"`
	FineID      string            `json:"fineId,omitempty"`
	ExtensionID string            `json:"extensionId,omitempty"`
	Data        map[string]string `json:"data,omitempty"`
	OccurredAt  time.Time         `json:"occurredAt"`
}

func New(t Type, userID string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		UserID:     userID,
		Data:       map[string]string{},
		OccurredAt: time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type Handler func(ctx context.Context, e Event) error

// Bus carries events from the workflow to a single consumer loop.
// Run blocks until ctx is done.
type Bus interface {
	Publisher
	Run(ctx context.Context, h Handler) error
}
