package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kevinaaaquil/unilib/events"
	"github.com/kevinaaaquil/unilib/models"
	"github.com/kevinaaaquil/unilib/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Option func(*base)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

func WithRetry(opts ...RetryOption) Option {
	return func(b *base) { b.retryOpts = opts }
}

// base carries what every workflow service needs.
type base struct {
	store     Store
	bus       events.Publisher
	now       func() time.Time
	retryOpts []RetryOption
}

func newBase(st Store, bus events.Publisher, opts []Option) base {
	b := base{
		store: st,
		bus:   bus,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

const publishTimeout = 3 * time.Second

// publish hands events to the bus. Failures are logged and never reach the caller.
// The write is already committed, so a cancelled request still publishes, within publishTimeout.
func (b *base) publish(ctx context.Context, evs ...events.Event) {
	if b.bus == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	for _, e := range evs {
		if err := b.bus.Publish(ctx, e); err != nil {
			slog.Warn("publish event failed", "event", e.Type, "user", e.UserID, "err", err)
		}
	}
}

// retry reruns fn when a concurrent writer won the race on a versioned document.
func (b *base) retry(ctx context.Context, fn func(ctx context.Context) error) error {
	err := RetryWithExponentialBackoff(ctx, fn, b.retryOpts...)
	if errors.Is(err, store.ErrVersionConflict) {
		return Conflict(CodeInvalidStatus, "record was modified concurrently, retry the request")
	}
	return err
}

// atomically runs fn in a store transaction, retrying lost races.
func (b *base) atomically(ctx context.Context, fn func(ctx context.Context) error) error {
	return b.retry(ctx, func(ctx context.Context) error {
		return b.store.WithTransaction(ctx, fn)
	})
}

func requireStaff(p models.Principal) error {
	if !p.Role.IsStaff() {
		return Forbidden("librarian or admin role required")
	}
	return nil
}

func requireOwnerOrStaff(p models.Principal, owner primitive.ObjectID) error {
	if p.Role.IsStaff() || p.UserID == owner {
		return nil
	}
	return Forbidden("not allowed to access this resource")
}

func loanEvent(t events.Type, loan *models.Loan) events.Event {
	e := events.New(t, loan.ReaderUserID.Hex())
	e.LoanID = loan.ID.Hex()
	e.Data["code"] = loan.Code
	e.Data["dueDate"] = loan.DueDate.Format(time.RFC3339)
	return e
}
