package service

import (
	"context"
	"testing"
	"time"

	"github.com/kevinaaaquil/unilib/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestDispatcherStoresNotification(t *testing.T) {
	f := newFixture(t)
	d := NewNotificationDispatcher(f.st)

	e := events.New(events.LoanRejected, f.reader.UserID.Hex())
	e.LoanID = primitive.NewObjectID().Hex()
	e.Data["code"] = "LN-20240310-ABCDEF"
	e.Data["reason"] = "reserved for a course"
	require.NoError(t, d.Handle(f.ctx, e))

	items, total, err := d.List(f.ctx, f.reader, false, 1, 10)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	n := items[0]
	assert.Equal(t, string(events.LoanRejected), n.Type)
	assert.Equal(t, "Loan rejected", n.Title)
	assert.Contains(t, n.Message, "LN-20240310-ABCDEF")
	assert.Contains(t, n.Message, "reserved for a course")
	assert.Equal(t, e.LoanID, n.Data["loanId"])
	assert.Equal(t, e.ID, n.EventID)
	assert.NotContains(t, e.Data, "loanId")

	others, _, err := d.List(f.ctx, f.other, false, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestDispatcherIgnoresRedeliveredEvent(t *testing.T) {
	f := newFixture(t)
	d := NewNotificationDispatcher(f.st)

	e := events.New(events.FinePaid, f.reader.UserID.Hex())
	e.FineID = primitive.NewObjectID().Hex()
	require.NoError(t, d.Handle(f.ctx, e))
	require.NoError(t, d.Handle(f.ctx, e))

	_, total, err := d.List(f.ctx, f.reader, false, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	// a distinct event of the same type still lands
	require.NoError(t, d.Handle(f.ctx, events.New(events.FinePaid, f.reader.UserID.Hex())))
	_, total, err = d.List(f.ctx, f.reader, false, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}

func TestDispatcherRejectsBadUserID(t *testing.T) {
	f := newFixture(t)
	d := NewNotificationDispatcher(f.st)
	err := d.Handle(f.ctx, events.New(events.FinePaid, "not-an-id"))
	assert.Error(t, err)
}

func TestMarkNotificationRead(t *testing.T) {
	f := newFixture(t)
	d := NewNotificationDispatcher(f.st)
	e := events.New(events.LoanDueSoon, f.reader.UserID.Hex())
	e.Data["dueDate"] = baseTime.Format(time.RFC3339)
	require.NoError(t, d.Handle(f.ctx, e))

	items, _, err := d.List(f.ctx, f.reader, true, 1, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Contains(t, items[0].Message, "2024-03-10")

	err = d.MarkRead(f.ctx, f.other, items[0].ID)
	requireCode(t, err, KindNotFound, CodeNotFound)

	require.NoError(t, d.MarkRead(f.ctx, f.reader, items[0].ID))
	unread, total, err := d.List(f.ctx, f.reader, true, 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, unread)
}

func TestDescribeCoversEveryEventType(t *testing.T) {
	all := []events.Type{
		events.LoanRequested, events.LoanCreated, events.LoanApproved, events.LoanRejected,
		events.LoanCancelled, events.LoanReturned, events.LoanPartiallyReturned, events.LoanOverdue,
		events.LoanDueSoon, events.ExtensionRequested, events.ExtensionApproved, events.ExtensionRejected,
		events.FineIssued, events.FinePaid, events.FineWaived,
	}
	for _, typ := range all {
		title, msg := describe(events.New(typ, ""))
		assert.NotEqual(t, string(typ), title, typ)
		assert.NotEmpty(t, msg, typ)
	}
}

func TestWorkflowEventsReachNotifications(t *testing.T) {
	f := newFixture(t)
	bus := events.NewChannelBus(16)
	opts := []Option{WithClock(f.clock.Now)}
	extensions := NewExtensionService(f.st, bus, opts...)
	returns := NewReturnService(f.st, bus, f.policy, opts...)
	loans := NewLoanService(f.st, bus, returns, extensions, opts...)
	d := NewNotificationDispatcher(f.st)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bus.Run(ctx, d.Handle) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	book := f.addBook(t, "Book A", 1, 1000)
	loan, err := loans.CreateSelfService(f.ctx, f.reader, CreateLoanInput{
		DueDate: baseTime.Add(7 * 24 * time.Hour),
		Items:   []ItemRequest{{BookID: book.ID, Qty: 1}},
	})
	require.NoError(t, err)
	_, err = loans.Approve(f.ctx, f.librarian, loan.ID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, total, err := f.st.ListNotifications(f.ctx, f.reader.UserID, false, 1, 10)
		return err == nil && total == 2
	}, time.Second, 10*time.Millisecond)

	items, _, err := f.st.ListNotifications(f.ctx, f.reader.UserID, false, 1, 10)
	require.NoError(t, err)
	types := []string{items[0].Type, items[1].Type}
	assert.ElementsMatch(t, []string{string(events.LoanRequested), string(events.LoanApproved)}, types)
	for _, n := range items {
		assert.Equal(t, loan.ID.Hex(), n.Data["loanId"])
	}
}
