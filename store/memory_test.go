package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kevinaaaquil/unilib/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newBook(t *testing.T, m *MemoryStore, qty int) *models.Book {
	t.Helper()
	b := &models.Book{Title: "Book", QuantityTotal: qty, QuantityAvailable: qty, Status: models.BookActive}
	require.NoError(t, m.InsertBook(context.Background(), b))
	return b
}

func TestTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	b := newBook(t, m, 3)
	boom := errors.New("boom")

	err := m.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := m.AdjustAvailability(ctx, b.ID, -2); err != nil {
			return err
		}
		loan := &models.Loan{Code: "LN-1", Status: models.LoanBorrowed}
		if err := m.InsertLoan(ctx, loan); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := m.BookByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.QuantityAvailable)
	_, total, err := m.ListLoans(ctx, models.LoanFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestNestedTransactionJoinsOuter(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	b := newBook(t, m, 3)

	err := m.WithTransaction(ctx, func(ctx context.Context) error {
		if err := m.WithTransaction(ctx, func(ctx context.Context) error {
			_, err := m.AdjustAvailability(ctx, b.ID, -1)
			return err
		}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)
	got, err := m.BookByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.QuantityAvailable)
}

func TestStockGuard(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	b := newBook(t, m, 2)

	_, err := m.AdjustAvailability(ctx, b.ID, -3)
	assert.ErrorIs(t, err, ErrStockConflict)
	_, err = m.AdjustAvailability(ctx, b.ID, 1)
	assert.ErrorIs(t, err, ErrStockConflict)
	_, err = m.AdjustStock(ctx, b.ID, -1, 0)
	assert.ErrorIs(t, err, ErrStockConflict)

	got, err := m.AdjustStock(ctx, b.ID, -1, -1)
	require.NoError(t, err)
	assert.Equal(t, 1, got.QuantityTotal)
	assert.Equal(t, 1, got.QuantityAvailable)

	_, err = m.AdjustStock(ctx, primitive.NewObjectID(), 1, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoanVersionConflict(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	loan := &models.Loan{Code: "LN-1", Status: models.LoanPending, Items: []models.LoanItem{{BookID: primitive.NewObjectID(), Qty: 1}}}
	require.NoError(t, m.InsertLoan(ctx, loan))

	a, err := m.LoanByID(ctx, loan.ID)
	require.NoError(t, err)
	b, err := m.LoanByID(ctx, loan.ID)
	require.NoError(t, err)

	a.Status = models.LoanBorrowed
	a.Items[0].ReturnedQty = 1
	require.NoError(t, m.UpdateLoan(ctx, a))
	assert.EqualValues(t, 1, a.Version)

	b.Status = models.LoanCancelled
	assert.ErrorIs(t, m.UpdateLoan(ctx, b), ErrVersionConflict)

	got, err := m.LoanByID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanBorrowed, got.Status)
	assert.Equal(t, 1, got.Items[0].ReturnedQty)

	assert.ErrorIs(t, m.InsertLoan(ctx, &models.Loan{Code: "LN-1"}), ErrDuplicate)
}

func TestSinglePendingExtension(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	loanID := primitive.NewObjectID()

	first := &models.LoanExtension{LoanID: loanID, Status: models.ExtensionPending}
	require.NoError(t, m.InsertExtension(ctx, first))
	assert.ErrorIs(t, m.InsertExtension(ctx, &models.LoanExtension{LoanID: loanID, Status: models.ExtensionPending}), ErrDuplicate)

	first.Status = models.ExtensionRejected
	require.NoError(t, m.UpdateExtensionReview(ctx, first, models.ExtensionPending))
	assert.ErrorIs(t, m.UpdateExtensionReview(ctx, first, models.ExtensionPending), ErrVersionConflict)

	require.NoError(t, m.InsertExtension(ctx, &models.LoanExtension{LoanID: loanID, Status: models.ExtensionPending}))
	_, err := m.PendingExtensionForLoan(ctx, loanID)
	assert.NoError(t, err)
}

func TestNotificationEventIDIsUnique(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	user := primitive.NewObjectID()

	require.NoError(t, m.InsertNotification(ctx, &models.Notification{UserID: user, EventID: "evt-1"}))
	assert.ErrorIs(t, m.InsertNotification(ctx, &models.Notification{UserID: user, EventID: "evt-1"}), ErrDuplicate)
	// notifications without an event id are not deduplicated
	require.NoError(t, m.InsertNotification(ctx, &models.Notification{UserID: user}))
	require.NoError(t, m.InsertNotification(ctx, &models.Notification{UserID: user}))

	_, total, err := m.ListNotifications(ctx, user, false, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
}

func TestFineSettlementIsConditional(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	user := primitive.NewObjectID()
	fine := &models.Fine{UserID: user, Amount: 5000, Status: models.FinePending}
	require.NoError(t, m.InsertFine(ctx, fine))
	require.NoError(t, m.InsertFine(ctx, &models.Fine{UserID: user, Amount: 2500, Status: models.FinePending}))

	owed, err := m.OutstandingFines(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(7500), owed)

	fine.Status = models.FinePaid
	require.NoError(t, m.UpdateFineSettlement(ctx, fine, models.FinePending))
	fine.Status = models.FineWaived
	assert.ErrorIs(t, m.UpdateFineSettlement(ctx, fine, models.FinePending), ErrVersionConflict)

	owed, err = m.OutstandingFines(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), owed)
}

func TestListLoansPaginationAndOverdue(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	reader := primitive.NewObjectID()
	now := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		status := models.LoanBorrowed
		if i == 4 {
			status = models.LoanReturned
		}
		require.NoError(t, m.InsertLoan(ctx, &models.Loan{
			Code:         "LN-" + string(rune('A'+i)),
			ReaderUserID: reader,
			Status:       status,
			DueDate:      now.Add(time.Duration(i-2) * 24 * time.Hour),
			CreatedAt:    now.Add(time.Duration(i) * time.Minute),
		}))
	}

	page, total, err := m.ListLoans(ctx, models.LoanFilter{ReaderUserID: &reader, Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, "LN-C", page[0].Code)
	assert.Equal(t, "LN-B", page[1].Code)

	overdue, total, err := m.ListLoans(ctx, models.LoanFilter{Status: models.LoanOverdue, Now: now})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	for _, l := range overdue {
		assert.True(t, l.DueDate.Before(now))
	}

	due, err := m.ActiveLoansDueBetween(ctx, now, now.Add(48*time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "LN-C", due[0].Code)
	assert.Equal(t, "LN-D", due[1].Code)
}

func TestReplaceActivePolicy(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	first, err := m.EnsureActivePolicy(ctx, models.FinePolicy{LateFeePerDay: 5000, Currency: "IDR"})
	require.NoError(t, err)
	again, err := m.EnsureActivePolicy(ctx, models.FinePolicy{LateFeePerDay: 1})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	next := &models.FinePolicy{LateFeePerDay: 1000, Currency: "IDR"}
	require.NoError(t, m.ReplaceActivePolicy(ctx, next))
	active, err := m.ActivePolicy(ctx)
	require.NoError(t, err)
	assert.Equal(t, next.ID, active.ID)

	n := 0
	for _, p := range m.policies {
		if p.IsActive {
			n++
		}
	}
	assert.Equal(t, 1, n)
}

func TestNormalizePage(t *testing.T) {
	p, l := NormalizePage(0, 0)
	assert.Equal(t, 1, p)
	assert.Equal(t, 20, l)
	_, l = NormalizePage(3, 500)
	assert.Equal(t, 100, l)
}
