package service

import (
	"testing"
	"time"

	"github.com/kevinaaaquil/unilib/events"
	"github.com/kevinaaaquil/unilib/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestPartialThenFullReturn(t *testing.T) {
	f := newFixture(t)
	book := f.addBook(t, "Book A", 3, 1000)
	due := baseTime.Add(7 * 24 * time.Hour)
	loan := f.borrowed(t, due, ItemRequest{BookID: book.ID, Qty: 3})
	assert.Equal(t, 0, f.book(t, book).QuantityAvailable)

	res, err := f.returns.Process(f.ctx, f.librarian, loan.ID, []ReturnItemInput{{BookID: book.ID, Qty: 1}})
	require.NoError(t, err)
	assert.Equal(t, models.LoanPartialReturn, res.Loan.Status)
	assert.Equal(t, 1, res.Loan.Items[0].ReturnedQty)
	assert.Equal(t, models.ConditionGood, res.Loan.Items[0].Condition)
	assert.Nil(t, res.Loan.ReturnDate)
	assert.Empty(t, res.Fines)
	assert.Equal(t, 1, f.book(t, book).QuantityAvailable)
	assert.Equal(t, events.LoanPartiallyReturned, f.bus.last().Type)

	_, err = f.returns.Process(f.ctx, f.librarian, loan.ID, []ReturnItemInput{{BookID: book.ID, Qty: 3}})
	requireCode(t, err, KindConflict, CodeAlreadyReturned)
	assert.Equal(t, 1, f.book(t, book).QuantityAvailable)

	res, err = f.returns.Process(f.ctx, f.librarian, loan.ID, []ReturnItemInput{{BookID: book.ID, Qty: 2}})
	require.NoError(t, err)
	assert.Equal(t, models.LoanReturned, res.Loan.Status)
	assert.Equal(t, 3, res.Loan.Items[0].ReturnedQty)
	assert.Equal(t, 3, f.book(t, book).QuantityAvailable)

	returns, err := f.returns.ListForLoan(f.ctx, f.reader, loan.ID)
	require.NoError(t, err)
	assert.Len(t, returns, 2)
}

func TestRepeatedReturnIsRejected(t *testing.T) {
	f := newFixture(t)
	book := f.addBook(t, "Book A", 2, 1000)
	due := baseTime.Add(24 * time.Hour)
	loan := f.borrowed(t, due, ItemRequest{BookID: book.ID, Qty: 2})

	f.clock.Set(due.Add(48 * time.Hour))
	items := []ReturnItemInput{{BookID: book.ID, Qty: 2}}
	_, err := f.returns.Process(f.ctx, f.librarian, loan.ID, items)
	require.NoError(t, err)

	_, err = f.returns.Process(f.ctx, f.librarian, loan.ID, items)
	requireCode(t, err, KindConflict, CodeInvalidStatus)

	fines, total, err := f.fines.List(f.ctx, f.librarian, models.FineFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, int64(10000), fines[0].Amount)
	assert.Equal(t, 2, f.book(t, book).QuantityAvailable)
}

func TestLostAndDamagedReturnIssueFines(t *testing.T) {
	f := newFixture(t)
	lost := f.addBook(t, "Lost title", 3, 100000)
	damaged := f.addBook(t, "Damaged title", 2, 100000)
	due := baseTime.Add(7 * 24 * time.Hour)
	loan := f.borrowed(t, due,
		ItemRequest{BookID: lost.ID, Qty: 1},
		ItemRequest{BookID: damaged.ID, Qty: 2},
	)

	res, err := f.returns.Process(f.ctx, f.librarian, loan.ID, []ReturnItemInput{
		{BookID: lost.ID, Qty: 1, Condition: models.ConditionLost},
		{BookID: damaged.ID, Qty: 2, Condition: models.ConditionDamaged, DamageLevel: 50, OtherFee: 2500},
	})
	require.NoError(t, err)
	assert.Equal(t, models.LoanReturned, res.Loan.Status)

	got := f.book(t, lost)
	assert.Equal(t, 2, got.QuantityTotal)
	assert.Equal(t, 2, got.QuantityAvailable)
	got = f.book(t, damaged)
	assert.Equal(t, 2, got.QuantityTotal)
	assert.Equal(t, 2, got.QuantityAvailable)

	require.Len(t, res.Fines, 2)
	assert.Equal(t, models.FineLoss, res.Fines[0].Type)
	assert.Equal(t, int64(100000), res.Fines[0].Amount)
	assert.Equal(t, lost.ID, *res.Fines[0].BookID)
	assert.Equal(t, models.FineDamage, res.Fines[1].Type)
	assert.Equal(t, int64(30000), res.Fines[1].Amount)
	for _, fine := range res.Fines {
		assert.Equal(t, res.Return.ID, *fine.ReturnID)
		assert.Equal(t, models.FinePending, fine.Status)
	}

	require.Len(t, res.Return.Items, 2)
	assert.Zero(t, res.Return.Items[0].TotalFee)
	assert.Equal(t, int64(30000), res.Return.Items[1].DamageFee)
	assert.Equal(t, int64(32500), res.Return.Items[1].TotalFee)
	assert.Equal(t, int64(32500), res.Return.TotalAmount)
	assert.Equal(t, 2, f.bus.count(events.FineIssued))
}

func TestLateFeeIsChargedOnlyForNewDays(t *testing.T) {
	f := newFixture(t)
	book := f.addBook(t, "Book A", 2, 1000)
	due := baseTime.Add(24 * time.Hour)
	loan := f.borrowed(t, due, ItemRequest{BookID: book.ID, Qty: 2})

	f.clock.Set(due.Add(2 * 24 * time.Hour))
	res, err := f.returns.Process(f.ctx, f.librarian, loan.ID, []ReturnItemInput{{BookID: book.ID, Qty: 1}})
	require.NoError(t, err)
	require.Len(t, res.Fines, 1)
	assert.Equal(t, int64(10000), res.Fines[0].Amount)
	assert.Equal(t, 2, res.Loan.LateDaysCharged)

	f.clock.Set(due.Add(5 * 24 * time.Hour))
	res, err = f.returns.Process(f.ctx, f.librarian, loan.ID, []ReturnItemInput{{BookID: book.ID, Qty: 1}})
	require.NoError(t, err)
	require.Len(t, res.Fines, 1)
	assert.Equal(t, int64(15000), res.Fines[0].Amount)
	assert.Equal(t, 5, res.Loan.LateDaysCharged)
}

func TestReturnValidation(t *testing.T) {
	f := newFixture(t)
	book := f.addBook(t, "Book A", 2, 1000)
	loan := f.borrowed(t, baseTime.Add(time.Hour), ItemRequest{BookID: book.ID, Qty: 1})

	_, err := f.returns.Process(f.ctx, f.librarian, loan.ID, nil)
	requireCode(t, err, KindValidation, CodeValidation)

	_, err = f.returns.Process(f.ctx, f.librarian, loan.ID, []ReturnItemInput{
		{BookID: book.ID, Qty: 1, Condition: "BURNT", DamageLevel: 120},
	})
	requireCode(t, err, KindValidation, CodeValidation)
	assert.Contains(t, AsError(err).Fields, "returnedItems[0].condition")
	assert.Contains(t, AsError(err).Fields, "returnedItems[0].damageLevel")

	_, err = f.returns.Process(f.ctx, f.librarian, loan.ID, []ReturnItemInput{{BookID: primitive.NewObjectID(), Qty: 1}})
	requireCode(t, err, KindValidation, CodeValidation)

	_, err = f.returns.Process(f.ctx, f.reader, loan.ID, []ReturnItemInput{{BookID: book.ID, Qty: 1}})
	requireCode(t, err, KindPermission, CodeForbidden)

	_, err = f.returns.Process(f.ctx, f.librarian, primitive.NewObjectID(), []ReturnItemInput{{BookID: book.ID, Qty: 1}})
	requireCode(t, err, KindNotFound, CodeLoanNotFound)
}

func TestReturnOfPendingLoanIsRejected(t *testing.T) {
	f := newFixture(t)
	book := f.addBook(t, "Book A", 2, 1000)
	loan, err := f.loans.CreateSelfService(f.ctx, f.reader, CreateLoanInput{
		DueDate: baseTime.Add(time.Hour),
		Items:   []ItemRequest{{BookID: book.ID, Qty: 1}},
	})
	require.NoError(t, err)

	_, err = f.returns.Process(f.ctx, f.librarian, loan.ID, []ReturnItemInput{{BookID: book.ID, Qty: 1}})
	requireCode(t, err, KindConflict, CodeInvalidStatus)
	assert.Equal(t, 2, f.book(t, book).QuantityAvailable)
}
