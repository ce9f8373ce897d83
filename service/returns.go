package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/kevinaaaquil/unilib/events"
	"github.com/kevinaaaquil/unilib/models"
	"github.com/kevinaaaquil/unilib/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ReturnItemInput struct {
	BookID      primitive.ObjectID
	Qty         int
	Condition   models.ItemCondition
	DamageLevel int
	OtherFee    int64
	Notes       string
}

type ReturnResult struct {
	Loan   *models.Loan   `json:"loan"`
	Return *models.Return `json:"return"`
	Fines  []models.Fine  `json:"fines"`
}

// ReturnService processes books coming back, restores stock and issues fines.
type ReturnService struct {
	base
	policy *PolicyProvider
}

func NewReturnService(st Store, bus events.Publisher, policy *PolicyProvider, opts ...Option) *ReturnService {
	return &ReturnService{base: newBase(st, bus, opts), policy: policy}
}

func validateReturnItems(items []ReturnItemInput) ([]ReturnItemInput, error) {
	fields := map[string]string{}
	if len(items) == 0 {
		fields["returnedItems"] = "at least one item is required"
	}
	out := make([]ReturnItemInput, len(items))
	for i, it := range items {
		key := fmt.Sprintf("returnedItems[%d]", i)
		if it.BookID.IsZero() {
			fields[key+".bookId"] = "is required"
		}
		if it.Qty < 1 {
			fields[key+".qty"] = "must be at least 1"
		}
		if it.Condition == "" {
			it.Condition = models.ConditionGood
		}
		if !slices.Contains(models.ValidConditions, it.Condition) {
			fields[key+".condition"] = "must be GOOD, DAMAGED or LOST"
		}
		if it.DamageLevel < 0 || it.DamageLevel > 100 {
			fields[key+".damageLevel"] = "must be between 0 and 100"
		}
		if it.OtherFee < 0 {
			fields[key+".otherFee"] = "must be zero or positive"
		}
		out[i] = it
	}
	if len(fields) > 0 {
		return nil, Validation("invalid return request", fields)
	}
	return out, nil
}

// Process records one return visit for an active loan. In a single transaction it
// restores stock, updates the loan items and status, stores the Return record and
// issues LOSS, DAMAGE and LATE_RETURN fines. Copies already returned are rejected.
func (s *ReturnService) Process(ctx context.Context, staff models.Principal, loanID primitive.ObjectID, items []ReturnItemInput) (*ReturnResult, error) {
	if err := requireStaff(staff); err != nil {
		return nil, err
	}
	items, err := validateReturnItems(items)
	if err != nil {
		return nil, err
	}
	policy, err := s.policy.Current(ctx)
	if err != nil {
		return nil, err
	}

	var result *ReturnResult
	err = s.atomically(ctx, func(ctx context.Context) error {
		res, err := s.process(ctx, staff, loanID, items, *policy)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	kind := events.LoanPartiallyReturned
	if result.Loan.Status == models.LoanReturned {
		kind = events.LoanReturned
	}
	e := loanEvent(kind, result.Loan)
	e.Data["totalAmount"] = strconv.FormatInt(result.Return.TotalAmount, 10)
	evs := []events.Event{e}
	for i := range result.Fines {
		evs = append(evs, fineEvent(events.FineIssued, &result.Fines[i]))
	}
	s.publish(ctx, evs...)
	return result, nil
}

func (s *ReturnService) process(ctx context.Context, staff models.Principal, loanID primitive.ObjectID, items []ReturnItemInput, policy models.FinePolicy) (*ReturnResult, error) {
	loan, err := s.store.LoanByID(ctx, loanID)
	if err != nil {
		return nil, notFoundAs(err, CodeLoanNotFound, "loan not found")
	}
	if !loan.Status.IsActive() {
		return nil, invalidStatus(loan, "return")
	}
	now := s.now()
	dueDate := loan.DueDate

	books := map[primitive.ObjectID]*models.Book{}
	feeInputs := make([]FeeInput, 0, len(items))
	for i, it := range items {
		idx := loan.ItemFor(it.BookID)
		if idx < 0 {
			return nil, Validation("invalid return request", map[string]string{
				fmt.Sprintf("returnedItems[%d].bookId", i): "book is not part of this loan",
			})
		}
		li := &loan.Items[idx]
		if li.ReturnedQty+it.Qty > li.Qty {
			return nil, Conflict(CodeAlreadyReturned,
				fmt.Sprintf("only %d copies of book %s are outstanding", li.Outstanding(), it.BookID.Hex()))
		}
		book, ok := books[it.BookID]
		if !ok {
			book, err = s.store.BookByID(ctx, it.BookID)
			if err != nil {
				return nil, notFoundAs(err, CodeBookNotFound, "book "+it.BookID.Hex()+" not found")
			}
			books[it.BookID] = book
		}

		// A lost copy leaves the collection; anything else goes back on the shelf.
		if it.Condition == models.ConditionLost {
			_, err = s.store.AdjustStock(ctx, it.BookID, -it.Qty, 0)
		} else {
			_, err = s.store.AdjustAvailability(ctx, it.BookID, it.Qty)
		}
		if err != nil {
			if errors.Is(err, store.ErrStockConflict) {
				return nil, Conflict(CodeInsufficientStock, "stock counters for book "+it.BookID.Hex()+" are inconsistent")
			}
			return nil, notFoundAs(err, CodeBookNotFound, "book "+it.BookID.Hex()+" not found")
		}

		li.ReturnedQty += it.Qty
		li.Condition = it.Condition
		li.DamageLevel = it.DamageLevel
		li.ReturnNotes = it.Notes

		feeInputs = append(feeInputs, FeeInput{
			BookID:        it.BookID,
			Qty:           it.Qty,
			Condition:     it.Condition,
			DamagePercent: it.DamageLevel,
			OtherFee:      it.OtherFee,
			UnitPrice:     book.Price,
			Notes:         it.Notes,
		})
	}

	fees := ComputeReturnFees(policy, dueDate, now, feeInputs)
	ret := &models.Return{
		LoanID:      loan.ID,
		LibrarianID: staff.UserID,
		ReturnDate:  now,
		LateDays:    fees.LateDays,
		Items:       fees.Items,
		Currency:    policy.Currency,
		CreatedAt:   now,
	}
	if err := s.store.InsertReturn(ctx, ret); err != nil {
		return nil, fmt.Errorf("insert return: %w", err)
	}

	fines := s.buildFines(loan, ret, items, books, policy, fees.LateDays)
	if fees.LateDays > loan.LateDaysCharged {
		loan.LateDaysCharged = fees.LateDays
	}
	if loan.FullyReturned() {
		loan.Status = models.LoanReturned
		loan.ReturnDate = &now
	} else {
		loan.Status = models.LoanPartialReturn
	}
	if err := s.store.UpdateLoan(ctx, loan); err != nil {
		return nil, err
	}
	for i := range fines {
		if err := s.store.InsertFine(ctx, &fines[i]); err != nil {
			return nil, fmt.Errorf("insert fine: %w", err)
		}
	}
	return &ReturnResult{Loan: loan, Return: ret, Fines: fines}, nil
}

func (s *ReturnService) buildFines(loan *models.Loan, ret *models.Return, items []ReturnItemInput, books map[primitive.ObjectID]*models.Book, policy models.FinePolicy, lateDays int) []models.Fine {
	fines := []models.Fine{}
	newFine := func(t models.FineType, bookID *primitive.ObjectID, amount int64, reason string) models.Fine {
		retID := ret.ID
		return models.Fine{
			LoanID:    loan.ID,
			ReturnID:  &retID,
			UserID:    loan.ReaderUserID,
			BookID:    bookID,
			Type:      t,
			Amount:    amount,
			Currency:  policy.Currency,
			Status:    models.FinePending,
			Reason:    reason,
			CreatedAt: ret.ReturnDate,
		}
	}
	for _, it := range items {
		book := books[it.BookID]
		bookID := it.BookID
		switch {
		case it.Condition == models.ConditionLost:
			amount := LossFineAmount(policy, book.Price, it.Qty)
			fines = append(fines, newFine(models.FineLoss, &bookID, amount,
				fmt.Sprintf("%d lost copies of %q", it.Qty, book.Title)))
		case it.Condition == models.ConditionDamaged && it.DamageLevel > 0:
			amount := DamageFineAmount(policy, book.Price, it.DamageLevel, it.Qty)
			fines = append(fines, newFine(models.FineDamage, &bookID, amount,
				fmt.Sprintf("%d%% damage on %d copies of %q", it.DamageLevel, it.Qty, book.Title)))
		}
	}
	if amount := LateFineAmount(policy, lateDays, loan.LateDaysCharged); amount > 0 {
		fines = append(fines, newFine(models.FineLateReturn, nil, amount,
			fmt.Sprintf("returned %d days late", lateDays)))
	}
	return fines
}

func (s *ReturnService) ListForLoan(ctx context.Context, p models.Principal, loanID primitive.ObjectID) ([]models.Return, error) {
	loan, err := s.store.LoanByID(ctx, loanID)
	if err != nil {
		return nil, notFoundAs(err, CodeLoanNotFound, "loan not found")
	}
	if err := requireOwnerOrStaff(p, loan.ReaderUserID); err != nil {
		return nil, err
	}
	rets, err := s.store.ReturnsByLoan(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("list returns: %w", err)
	}
	return rets, nil
}
