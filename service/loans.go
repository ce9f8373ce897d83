package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/kevinaaaquil/unilib/events"
	"github.com/kevinaaaquil/unilib/models"
	"github.com/kevinaaaquil/unilib/store"
	"github.com/kevinaaaquil/unilib/utils"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const DefaultDueSoonWindow = 48 * time.Hour

type ItemRequest struct {
	BookID primitive.ObjectID
	Qty    int
}

type CreateLoanInput struct {
	ReaderUserID primitive.ObjectID
	DueDate      time.Time
	Items        []ItemRequest
	Notes        string
}

// LoanService owns the loan state machine:
// PENDING -> BORROWED -> (PARTIAL_RETURN ->) RETURNED, and PENDING -> CANCELLED.
type LoanService struct {
	base
	returns       *ReturnService
	extensions    *ExtensionService
	dueSoonWindow time.Duration
}

func NewLoanService(st Store, bus events.Publisher, returns *ReturnService, extensions *ExtensionService, opts ...Option) *LoanService {
	return &LoanService{
		base:          newBase(st, bus, opts),
		returns:       returns,
		extensions:    extensions,
		dueSoonWindow: DefaultDueSoonWindow,
	}
}

func (s *LoanService) SetDueSoonWindow(d time.Duration) {
	if d > 0 {
		s.dueSoonWindow = d
	}
}

// mergeItems validates quantities and folds repeated book ids into one item.
func mergeItems(items []ItemRequest) ([]models.LoanItem, map[string]string) {
	fields := map[string]string{}
	if len(items) == 0 {
		fields["items"] = "at least one item is required"
		return nil, fields
	}
	index := map[primitive.ObjectID]int{}
	merged := make([]models.LoanItem, 0, len(items))
	for i, it := range items {
		if it.BookID.IsZero() {
			fields[fmt.Sprintf("items[%d].bookId", i)] = "is required"
			continue
		}
		if it.Qty < 1 {
			fields[fmt.Sprintf("items[%d].qty", i)] = "must be at least 1"
			continue
		}
		if j, ok := index[it.BookID]; ok {
			merged[j].Qty += it.Qty
			continue
		}
		index[it.BookID] = len(merged)
		merged = append(merged, models.LoanItem{BookID: it.BookID, Qty: it.Qty})
	}
	return merged, fields
}

func (s *LoanService) validateRequest(in CreateLoanInput) ([]models.LoanItem, error) {
	items, fields := mergeItems(in.Items)
	if !in.DueDate.After(s.now()) {
		fields["dueDate"] = "must be in the future"
	}
	if len(fields) > 0 {
		return nil, Validation("invalid loan request", fields)
	}
	return items, nil
}

// checkStock verifies every book exists, is lendable and has enough copies on the shelf.
func (s *LoanService) checkStock(ctx context.Context, items []models.LoanItem) error {
	for _, it := range items {
		book, err := s.store.BookByID(ctx, it.BookID)
		if err != nil {
			return notFoundAs(err, CodeBookNotFound, "book "+it.BookID.Hex()+" not found")
		}
		if book.Status != models.BookActive {
			return Invalid(CodeBookNotAvailable, fmt.Sprintf("book %q is not available for loan", book.Title))
		}
		if book.QuantityAvailable < it.Qty {
			return Conflict(CodeInsufficientStock,
				fmt.Sprintf("only %d copies of %q available, %d requested", book.QuantityAvailable, book.Title, it.Qty))
		}
	}
	return nil
}

func (s *LoanService) takeStock(ctx context.Context, items []models.LoanItem) error {
	for _, it := range items {
		if _, err := s.store.AdjustAvailability(ctx, it.BookID, -it.Qty); err != nil {
			if errors.Is(err, store.ErrStockConflict) {
				return Conflict(CodeInsufficientStock, "not enough copies available for book "+it.BookID.Hex())
			}
			return notFoundAs(err, CodeBookNotFound, "book "+it.BookID.Hex()+" not found")
		}
	}
	return nil
}

var errLoanCodeTaken = errors.New("loan code already taken")

// insertLoan stamps a fresh code and inserts once. A failed insert also aborts an enclosing
// transaction, so a code collision is returned as retryable and the caller's unit starts over.
func (s *LoanService) insertLoan(ctx context.Context, loan *models.Loan) error {
	loan.Code = utils.NewLoanCode(loan.CreatedAt)
	if err := s.store.InsertLoan(ctx, loan); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return fmt.Errorf("insert loan %s: %w", loan.Code, errLoanCodeTaken)
		}
		return fmt.Errorf("insert loan: %w", err)
	}
	return nil
}

// CreateSelfService records a reader's loan request. Stock is reserved only on approval.
func (s *LoanService) CreateSelfService(ctx context.Context, reader models.Principal, in CreateLoanInput) (*models.Loan, error) {
	items, err := s.validateRequest(in)
	if err != nil {
		return nil, err
	}
	if err := s.checkStock(ctx, items); err != nil {
		return nil, err
	}
	now := s.now()
	loan := &models.Loan{
		ReaderUserID:  reader.UserID,
		CreatedByRole: models.RoleUser,
		DueDate:       in.DueDate.UTC(),
		Items:         items,
		Status:        models.LoanPending,
		Notes:         in.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.retry(ctx, func(ctx context.Context) error { return s.insertLoan(ctx, loan) }); err != nil {
		return nil, err
	}
	s.publish(ctx, loanEvent(events.LoanRequested, loan))
	return loan, nil
}

// CreateByLibrarian is the walk-in path: stock leaves the shelf immediately and the loan starts BORROWED.
func (s *LoanService) CreateByLibrarian(ctx context.Context, staff models.Principal, in CreateLoanInput) (*models.Loan, error) {
	if err := requireStaff(staff); err != nil {
		return nil, err
	}
	items, err := s.validateRequest(in)
	if err != nil {
		return nil, err
	}
	if in.ReaderUserID.IsZero() {
		return nil, Validation("invalid loan request", map[string]string{"readerUserId": "is required"})
	}
	if _, err := s.store.UserByID(ctx, in.ReaderUserID); err != nil {
		return nil, notFoundAs(err, CodeUserNotFound, "reader not found")
	}

	var loan *models.Loan
	err = s.atomically(ctx, func(ctx context.Context) error {
		if err := s.checkStock(ctx, items); err != nil {
			return err
		}
		if err := s.takeStock(ctx, items); err != nil {
			return err
		}
		now := s.now()
		librarian := staff.UserID
		l := &models.Loan{
			ReaderUserID:  in.ReaderUserID,
			LibrarianID:   &librarian,
			CreatedByRole: models.RoleLibrarian,
			LoanDate:      &now,
			DueDate:       in.DueDate.UTC(),
			Items:         append([]models.LoanItem(nil), items...),
			Status:        models.LoanBorrowed,
			Notes:         in.Notes,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.insertLoan(ctx, l); err != nil {
			return err
		}
		loan = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, loanEvent(events.LoanCreated, loan))
	return loan, nil
}

func (s *LoanService) load(ctx context.Context, id primitive.ObjectID) (*models.Loan, error) {
	loan, err := s.store.LoanByID(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, CodeLoanNotFound, "loan not found")
	}
	return loan, nil
}

func invalidStatus(loan *models.Loan, action string) error {
	return Conflict(CodeInvalidStatus, fmt.Sprintf("cannot %s a loan with status %s", action, loan.Status))
}

// Approve re-checks and reserves stock for a PENDING loan in one transaction.
func (s *LoanService) Approve(ctx context.Context, staff models.Principal, id primitive.ObjectID) (*models.Loan, error) {
	if err := requireStaff(staff); err != nil {
		return nil, err
	}
	var loan *models.Loan
	err := s.atomically(ctx, func(ctx context.Context) error {
		l, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if l.Status != models.LoanPending {
			return invalidStatus(l, "approve")
		}
		if err := s.checkStock(ctx, l.Items); err != nil {
			return err
		}
		if err := s.takeStock(ctx, l.Items); err != nil {
			return err
		}
		now := s.now()
		librarian := staff.UserID
		l.Status = models.LoanBorrowed
		l.LoanDate = &now
		l.LibrarianID = &librarian
		if err := s.store.UpdateLoan(ctx, l); err != nil {
			return err
		}
		loan = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, loanEvent(events.LoanApproved, loan))
	return loan, nil
}

func (s *LoanService) Reject(ctx context.Context, staff models.Principal, id primitive.ObjectID, reason string) (*models.Loan, error) {
	if err := requireStaff(staff); err != nil {
		return nil, err
	}
	var loan *models.Loan
	err := s.atomically(ctx, func(ctx context.Context) error {
		l, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if l.Status != models.LoanPending {
			return invalidStatus(l, "reject")
		}
		librarian := staff.UserID
		l.Status = models.LoanCancelled
		l.RejectReason = reason
		l.LibrarianID = &librarian
		if err := s.store.UpdateLoan(ctx, l); err != nil {
			return err
		}
		loan = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	e := loanEvent(events.LoanRejected, loan)
	e.Data["reason"] = reason
	s.publish(ctx, e)
	return loan, nil
}

// Cancel lets a reader withdraw their own PENDING request.
func (s *LoanService) Cancel(ctx context.Context, reader models.Principal, id primitive.ObjectID) (*models.Loan, error) {
	var loan *models.Loan
	err := s.atomically(ctx, func(ctx context.Context) error {
		l, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if l.ReaderUserID != reader.UserID {
			return Forbidden("only the borrower can cancel this loan")
		}
		if l.Status != models.LoanPending {
			return invalidStatus(l, "cancel")
		}
		l.Status = models.LoanCancelled
		if err := s.store.UpdateLoan(ctx, l); err != nil {
			return err
		}
		loan = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, loanEvent(events.LoanCancelled, loan))
	return loan, nil
}

// Return hands the visit to the return engine.
func (s *LoanService) Return(ctx context.Context, staff models.Principal, id primitive.ObjectID, items []ReturnItemInput) (*ReturnResult, error) {
	return s.returns.Process(ctx, staff, id, items)
}

// Extend files a due date extension request for the loan.
func (s *LoanService) Extend(ctx context.Context, p models.Principal, id primitive.ObjectID, days int, reason string) (*models.LoanExtension, error) {
	return s.extensions.Request(ctx, p, id, days, reason)
}

func (s *LoanService) Get(ctx context.Context, p models.Principal, id primitive.ObjectID) (*models.Loan, error) {
	loan, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireOwnerOrStaff(p, loan.ReaderUserID); err != nil {
		return nil, err
	}
	return loan, nil
}

// List scopes readers to their own loans; staff may filter by reader.
func (s *LoanService) List(ctx context.Context, p models.Principal, f models.LoanFilter) ([]models.Loan, int64, error) {
	if !p.Role.IsStaff() {
		own := p.UserID
		f.ReaderUserID = &own
	}
	f.Now = s.now()
	loans, total, err := s.store.ListLoans(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("list loans: %w", err)
	}
	return loans, total, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// SweepOverdue emits one LoanOverdue event per active past-due loan per day.
// Overdue is never stored as a status; the sweep only stamps when the reader was told.
func (s *LoanService) SweepOverdue(ctx context.Context, now time.Time) (int, error) {
	loans, err := s.store.ActiveLoansDueBetween(ctx, time.Time{}, now)
	if err != nil {
		return 0, fmt.Errorf("find overdue loans: %w", err)
	}
	sent := 0
	for i := range loans {
		loan := &loans[i]
		if loan.LastOverdueNoticeAt != nil && sameDay(*loan.LastOverdueNoticeAt, now) {
			continue
		}
		stamp := now
		loan.LastOverdueNoticeAt = &stamp
		if err := s.store.UpdateLoan(ctx, loan); err != nil {
			slog.Warn("overdue sweep skipped loan", "loan", loan.Code, "err", err)
			continue
		}
		e := loanEvent(events.LoanOverdue, loan)
		e.Data["daysOverdue"] = strconv.Itoa(LateDays(loan.DueDate, now))
		s.publish(ctx, e)
		sent++
	}
	slog.Info("overdue sweep finished", "candidates", len(loans), "notified", sent)
	return sent, nil
}

// SweepDueSoon emits LoanDueSoon for active loans due inside the window, once per day.
func (s *LoanService) SweepDueSoon(ctx context.Context, now time.Time) (int, error) {
	loans, err := s.store.ActiveLoansDueBetween(ctx, now, now.Add(s.dueSoonWindow))
	if err != nil {
		return 0, fmt.Errorf("find loans due soon: %w", err)
	}
	sent := 0
	for i := range loans {
		loan := &loans[i]
		if loan.LastDueSoonNoticeAt != nil && sameDay(*loan.LastDueSoonNoticeAt, now) {
			continue
		}
		stamp := now
		loan.LastDueSoonNoticeAt = &stamp
		if err := s.store.UpdateLoan(ctx, loan); err != nil {
			slog.Warn("due soon sweep skipped loan", "loan", loan.Code, "err", err)
			continue
		}
		s.publish(ctx, loanEvent(events.LoanDueSoon, loan))
		sent++
	}
	slog.Info("due soon sweep finished", "candidates", len(loans), "notified", sent)
	return sent, nil
}
