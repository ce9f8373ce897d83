package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kevinaaaquil/unilib/events"
	"github.com/kevinaaaquil/unilib/models"
	"github.com/kevinaaaquil/unilib/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MinExtensionDays = 1
	MaxExtensionDays = 30
)

type ExtensionService struct {
	base
}

func NewExtensionService(st Store, bus events.Publisher, opts ...Option) *ExtensionService {
	return &ExtensionService{base: newBase(st, bus, opts)}
}

func extensionEvent(t events.Type, ext *models.LoanExtension, reader primitive.ObjectID) events.Event {
	e := events.New(t, reader.Hex())
	e.LoanID = ext.LoanID.Hex()
	e.ExtensionID = ext.ID.Hex()
	e.Data["days"] = strconv.Itoa(ext.ExtensionDays)
	e.Data["newDueDate"] = ext.NewDueDate.Format(time.RFC3339)
	if ext.ReviewNote != "" {
		e.Data["note"] = ext.ReviewNote
	}
	return e
}

// Request asks for the loan's due date to move forward by days.
// Only one PENDING request may exist per loan.
func (s *ExtensionService) Request(ctx context.Context, p models.Principal, loanID primitive.ObjectID, days int, reason string) (*models.LoanExtension, error) {
	if days < MinExtensionDays || days > MaxExtensionDays {
		return nil, Validation("invalid extension request", map[string]string{
			"days": fmt.Sprintf("must be between %d and %d", MinExtensionDays, MaxExtensionDays),
		})
	}
	loan, err := s.store.LoanByID(ctx, loanID)
	if err != nil {
		return nil, notFoundAs(err, CodeLoanNotFound, "loan not found")
	}
	if err := requireOwnerOrStaff(p, loan.ReaderUserID); err != nil {
		return nil, err
	}
	if !loan.Status.IsActive() {
		return nil, invalidStatus(loan, "extend")
	}
	if _, err := s.store.PendingExtensionForLoan(ctx, loanID); err == nil {
		return nil, Conflict(CodeDuplicateRequest, "an extension request for this loan is already pending")
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check pending extension: %w", err)
	}

	ext := &models.LoanExtension{
		LoanID:         loan.ID,
		RequestedBy:    p.UserID,
		CurrentDueDate: loan.DueDate,
		NewDueDate:     loan.DueDate.AddDate(0, 0, days),
		ExtensionDays:  days,
		Reason:         strings.TrimSpace(reason),
		Status:         models.ExtensionPending,
		CreatedAt:      s.now(),
	}
	if err := s.store.InsertExtension(ctx, ext); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, Conflict(CodeDuplicateRequest, "an extension request for this loan is already pending")
		}
		return nil, fmt.Errorf("insert extension: %w", err)
	}
	s.publish(ctx, extensionEvent(events.ExtensionRequested, ext, loan.ReaderUserID))
	return ext, nil
}

func (s *ExtensionService) loadPending(ctx context.Context, id primitive.ObjectID) (*models.LoanExtension, error) {
	ext, err := s.store.ExtensionByID(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, CodeExtensionNotFound, "extension not found")
	}
	if ext.Status != models.ExtensionPending {
		return nil, Conflict(CodeInvalidStatus, fmt.Sprintf("extension is already %s", ext.Status))
	}
	return ext, nil
}

// Approve moves the parent loan's due date and closes the request in one transaction.
func (s *ExtensionService) Approve(ctx context.Context, staff models.Principal, id primitive.ObjectID, note string) (*models.LoanExtension, error) {
	if err := requireStaff(staff); err != nil {
		return nil, err
	}
	var (
		ext    *models.LoanExtension
		reader primitive.ObjectID
	)
	err := s.atomically(ctx, func(ctx context.Context) error {
		e, err := s.loadPending(ctx, id)
		if err != nil {
			return err
		}
		loan, err := s.store.LoanByID(ctx, e.LoanID)
		if err != nil {
			return notFoundAs(err, CodeLoanNotFound, "loan not found")
		}
		if !loan.Status.IsActive() {
			return invalidStatus(loan, "extend")
		}
		loan.DueDate = e.NewDueDate
		loan.LastDueSoonNoticeAt = nil
		if err := s.store.UpdateLoan(ctx, loan); err != nil {
			return err
		}
		now := s.now()
		reviewer := staff.UserID
		e.Status = models.ExtensionApproved
		e.ReviewedBy = &reviewer
		e.ReviewedAt = &now
		e.ReviewNote = strings.TrimSpace(note)
		if err := s.store.UpdateExtensionReview(ctx, e, models.ExtensionPending); err != nil {
			return err
		}
		ext, reader = e, loan.ReaderUserID
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, extensionEvent(events.ExtensionApproved, ext, reader))
	return ext, nil
}

func (s *ExtensionService) Reject(ctx context.Context, staff models.Principal, id primitive.ObjectID, note string) (*models.LoanExtension, error) {
	if err := requireStaff(staff); err != nil {
		return nil, err
	}
	var ext *models.LoanExtension
	err := s.retry(ctx, func(ctx context.Context) error {
		e, err := s.loadPending(ctx, id)
		if err != nil {
			return err
		}
		now := s.now()
		reviewer := staff.UserID
		e.Status = models.ExtensionRejected
		e.ReviewedBy = &reviewer
		e.ReviewedAt = &now
		e.ReviewNote = strings.TrimSpace(note)
		if err := s.store.UpdateExtensionReview(ctx, e, models.ExtensionPending); err != nil {
			return err
		}
		ext = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	reader := ext.RequestedBy
	if loan, err := s.store.LoanByID(ctx, ext.LoanID); err == nil {
		reader = loan.ReaderUserID
	}
	s.publish(ctx, extensionEvent(events.ExtensionRejected, ext, reader))
	return ext, nil
}

func (s *ExtensionService) ListForLoan(ctx context.Context, p models.Principal, loanID primitive.ObjectID) ([]models.LoanExtension, error) {
	loan, err := s.store.LoanByID(ctx, loanID)
	if err != nil {
		return nil, notFoundAs(err, CodeLoanNotFound, "loan not found")
	}
	if err := requireOwnerOrStaff(p, loan.ReaderUserID); err != nil {
		return nil, err
	}
	exts, err := s.store.ExtensionsByLoan(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("list extensions: %w", err)
	}
	return exts, nil
}
