package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kevinaaaquil/unilib/events"
	"github.com/kevinaaaquil/unilib/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type FineService struct {
	base
}

func NewFineService(st Store, bus events.Publisher, opts ...Option) *FineService {
	return &FineService{base: newBase(st, bus, opts)}
}

func fineEvent(t events.Type, fine *models.Fine) events.Event {
	e := events.New(t, fine.UserID.Hex())
	e.LoanID = fine.LoanID.Hex()
	e.FineID = fine.ID.Hex()
	e.Data["type"] = string(fine.Type)
	e.Data["amount"] = strconv.FormatInt(fine.Amount, 10)
	e.Data["currency"] = fine.Currency
	if fine.WaiveReason != "" {
		e.Data["reason"] = fine.WaiveReason
	}
	return e
}

func (s *FineService) load(ctx context.Context, id primitive.ObjectID) (*models.Fine, error) {
	fine, err := s.store.FineByID(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, CodeFineNotFound, "fine not found")
	}
	return fine, nil
}

// settle moves a PENDING fine to its final state. apply mutates the loaded copy.
func (s *FineService) settle(ctx context.Context, id primitive.ObjectID, check func(*models.Fine) error, apply func(*models.Fine)) (*models.Fine, error) {
	var fine *models.Fine
	err := s.retry(ctx, func(ctx context.Context) error {
		f, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if err := check(f); err != nil {
			return err
		}
		if f.Status != models.FinePending {
			return Conflict(CodeInvalidStatus, fmt.Sprintf("fine is already %s", f.Status))
		}
		apply(f)
		if err := s.store.UpdateFineSettlement(ctx, f, models.FinePending); err != nil {
			return err
		}
		fine = f
		return nil
	})
	return fine, err
}

// Pay records payment. Readers may pay their own fines; staff may record any payment.
func (s *FineService) Pay(ctx context.Context, actor models.Principal, id primitive.ObjectID) (*models.Fine, error) {
	fine, err := s.settle(ctx, id,
		func(f *models.Fine) error { return requireOwnerOrStaff(actor, f.UserID) },
		func(f *models.Fine) {
			now := s.now()
			by := actor.UserID
			f.Status = models.FinePaid
			f.PaidBy = &by
			f.PaidAt = &now
		})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, fineEvent(events.FinePaid, fine))
	return fine, nil
}

func (s *FineService) Waive(ctx context.Context, staff models.Principal, id primitive.ObjectID, reason string) (*models.Fine, error) {
	if err := requireStaff(staff); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, Validation("invalid waive request", map[string]string{"reason": "is required"})
	}
	fine, err := s.settle(ctx, id,
		func(*models.Fine) error { return nil },
		func(f *models.Fine) {
			now := s.now()
			by := staff.UserID
			f.Status = models.FineWaived
			f.WaivedBy = &by
			f.WaivedAt = &now
			f.WaiveReason = reason
		})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, fineEvent(events.FineWaived, fine))
	return fine, nil
}

func (s *FineService) Get(ctx context.Context, p models.Principal, id primitive.ObjectID) (*models.Fine, error) {
	fine, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireOwnerOrStaff(p, fine.UserID); err != nil {
		return nil, err
	}
	return fine, nil
}

func (s *FineService) List(ctx context.Context, p models.Principal, f models.FineFilter) ([]models.Fine, int64, error) {
	if !p.Role.IsStaff() {
		own := p.UserID
		f.UserID = &own
	}
	fines, total, err := s.store.ListFines(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("list fines: %w", err)
	}
	return fines, total, nil
}

// Outstanding is the total of PENDING fines owed by userID.
func (s *FineService) Outstanding(ctx context.Context, p models.Principal, userID primitive.ObjectID) (int64, error) {
	if err := requireOwnerOrStaff(p, userID); err != nil {
		return 0, err
	}
	total, err := s.store.OutstandingFines(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("sum outstanding fines: %w", err)
	}
	return total, nil
}
