package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kevinaaaquil/unilib/events"
	"github.com/kevinaaaquil/unilib/models"
	"github.com/kevinaaaquil/unilib/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationDispatcher consumes workflow events and stores in-app notifications for the borrower.
type NotificationDispatcher struct {
	store NotificationStore
	now   func() time.Time
}

func NewNotificationDispatcher(st NotificationStore) *NotificationDispatcher {
	return &NotificationDispatcher{store: st, now: func() time.Time { return time.Now().UTC() }}
}

// Handle satisfies events.Handler.
func (d *NotificationDispatcher) Handle(ctx context.Context, e events.Event) error {
	userID, err := primitive.ObjectIDFromHex(e.UserID)
	if err != nil {
		return fmt.Errorf("event %s has invalid user id %q", e.ID, e.UserID)
	}
	title, message := describe(e)
	data := make(map[string]string, len(e.Data)+3)
	for k, v := range e.Data {
		data[k] = v
	}
	n := &models.Notification{
		UserID:    userID,
		Type:      string(e.Type),
		Title:     title,
		Message:   message,
		Data:      data,
		EventID:   e.ID,
		CreatedAt: d.now(),
	}
	if e.LoanID != "" {
		data["loanId"] = e.LoanID
	}
	if e.FineID != "" {
		data["fineId"] = e.FineID
	}
	if e.ExtensionID != "" {
		data["extensionId"] = e.ExtensionID
	}
	err = d.store.InsertNotification(ctx, n)
	if errors.Is(err, store.ErrDuplicate) {
		slog.Debug("event already delivered", "event", e.Type, "id", e.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func describe(e events.Event) (string, string) {
	code := e.Data["code"]
	switch e.Type {
	case events.LoanRequested:
		return "Loan requested", fmt.Sprintf("Your loan request %s is waiting for approval.", code)
	case events.LoanCreated:
		return "Loan created", fmt.Sprintf("Loan %s was created for you. Please return the books by %s.", code, shortDate(e.Data["dueDate"]))
	case events.LoanApproved:
		return "Loan approved", fmt.Sprintf("Your loan %s was approved. Please return the books by %s.", code, shortDate(e.Data["dueDate"]))
	case events.LoanRejected:
		msg := fmt.Sprintf("Your loan request %s was rejected.", code)
		if r := e.Data["reason"]; r != "" {
			msg += " Reason: " + r
		}
		return "Loan rejected", msg
	case events.LoanCancelled:
		return "Loan cancelled", fmt.Sprintf("Your loan request %s was cancelled.", code)
	case events.LoanReturned:
		return "Books returned", fmt.Sprintf("All books of loan %s are returned. Thank you.", code)
	case events.LoanPartiallyReturned:
		return "Books partially returned", fmt.Sprintf("Part of loan %s was returned. The remaining books are due %s.", code, shortDate(e.Data["dueDate"]))
	case events.LoanOverdue:
		return "Loan overdue", fmt.Sprintf("Loan %s is %s days overdue. Late fees apply until the books are returned.", code, e.Data["daysOverdue"])
	case events.LoanDueSoon:
		return "Loan due soon", fmt.Sprintf("Loan %s is due on %s.", code, shortDate(e.Data["dueDate"]))
	case events.ExtensionRequested:
		return "Extension requested", fmt.Sprintf("Your request to extend by %s days is waiting for review.", e.Data["days"])
	case events.ExtensionApproved:
		return "Extension approved", fmt.Sprintf("Your loan is now due on %s.", shortDate(e.Data["newDueDate"]))
	case events.ExtensionRejected:
		return "Extension rejected", "Your extension request was rejected."
	case events.FineIssued:
		return "Fine issued", fmt.Sprintf("A %s fine of %s %s was issued.", e.Data["type"], e.Data["amount"], e.Data["currency"])
	case events.FinePaid:
		return "Fine paid", fmt.Sprintf("Payment of %s %s was recorded.", e.Data["amount"], e.Data["currency"])
	case events.FineWaived:
		return "Fine waived", fmt.Sprintf("A fine of %s %s was waived.", e.Data["amount"], e.Data["currency"])
	default:
		return string(e.Type), ""
	}
}

func shortDate(raw string) string {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	return t.Format("2006-01-02")
}

func (d *NotificationDispatcher) List(ctx context.Context, p models.Principal, unreadOnly bool, page, limit int) ([]models.Notification, int64, error) {
	items, total, err := d.store.ListNotifications(ctx, p.UserID, unreadOnly, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	return items, total, nil
}

func (d *NotificationDispatcher) MarkRead(ctx context.Context, p models.Principal, id primitive.ObjectID) error {
	err := d.store.MarkNotificationRead(ctx, p.UserID, id)
	if errors.Is(err, store.ErrNotFound) {
		return NotFound(CodeNotFound, "notification not found")
	}
	return err
}
