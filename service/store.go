package service

import (
	"context"
	"time"

	"github.com/kevinaaaquil/unilib/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// The interfaces below are satisfied by *store.DB and *store.MemoryStore.

type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type BookStore interface {
	InsertBook(ctx context.Context, book *models.Book) error
	BookByID(ctx context.Context, id primitive.ObjectID) (*models.Book, error)
	BooksByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Book, error)
	ListBooks(ctx context.Context, f models.BookFilter) ([]models.Book, int64, error)
	AdjustStock(ctx context.Context, id primitive.ObjectID, totalDelta, availableDelta int) (*models.Book, error)
	AdjustAvailability(ctx context.Context, id primitive.ObjectID, delta int) (*models.Book, error)
	SetBookStatus(ctx context.Context, id primitive.ObjectID, status models.BookStatus) (*models.Book, error)
}

type UserStore interface {
	UsersCount(ctx context.Context) (int64, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	ListUsers(ctx context.Context, role models.Role) ([]models.User, error)
}

type LoanStore interface {
	InsertLoan(ctx context.Context, loan *models.Loan) error
	LoanByID(ctx context.Context, id primitive.ObjectID) (*models.Loan, error)
	UpdateLoan(ctx context.Context, loan *models.Loan) error
	ListLoans(ctx context.Context, f models.LoanFilter) ([]models.Loan, int64, error)
	ActiveLoansDueBetween(ctx context.Context, from, to time.Time) ([]models.Loan, error)
}

type ExtensionStore interface {
	InsertExtension(ctx context.Context, ext *models.LoanExtension) error
	ExtensionByID(ctx context.Context, id primitive.ObjectID) (*models.LoanExtension, error)
	PendingExtensionForLoan(ctx context.Context, loanID primitive.ObjectID) (*models.LoanExtension, error)
	ExtensionsByLoan(ctx context.Context, loanID primitive.ObjectID) ([]models.LoanExtension, error)
	UpdateExtensionReview(ctx context.Context, ext *models.LoanExtension, from models.ExtensionStatus) error
}

type ReturnStore interface {
	InsertReturn(ctx context.Context, ret *models.Return) error
	ReturnsByLoan(ctx context.Context, loanID primitive.ObjectID) ([]models.Return, error)
}

type FineStore interface {
	InsertFine(ctx context.Context, fine *models.Fine) error
	FineByID(ctx context.Context, id primitive.ObjectID) (*models.Fine, error)
	ListFines(ctx context.Context, f models.FineFilter) ([]models.Fine, int64, error)
	OutstandingFines(ctx context.Context, userID primitive.ObjectID) (int64, error)
	UpdateFineSettlement(ctx context.Context, fine *models.Fine, from models.FineStatus) error
}

type PolicyStore interface {
	ActivePolicy(ctx context.Context) (*models.FinePolicy, error)
	EnsureActivePolicy(ctx context.Context, defaults models.FinePolicy) (*models.FinePolicy, error)
	ReplaceActivePolicy(ctx context.Context, p *models.FinePolicy) error
}

type NotificationStore interface {
	InsertNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID primitive.ObjectID, unreadOnly bool, page, limit int) ([]models.Notification, int64, error)
	MarkNotificationRead(ctx context.Context, userID, id primitive.ObjectID) error
}

// Store is the full persistence contract used by the workflow services.
type Store interface {
	Transactor
	BookStore
	UserStore
	LoanStore
	ExtensionStore
	ReturnStore
	FineStore
	PolicyStore
	NotificationStore
}
