package store

import (
	"context"
	"time"

	"github.com/kevinaaaquil/unilib/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (db *DB) InsertLoan(ctx context.Context, loan *models.Loan) error {
	if loan.ID.IsZero() {
		loan.ID = primitive.NewObjectID()
	}
	_, err := db.Loans().InsertOne(ctx, loan)
	return insertErr(err)
}

func (db *DB) LoanByID(ctx context.Context, id primitive.ObjectID) (*models.Loan, error) {
	return findOne[models.Loan](ctx, db.Loans(), bson.M{"_id": id})
}

// UpdateLoan replaces the loan if nobody changed it since it was read, and bumps its version.
func (db *DB) UpdateLoan(ctx context.Context, loan *models.Loan) error {
	expected := loan.Version
	loan.Version = expected + 1
	loan.UpdatedAt = time.Now().UTC()
	res, err := db.Loans().ReplaceOne(ctx, bson.M{"_id": loan.ID, "version": expected}, loan)
	if err != nil {
		loan.Version = expected
		return err
	}
	if res.MatchedCount == 0 {
		loan.Version = expected
		return ErrVersionConflict
	}
	return nil
}

func loanFilterDoc(f models.LoanFilter) bson.M {
	filter := bson.M{}
	if f.ReaderUserID != nil {
		filter["readerUserId"] = *f.ReaderUserID
	}
	switch f.Status {
	case "":
	case models.LoanOverdue:
		now := f.Now
		if now.IsZero() {
			now = time.Now().UTC()
		}
		filter["status"] = bson.M{"$in": models.ActiveLoanStatuses}
		filter["dueDate"] = bson.M{"$lt": now}
	default:
		filter["status"] = f.Status
	}
	return filter
}

func (db *DB) ListLoans(ctx context.Context, f models.LoanFilter) ([]models.Loan, int64, error) {
	filter := loanFilterDoc(f)
	total, err := db.Loans().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := pageOptions(f.Page, f.Limit).SetSort(bson.M{"createdAt": -1})
	loans, err := findAll[models.Loan](ctx, db.Loans(), filter, opts)
	return loans, total, err
}

// ActiveLoansDueBetween returns borrowed or partially returned loans with from <= dueDate < to.
// A zero from means no lower bound.
func (db *DB) ActiveLoansDueBetween(ctx context.Context, from, to time.Time) ([]models.Loan, error) {
	due := bson.M{"$lt": to}
	if !from.IsZero() {
		due["$gte"] = from
	}
	filter := bson.M{
		"status":  bson.M{"$in": models.ActiveLoanStatuses},
		"dueDate": due,
	}
	return findAll[models.Loan](ctx, db.Loans(), filter, options.Find().SetSort(bson.M{"dueDate": 1}))
}
