package store

import (
	"context"

	"github.com/kevinaaaquil/unilib/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (db *DB) InsertExtension(ctx context.Context, ext *models.LoanExtension) error {
	if ext.ID.IsZero() {
		ext.ID = primitive.NewObjectID()
	}
	_, err := db.Extensions().InsertOne(ctx, ext)
	return insertErr(err)
}

func (db *DB) ExtensionByID(ctx context.Context, id primitive.ObjectID) (*models.LoanExtension, error) {
	return findOne[models.LoanExtension](ctx, db.Extensions(), bson.M{"_id": id})
}

func (db *DB) PendingExtensionForLoan(ctx context.Context, loanID primitive.ObjectID) (*models.LoanExtension, error) {
	return findOne[models.LoanExtension](ctx, db.Extensions(), bson.M{"loanId": loanID, "status": models.ExtensionPending})
}

func (db *DB) ExtensionsByLoan(ctx context.Context, loanID primitive.ObjectID) ([]models.LoanExtension, error) {
	return findAll[models.LoanExtension](ctx, db.Extensions(), bson.M{"loanId": loanID},
		options.Find().SetSort(bson.M{"createdAt": -1}))
}

// UpdateExtensionReview writes the review outcome only while the extension still has status from.
func (db *DB) UpdateExtensionReview(ctx context.Context, ext *models.LoanExtension, from models.ExtensionStatus) error {
	res, err := db.Extensions().UpdateOne(ctx,
		bson.M{"_id": ext.ID, "status": from},
		bson.M{"$set": bson.M{
			"status":     ext.Status,
			"newDueDate": ext.NewDueDate,
			"reviewedBy": ext.ReviewedBy,
			"reviewedAt": ext.ReviewedAt,
			"reviewNote": ext.ReviewNote,
		}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrVersionConflict
	}
	return nil
}
