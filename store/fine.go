package store

import (
	"context"

	"github.com/kevinaaaquil/unilib/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (db *DB) InsertReturn(ctx context.Context, ret *models.Return) error {
	if ret.ID.IsZero() {
		ret.ID = primitive.NewObjectID()
	}
	ret.RecomputeTotal()
	_, err := db.Returns().InsertOne(ctx, ret)
	return insertErr(err)
}

func (db *DB) ReturnsByLoan(ctx context.Context, loanID primitive.ObjectID) ([]models.Return, error) {
	return findAll[models.Return](ctx, db.Returns(), bson.M{"loanId": loanID},
		options.Find().SetSort(bson.M{"returnDate": 1}))
}

func (db *DB) InsertFine(ctx context.Context, fine *models.Fine) error {
	if fine.ID.IsZero() {
		fine.ID = primitive.NewObjectID()
	}
	_, err := db.Fines().InsertOne(ctx, fine)
	return insertErr(err)
}

func (db *DB) FineByID(ctx context.Context, id primitive.ObjectID) (*models.Fine, error) {
	return findOne[models.Fine](ctx, db.Fines(), bson.M{"_id": id})
}

func fineFilterDoc(f models.FineFilter) bson.M {
	filter := bson.M{}
	if f.UserID != nil {
		filter["userId"] = *f.UserID
	}
	if f.LoanID != nil {
		filter["loanId"] = *f.LoanID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	return filter
}

func (db *DB) ListFines(ctx context.Context, f models.FineFilter) ([]models.Fine, int64, error) {
	filter := fineFilterDoc(f)
	total, err := db.Fines().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := pageOptions(f.Page, f.Limit).SetSort(bson.M{"createdAt": -1})
	fines, err := findAll[models.Fine](ctx, db.Fines(), filter, opts)
	return fines, total, err
}

// OutstandingFines sums PENDING fine amounts for a user.
func (db *DB) OutstandingFines(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	cur, err := db.Fines().Aggregate(ctx, bson.A{
		bson.M{"$match": bson.M{"userId": userID, "status": models.FinePending}},
		bson.M{"$group": bson.M{"_id": nil, "total": bson.M{"$sum": "$amount"}}},
	})
	if err != nil {
		return 0, err
	}
	defer cur.Close(ctx)
	var rows []struct {
		Total int64 `bson:"total"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Total, nil
}

// UpdateFineSettlement records a pay or waive action only while the fine still has status from.
func (db *DB) UpdateFineSettlement(ctx context.Context, fine *models.Fine, from models.FineStatus) error {
	res, err := db.Fines().UpdateOne(ctx,
		bson.M{"_id": fine.ID, "status": from},
		bson.M{"$set": bson.M{
			"status":      fine.Status,
			"paidBy":      fine.PaidBy,
			"paidAt":      fine.PaidAt,
			"waivedBy":    fine.WaivedBy,
			"waivedAt":    fine.WaivedAt,
			"waiveReason": fine.WaiveReason,
		}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrVersionConflict
	}
	return nil
}
