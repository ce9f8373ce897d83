package store

import (
	"context"
	"time"

	"github.com/kevinaaaquil/unilib/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (db *DB) ActivePolicy(ctx context.Context) (*models.FinePolicy, error) {
	return findOne[models.FinePolicy](ctx, db.Policies(), bson.M{"isActive": true})
}

// EnsureActivePolicy returns the active policy, inserting defaults when none exists.
// The upsert and the partial unique index on isActive make concurrent callers converge on one document.
func (db *DB) EnsureActivePolicy(ctx context.Context, defaults models.FinePolicy) (*models.FinePolicy, error) {
	insert := bson.M{
		"_id":             primitive.NewObjectID(),
		"lateFeePerDay":   defaults.LateFeePerDay,
		"damageFeeRate":   defaults.DamageFeeRate,
		"lostBookFeeRate": defaults.LostBookFeeRate,
		"currency":        defaults.Currency,
		"createdAt":       time.Now().UTC(),
	}
	var policy models.FinePolicy
	err := db.Policies().FindOneAndUpdate(ctx,
		bson.M{"isActive": true},
		bson.M{"$setOnInsert": insert},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&policy)
	if mongo.IsDuplicateKeyError(err) {
		return db.ActivePolicy(ctx)
	}
	if err != nil {
		return nil, err
	}
	return &policy, nil
}

// ReplaceActivePolicy deactivates the current policy and makes p the active one.
func (db *DB) ReplaceActivePolicy(ctx context.Context, p *models.FinePolicy) error {
	return db.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := db.Policies().UpdateMany(ctx, bson.M{"isActive": true}, bson.M{"$set": bson.M{"isActive": false}}); err != nil {
			return err
		}
		if p.ID.IsZero() {
			p.ID = primitive.NewObjectID()
		}
		p.IsActive = true
		_, err := db.Policies().InsertOne(ctx, p)
		return insertErr(err)
	})
}
