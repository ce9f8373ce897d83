package store

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/kevinaaaquil/unilib/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (db *DB) InsertBook(ctx context.Context, book *models.Book) error {
	if book.ID.IsZero() {
		book.ID = primitive.NewObjectID()
	}
	_, err := db.Books().InsertOne(ctx, book)
	return insertErr(err)
}

func (db *DB) BookByID(ctx context.Context, id primitive.ObjectID) (*models.Book, error) {
	return findOne[models.Book](ctx, db.Books(), bson.M{"_id": id})
}

func (db *DB) BooksByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Book, error) {
	return findAll[models.Book](ctx, db.Books(), bson.M{"_id": bson.M{"$in": ids}})
}

func (db *DB) ListBooks(ctx context.Context, f models.BookFilter) ([]models.Book, int64, error) {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Query != "" {
		filter["title"] = bson.M{"$regex": regexp.QuoteMeta(f.Query), "$options": "i"}
	}
	total, err := db.Books().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := pageOptions(f.Page, f.Limit).SetSort(bson.M{"createdAt": -1})
	books, err := findAll[models.Book](ctx, db.Books(), filter, opts)
	return books, total, err
}

// AdjustStock applies totalDelta and availableDelta in one atomic update. The filter only
// matches when the result keeps 0 <= quantityAvailable <= quantityTotal, so concurrent
// writers can never push the counters out of range.
func (db *DB) AdjustStock(ctx context.Context, id primitive.ObjectID, totalDelta, availableDelta int) (*models.Book, error) {
	newTotal := bson.M{"$add": bson.A{"$quantityTotal", totalDelta}}
	newAvail := bson.M{"$add": bson.A{"$quantityAvailable", availableDelta}}
	filter := bson.M{
		"_id": id,
		"$expr": bson.M{"$and": bson.A{
			bson.M{"$gte": bson.A{newTotal, 0}},
			bson.M{"$gte": bson.A{newAvail, 0}},
			bson.M{"$lte": bson.A{newAvail, newTotal}},
		}},
	}
	update := bson.M{
		"$inc": bson.M{"quantityTotal": totalDelta, "quantityAvailable": availableDelta},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}
	var book models.Book
	err := db.Books().FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&book)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, lookupErr := db.BookByID(ctx, id); lookupErr != nil {
			return nil, lookupErr
		}
		return nil, ErrStockConflict
	}
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// AdjustAvailability moves copies between the shelf and readers.
func (db *DB) AdjustAvailability(ctx context.Context, id primitive.ObjectID, delta int) (*models.Book, error) {
	return db.AdjustStock(ctx, id, 0, delta)
}

func (db *DB) SetBookStatus(ctx context.Context, id primitive.ObjectID, status models.BookStatus) (*models.Book, error) {
	var book models.Book
	err := db.Books().FindOneAndUpdate(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status, "updatedAt": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&book)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &book, nil
}
