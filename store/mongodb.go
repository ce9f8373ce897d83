package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrStockConflict means a guarded stock update would break 0 <= available <= total.
	ErrStockConflict   = errors.New("stock conflict")
	ErrVersionConflict = errors.New("version conflict")
	ErrDuplicate       = errors.New("duplicate key")
)

type DB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

func NewMongoDB(ctx context.Context, uri, dbName string) (*DB, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	slog.Info("connected to mongodb", "db", dbName)
	return &DB{
		Client:   client,
		Database: client.Database(dbName),
	}, nil
}

func (db *DB) Users() *mongo.Collection {
	return db.Database.Collection("users")
}

func (db *DB) Books() *mongo.Collection {
	return db.Database.Collection("books")
}

func (db *DB) Loans() *mongo.Collection {
	return db.Database.Collection("loans")
}

func (db *DB) Extensions() *mongo.Collection {
	return db.Database.Collection("loan_extensions")
}

func (db *DB) Returns() *mongo.Collection {
	return db.Database.Collection("returns")
}

func (db *DB) Fines() *mongo.Collection {
	return db.Database.Collection("fines")
}

func (db *DB) Policies() *mongo.Collection {
	return db.Database.Collection("fine_policies")
}

func (db *DB) Notifications() *mongo.Collection {
	return db.Database.Collection("notifications")
}

// EnsureIndexes creates the unique and partial indexes the workflow relies on.
func (db *DB) EnsureIndexes(ctx context.Context) error {
	specs := []struct {
		coll  *mongo.Collection
		index mongo.IndexModel
	}{
		{db.Users(), mongo.IndexModel{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)}},
		{db.Loans(), mongo.IndexModel{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)}},
		{db.Loans(), mongo.IndexModel{Keys: bson.D{{Key: "readerUserId", Value: 1}, {Key: "createdAt", Value: -1}}}},
		{db.Loans(), mongo.IndexModel{Keys: bson.D{{Key: "status", Value: 1}, {Key: "dueDate", Value: 1}}}},
		// at most one pending extension per loan
		{db.Extensions(), mongo.IndexModel{
			Keys:    bson.D{{Key: "loanId", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{"status": "PENDING"}).SetName("loanId_pending_unique"),
		}},
		{db.Returns(), mongo.IndexModel{Keys: bson.D{{Key: "loanId", Value: 1}}}},
		{db.Fines(), mongo.IndexModel{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "status", Value: 1}}}},
		{db.Fines(), mongo.IndexModel{Keys: bson.D{{Key: "loanId", Value: 1}}}},
		// exactly one active policy
		{db.Policies(), mongo.IndexModel{
			Keys:    bson.D{{Key: "isActive", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{"isActive": true}).SetName("isActive_true_unique"),
		}},
		{db.Notifications(), mongo.IndexModel{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}}},
		// one notification per delivered event; redelivered stream entries hit this
		{db.Notifications(), mongo.IndexModel{
			Keys:    bson.D{{Key: "eventId", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{"eventId": bson.M{"$exists": true}}).SetName("eventId_unique"),
		}},
	}
	for _, s := range specs {
		if _, err := s.coll.Indexes().CreateOne(ctx, s.index); err != nil {
			return err
		}
	}
	return nil
}

// WithTransaction runs fn inside a multi-document transaction. The ctx passed to fn
// carries the session, so store calls made with it join the transaction.
// Nested calls reuse the outer transaction.
func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}
	sess, err := db.Client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)
	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func (db *DB) Disconnect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return db.Client.Disconnect(ctx)
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter any) (*T, error) {
	var v T
	err := coll.FindOne(ctx, filter).Decode(&v)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter any, opts ...*options.FindOptions) ([]T, error) {
	cur, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []T{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func insertErr(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

func pageOptions(page, limit int) *options.FindOptions {
	page, limit = NormalizePage(page, limit)
	return options.Find().SetSkip(int64((page - 1) * limit)).SetLimit(int64(limit))
}

// NormalizePage clamps paging input to page >= 1 and 1 <= limit <= 100.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
