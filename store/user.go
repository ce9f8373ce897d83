package store

import (
	"context"

	"github.com/kevinaaaquil/unilib/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UsersCount returns the number of documents in the users collection.
func (db *DB) UsersCount(ctx context.Context) (int64, error) {
	return db.Users().CountDocuments(ctx, bson.M{})
}

func (db *DB) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return findOne[models.User](ctx, db.Users(), bson.M{"email": email})
}

func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	_, err := db.Users().InsertOne(ctx, user)
	return insertErr(err)
}

func (db *DB) UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return findOne[models.User](ctx, db.Users(), bson.M{"_id": id})
}

func (db *DB) ListUsers(ctx context.Context, role models.Role) ([]models.User, error) {
	filter := bson.M{}
	if role != "" {
		filter["role"] = role
	}
	return findAll[models.User](ctx, db.Users(), filter, options.Find().SetSort(bson.M{"createdAt": 1}))
}
