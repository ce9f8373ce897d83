package store

import (
	"context"

	"github.com/kevinaaaquil/unilib/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func (db *DB) InsertNotification(ctx context.Context, n *models.Notification) error {
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	_, err := db.Notifications().InsertOne(ctx, n)
	return insertErr(err)
}

func (db *DB) ListNotifications(ctx context.Context, userID primitive.ObjectID, unreadOnly bool, page, limit int) ([]models.Notification, int64, error) {
	filter := bson.M{"userId": userID}
	if unreadOnly {
		filter["read"] = false
	}
	total, err := db.Notifications().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := pageOptions(page, limit).SetSort(bson.M{"createdAt": -1})
	items, err := findAll[models.Notification](ctx, db.Notifications(), filter, opts)
	return items, total, err
}

func (db *DB) MarkNotificationRead(ctx context.Context, userID, id primitive.ObjectID) error {
	res, err := db.Notifications().UpdateOne(ctx, bson.M{"_id": id, "userId": userID}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
