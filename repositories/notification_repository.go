package repositories

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trananhtuan/dacsanviet_backend/config"
	"github.com/trananhtuan/dacsanviet_backend/models"
)

const unreadCacheTTL = 60 * time.Second

type NotificationRepository struct {
	collection *mongo.Collection
	redis      *redis.Client
}

// NewNotificationRepository creates the repository. rdb may be nil, in which
// case unread counts always hit Mongo.
func NewNotificationRepository(db *mongo.Client, rdb *redis.Client) *NotificationRepository {
	return &NotificationRepository{
		collection: config.GetCollection(db, "notifications"),
		redis:      rdb,
	}
}

// Insert persists a new notification.
func (r *NotificationRepository) Insert(ctx context.Context, notification *models.Notification) error {
	if notification.ID.IsZero() {
		notification.ID = primitive.NewObjectID()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now()
	}

	if _, err := r.collection.InsertOne(ctx, notification); err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	r.invalidateUnreadCache(ctx, notification.UserID)
	return nil
}

// ListByUser returns one page of the user's notifications, newest first, plus
// the total count for pagination metadata.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID primitive.ObjectID, page, size int) ([]models.Notification, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}

	filter := bson.M{"userId": userID}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(page-1) * int64(size)).
		SetLimit(int64(size))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer cursor.Close(ctx)

	notifications := make([]models.Notification, 0, size)
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, 0, fmt.Errorf("failed to decode notifications: %w", err)
	}
	return notifications, total, nil
}

// UnreadCount returns the number of unread notifications, read through the
// Redis cache when available.
func (r *NotificationRepository) UnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	cacheKey := unreadCacheKey(userID)
	if r.redis != nil {
		if cached, err := r.redis.Get(ctx, cacheKey).Result(); err == nil {
			if count, err := strconv.ParseInt(cached, 10, 64); err == nil {
				return count, nil
			}
		}
	}

	count, err := r.collection.CountDocuments(ctx, bson.M{"userId": userID, "isRead": false})
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}

	if r.redis != nil {
		if err := r.redis.Set(ctx, cacheKey, count, unreadCacheTTL).Err(); err != nil {
			log.Warn().Err(err).Msg("failed to cache unread count")
		}
	}
	return count, nil
}

// MarkRead flips one notification to read. Marking an already-read or missing
// notification succeeds without effect.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID, notificationID primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": notificationID, "userId": userID},
		bson.M{"$set": bson.M{"isRead": true}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	r.invalidateUnreadCache(ctx, userID)
	return nil
}

// MarkAllRead flips every unread notification the user owns.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID primitive.ObjectID) error {
	_, err := r.collection.UpdateMany(ctx,
		bson.M{"userId": userID, "isRead": false},
		bson.M{"$set": bson.M{"isRead": true}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark all notifications read: %w", err)
	}
	r.invalidateUnreadCache(ctx, userID)
	return nil
}

// Delete removes one notification. Deleting an already-deleted id succeeds.
func (r *NotificationRepository) Delete(ctx context.Context, userID, notificationID primitive.ObjectID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": notificationID, "userId": userID})
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	r.invalidateUnreadCache(ctx, userID)
	return nil
}

// DeleteAll removes every notification the user owns.
func (r *NotificationRepository) DeleteAll(ctx context.Context, userID primitive.ObjectID) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"userId": userID})
	if err != nil {
		return fmt.Errorf("failed to delete all notifications: %w", err)
	}
	r.invalidateUnreadCache(ctx, userID)
	return nil
}

func (r *NotificationRepository) invalidateUnreadCache(ctx context.Context, userID primitive.ObjectID) {
	if r.redis == nil {
		return
	}
	if err := r.redis.Del(ctx, unreadCacheKey(userID)).Err(); err != nil {
		log.Warn().Err(err).Msg("failed to invalidate unread count cache")
	}
}

func unreadCacheKey(userID primitive.ObjectID) string {
	return "notif:unread:" + userID.Hex()
}
