package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification types. Used for icon/display selection on the client only.
const (
	NotificationTypeOrder     = "order"
	NotificationTypeProduct   = "product"
	NotificationTypeSystem    = "system"
	NotificationTypePromotion = "promotion"
	NotificationTypeReview    = "review"
)

// Notification model
type Notification struct {
	ID        primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	UserID    primitive.ObjectID `json:"userId" bson:"userId"` // The user who receives the notification
	Type      string             `json:"type" bson:"type"`
	Title     string             `json:"title" bson:"title"`
	Content   string             `json:"content" bson:"content"`
	IsRead    bool               `json:"isRead" bson:"isRead"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
}

// IsValidNotificationType reports whether t is one of the known notification types.
func IsValidNotificationType(t string) bool {
	switch t {
	case NotificationTypeOrder, NotificationTypeProduct, NotificationTypeSystem,
		NotificationTypePromotion, NotificationTypeReview:
		return true
	}
	return false
}
