package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User model. Only the fields the notification channel needs: identity to gate
// the per-user destination, FCM token for the mobile mirror, and the active
// flag checked by the JWT middleware.
type User struct {
	ID        primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Email     string             `json:"email" bson:"email"`
	FullName  string             `json:"fullName" bson:"fullName"`
	UserType  string             `json:"userType" bson:"userType"` // "user" or "admin"
	FCMToken  string             `json:"fcmToken,omitempty" bson:"fcmToken,omitempty"`
	IsActive  bool               `json:"isActive" bson:"isActive"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
}
