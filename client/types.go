package client

import (
	"time"

	"github.com/trananhtuan/dacsanviet_backend/models"
)

// Notification is the client-side view of one notification record. The
// creation timestamp is already normalized to a canonical instant; nothing
// past the decoding boundary ever sees the raw wire shape.
type Notification struct {
	ID        string
	UserID    string
	Type      string
	Title     string
	Content   string
	Read      bool
	CreatedAt time.Time
}

// wireNotification mirrors the store's JSON representation. CreatedAt accepts
// both the ISO string and the numeric component array.
type wireNotification struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Content   string          `json:"content"`
	IsRead    bool            `json:"isRead"`
	CreatedAt models.FlexTime `json:"createdAt"`
}

func (w wireNotification) toNotification() Notification {
	return Notification{
		ID:        w.ID,
		UserID:    w.UserID,
		Type:      w.Type,
		Title:     w.Title,
		Content:   w.Content,
		Read:      w.IsRead,
		CreatedAt: w.CreatedAt.Time,
	}
}
