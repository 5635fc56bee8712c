package controllers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/trananhtuan/dacsanviet_backend/middleware"
	"github.com/trananhtuan/dacsanviet_backend/models"
	"github.com/trananhtuan/dacsanviet_backend/repositories"
	"github.com/trananhtuan/dacsanviet_backend/utils"
	"github.com/trananhtuan/dacsanviet_backend/websocket"
)

type NotificationController struct {
	db   *mongo.Client
	repo *repositories.NotificationRepository
	hub  *websocket.Hub
}

func NewNotificationController(db *mongo.Client, repo *repositories.NotificationRepository, hub *websocket.Hub) *NotificationController {
	return &NotificationController{db: db, repo: repo, hub: hub}
}

// CreateNotificationRequest represents the request body for creating notifications
type CreateNotificationRequest struct {
	UserID  string `json:"userId" validate:"required"`
	Type    string `json:"type" validate:"required,oneof=order product system promotion review"`
	Title   string `json:"title" validate:"required"`
	Content string `json:"content" validate:"required"`
}

// GetNotifications returns one page of the current user's notifications,
// newest first, with pagination metadata.
func (nc *NotificationController) GetNotifications(c echo.Context) error {
	userID, ok := nc.currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	page := intQueryParam(c, "page", 1)
	size := intQueryParam(c, "size", 20)

	notifications, total, err := nc.repo.ListByUser(c.Request().Context(), userID, page, size)
	if err != nil {
		log.Error().Err(err).Msg("Error listing notifications")
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"message": "Failed to load notifications",
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Notifications retrieved",
		"data": map[string]interface{}{
			"notifications": notifications,
			"total":         total,
			"page":          page,
			"size":          size,
			"hasMore":       int64(page*size) < total,
		},
	})
}

// GetUnreadCount returns the authoritative unread count from the store.
func (nc *NotificationController) GetUnreadCount(c echo.Context) error {
	userID, ok := nc.currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	count, err := nc.repo.UnreadCount(c.Request().Context(), userID)
	if err != nil {
		log.Error().Err(err).Msg("Error counting unread notifications")
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"message": "Failed to count unread notifications",
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Unread count retrieved",
		"data":    map[string]interface{}{"count": count},
	})
}

// MarkRead marks a single notification as read. Idempotent.
func (nc *NotificationController) MarkRead(c echo.Context) error {
	userID, ok := nc.currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	notificationID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"message": "Invalid notification ID",
		})
	}

	if err := nc.repo.MarkRead(c.Request().Context(), userID, notificationID); err != nil {
		log.Error().Err(err).Msg("Error marking notification read")
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"message": "Failed to mark notification as read",
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Notification marked as read",
	})
}

// MarkAllRead marks every unread notification as read. Idempotent.
func (nc *NotificationController) MarkAllRead(c echo.Context) error {
	userID, ok := nc.currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	if err := nc.repo.MarkAllRead(c.Request().Context(), userID); err != nil {
		log.Error().Err(err).Msg("Error marking all notifications read")
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"message": "Failed to mark all notifications as read",
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "All notifications marked as read",
	})
}

// DeleteNotification removes a single notification. Deleting an id that no
// longer exists is a success, not an error.
func (nc *NotificationController) DeleteNotification(c echo.Context) error {
	userID, ok := nc.currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	notificationID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"message": "Invalid notification ID",
		})
	}

	if err := nc.repo.Delete(c.Request().Context(), userID, notificationID); err != nil {
		log.Error().Err(err).Msg("Error deleting notification")
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"message": "Failed to delete notification",
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Notification deleted",
	})
}

// DeleteAllNotifications removes every notification the user owns.
func (nc *NotificationController) DeleteAllNotifications(c echo.Context) error {
	userID, ok := nc.currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	if err := nc.repo.DeleteAll(c.Request().Context(), userID); err != nil {
		log.Error().Err(err).Msg("Error deleting all notifications")
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"message": "Failed to delete notifications",
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "All notifications deleted",
	})
}

// CreateNotification persists a notification and fans it out to the user's
// live socket plus the FCM/email mirrors. Internal endpoint, admin only.
func (nc *NotificationController) CreateNotification(c echo.Context) error {
	claims := middleware.GetUserFromToken(c)
	if claims == nil {
		return unauthorized(c)
	}
	if claims.UserType != "admin" {
		return c.JSON(http.StatusForbidden, map[string]interface{}{
			"success": false,
			"message": "Admin access required",
		})
	}

	var req CreateNotificationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"message": "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"message": "Missing or invalid fields",
		})
	}

	targetUserID, err := primitive.ObjectIDFromHex(req.UserID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"message": "Invalid user ID",
		})
	}

	notification := &models.Notification{
		UserID:  targetUserID,
		Type:    req.Type,
		Title:   req.Title,
		Content: req.Content,
		IsRead:  false,
	}

	if err := utils.DispatchNotification(nc.db, nc.repo, nc.hub, notification); err != nil {
		log.Error().Err(err).Msg("Error dispatching notification")
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"message": "Failed to create notification",
		})
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "Notification created",
		"data":    notification,
	})
}

func (nc *NotificationController) currentUserID(c echo.Context) (primitive.ObjectID, bool) {
	claims := middleware.GetUserFromToken(c)
	if claims == nil {
		return primitive.NilObjectID, false
	}
	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return userID, true
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, map[string]interface{}{
		"success": false,
		"message": "Unauthorized",
	})
}

func intQueryParam(c echo.Context, name string, fallback int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
