package routes

import (
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/trananhtuan/dacsanviet_backend/controllers"
	"github.com/trananhtuan/dacsanviet_backend/middleware"
	"github.com/trananhtuan/dacsanviet_backend/repositories"
	"github.com/trananhtuan/dacsanviet_backend/websocket"
)

// RegisterNotificationRoutes sets up the notification store API and the
// websocket push endpoint.
func RegisterNotificationRoutes(e *echo.Echo, db *mongo.Client, repo *repositories.NotificationRepository, hub *websocket.Hub) {
	notificationController := controllers.NewNotificationController(db, repo, hub)

	// Protected routes group
	r := e.Group("/api/notifications")
	r.Use(middleware.JWTMiddleware())

	r.GET("", notificationController.GetNotifications)
	r.GET("/unread-count", notificationController.GetUnreadCount)
	r.PUT("/read-all", notificationController.MarkAllRead)
	r.PUT("/:id/read", notificationController.MarkRead)
	r.DELETE("/:id", notificationController.DeleteNotification)
	r.DELETE("", notificationController.DeleteAllNotifications)
	r.POST("", notificationController.CreateNotification)

	// The websocket upgrade validates its own bearer token; browsers cannot
	// set the Authorization header on WebSocket requests.
	e.GET("/ws/notifications", func(c echo.Context) error {
		return websocket.HandleNotificationSocket(c, hub)
	})
}
