package websocket

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/trananhtuan/dacsanviet_backend/middleware"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleNotificationSocket upgrades the request to a websocket subscribed to
// the authenticated user's private notification queue. The bearer token comes
// from the Authorization header or, for browser WebSocket clients that cannot
// set headers, the token query parameter. An invalid or missing token refuses
// the upgrade with 401 so clients can tell auth rejection from transport loss.
func HandleNotificationSocket(c echo.Context, hub *Hub) error {
	token := bearerToken(c)
	claims, err := middleware.ValidateToken(token)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]interface{}{
			"success": false,
			"message": "Invalid or expired token",
		})
	}

	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]interface{}{
			"success": false,
			"message": "Invalid user ID in token",
		})
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &Client{
		ID:     uuid.New(),
		UserID: userID,
		Conn:   conn,
	}

	hub.register <- client

	client.Send(Event{
		Event: EventConnected,
		Data:  map[string]string{"userId": claims.UserID},
	})

	log.Debug().Str("userId", claims.UserID).Str("connId", client.ID.String()).
		Msg("notification socket connected")

	// The channel is subscribe-only; the read loop exists to detect disconnects
	// and drain client pings.
	go func() {
		defer func() {
			hub.unregister <- client
			log.Debug().Str("userId", claims.UserID).Str("connId", client.ID.String()).
				Msg("notification socket disconnected")
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()

	return nil
}

func bearerToken(c echo.Context) string {
	if header := c.Request().Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.QueryParam("token")
}
