package utils

import (
	"context"
	"fmt"
	"os"
	"time"

	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"gopkg.in/gomail.v2"

	"github.com/trananhtuan/dacsanviet_backend/config"
	"github.com/trananhtuan/dacsanviet_backend/models"
	"github.com/trananhtuan/dacsanviet_backend/repositories"
	"github.com/trananhtuan/dacsanviet_backend/websocket"
)

// DispatchNotification persists a notification and fans it out: a frame on the
// user's websocket queue, an FCM push when the user has a device token, and an
// email mirror for system notifications. Persistence failure is the only hard
// error; mirror failures are logged and swallowed so one dead channel never
// blocks the others.
func DispatchNotification(db *mongo.Client, repo *repositories.NotificationRepository, hub *websocket.Hub, notification *models.Notification) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := repo.Insert(ctx, notification); err != nil {
		return fmt.Errorf("failed to save notification: %w", err)
	}

	if hub != nil {
		if err := hub.SendToUser(notification.UserID, websocket.Event{
			Event: websocket.EventNotification,
			Data:  notification,
		}); err != nil {
			// Not connected is the normal case for offline users.
			log.Debug().Str("userId", notification.UserID.Hex()).Err(err).
				Msg("websocket push skipped")
		}
	}

	var user models.User
	err := config.GetCollection(db, "users").
		FindOne(ctx, bson.M{"_id": notification.UserID}).Decode(&user)
	if err != nil {
		log.Warn().Err(err).Str("userId", notification.UserID.Hex()).
			Msg("notification saved but user lookup for mirrors failed")
		return nil
	}

	if user.FCMToken != "" {
		if err := sendFCMNotification(user.FCMToken, notification); err != nil {
			log.Error().Err(err).Str("userId", notification.UserID.Hex()).
				Msg("failed to send FCM mirror")
		}
	}

	if notification.Type == models.NotificationTypeSystem && user.Email != "" {
		if err := sendEmailMirror(user.Email, notification.Title, notification.Content); err != nil {
			log.Error().Err(err).Str("userId", notification.UserID.Hex()).
				Msg("failed to send email mirror")
		}
	}

	return nil
}

// sendFCMNotification mirrors an in-app notification to the user's device.
func sendFCMNotification(fcmToken string, notification *models.Notification) error {
	if config.FirebaseApp == nil {
		return nil
	}

	ctx := context.Background()
	client, err := config.FirebaseApp.Messaging(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging client: %w", err)
	}

	message := &messaging.Message{
		Token: fcmToken,
		Notification: &messaging.Notification{
			Title: notification.Title,
			Body:  notification.Content,
		},
		Data: map[string]string{
			"notificationId": notification.ID.Hex(),
			"type":           notification.Type,
			"timestamp":      notification.CreatedAt.Format(time.RFC3339),
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound:     "default",
				ChannelID: "dacsanviet_fcm_channel",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: notification.Title,
						Body:  notification.Content,
					},
					Sound: "default",
					Badge: func() *int { v := 1; return &v }(),
				},
			},
		},
	}

	response, err := client.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send FCM notification: %w", err)
	}

	log.Debug().Str("messageId", response).Msg("FCM notification sent")
	return nil
}

// sendEmailMirror sends system notifications to the user's mailbox as well.
func sendEmailMirror(to, subject, body string) error {
	smtpHost := os.Getenv("SMTP_HOST")
	smtpUser := os.Getenv("SMTP_USER")
	smtpPass := os.Getenv("SMTP_PASS")
	if smtpHost == "" {
		return nil
	}
	smtpPort := 2525
	if portStr := os.Getenv("SMTP_PORT"); portStr != "" {
		fmt.Sscanf(portStr, "%d", &smtpPort)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", smtpUser)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPass)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
