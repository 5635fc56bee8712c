package config

import (
	"context"
	"os"

	firebase "firebase.google.com/go/v4"
	"github.com/rs/zerolog/log"
)

var FirebaseApp *firebase.App

// InitFirebase initializes the Firebase Admin SDK for the FCM mirror. The SDK
// picks credentials up from GOOGLE_APPLICATION_CREDENTIALS; when that is not
// set, FirebaseApp stays nil and the FCM mirror is skipped.
func InitFirebase() {
	if os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		log.Warn().Msg("GOOGLE_APPLICATION_CREDENTIALS not set, FCM mirror disabled")
		return
	}

	ctx := context.Background()
	cfg := &firebase.Config{}
	if projectID := os.Getenv("FIREBASE_PROJECT_ID"); projectID != "" {
		cfg.ProjectID = projectID
	}

	app, err := firebase.NewApp(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("error initializing firebase app, FCM mirror disabled")
		return
	}
	FirebaseApp = app
	log.Info().Msg("Firebase app initialized")
}
