package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

// ErrNoFirebaseCredentials is returned when neither credential source is configured
var ErrNoFirebaseCredentials = errors.New("firebase credentials not configured")

// NewFirebaseApp initializes a Firebase app from base64-encoded credentials
// (preferred for cloud deployments) or from a credentials file.
func NewFirebaseApp(ctx context.Context, databaseURL, credentialsBase64, credentialsFile string) (*firebase.App, error) {
	var opt option.ClientOption
	switch {
	case credentialsBase64 != "":
		credentialsJSON, err := base64.StdEncoding.DecodeString(credentialsBase64)
		if err != nil {
			return nil, fmt.Errorf("error decoding base64 credentials: %w", err)
		}
		opt = option.WithCredentialsJSON(credentialsJSON)
	case credentialsFile != "":
		opt = option.WithCredentialsFile(credentialsFile)
	default:
		return nil, ErrNoFirebaseCredentials
	}

	var cfg *firebase.Config
	if databaseURL != "" {
		cfg = &firebase.Config{DatabaseURL: databaseURL}
	}

	app, err := firebase.NewApp(ctx, cfg, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}
	return app, nil
}
