package store

import (
	"context"
	"fmt"

	"schoolbus-backend/internal/models"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
)

// FirebaseStore keeps location records in the Firebase Realtime Database
type FirebaseStore struct {
	client *db.Client
}

// NewFirebaseStore opens the app's default Realtime Database
func NewFirebaseStore(ctx context.Context, app *firebase.App) (*FirebaseStore, error) {
	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting database client: %w", err)
	}
	return &FirebaseStore{client: client}, nil
}

func (s *FirebaseStore) Read(ctx context.Context, path string) (*models.LocationRecord, error) {
	var record *models.LocationRecord
	if err := s.client.NewRef(path).Get(ctx, &record); err != nil {
		return nil, fmt.Errorf("firebase get: %w", err)
	}
	return record, nil
}

func (s *FirebaseStore) Write(ctx context.Context, path string, record models.LocationRecord) error {
	if err := s.client.NewRef(path).Set(ctx, record); err != nil {
		return fmt.Errorf("firebase set: %w", err)
	}
	return nil
}
