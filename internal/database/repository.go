package database

import (
	"schoolbus-backend/internal/models"

	"github.com/jmoiron/sqlx"
)

// Repository binds the trip queries to one connection
type Repository struct {
	DB *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{DB: db}
}

func (r *Repository) GetDriverTrip(driverID, tripNumber string) (models.TripContext, []models.PickupPoint, error) {
	return GetDriverTrip(r.DB, driverID, tripNumber)
}

func (r *Repository) StartTripRun(trip models.TripContext) (models.TripRun, error) {
	return StartTripRun(r.DB, trip)
}

func (r *Repository) EndTripRun(tripID string) error {
	return EndTripRun(r.DB, tripID)
}

func (r *Repository) RecordPickupConfirmation(c models.PickupConfirmation) error {
	return RecordPickupConfirmation(r.DB, c)
}
