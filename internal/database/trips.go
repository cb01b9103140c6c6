package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"schoolbus-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ErrTripNotFound is returned when the driver has no trip with that number
var ErrTripNotFound = errors.New("trip not found")

// GetDriverTrip loads a driver's trip and its pickup points in sequence order
func GetDriverTrip(db *sqlx.DB, driverID, tripNumber string) (models.TripContext, []models.PickupPoint, error) {
	var trip models.TripContext
	query := `SELECT id, school_id, bus_id, driver_id, trip_number, name
	          FROM trips
	          WHERE driver_id = $1 AND trip_number = $2`

	if err := db.Get(&trip, query, driverID, tripNumber); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.TripContext{}, nil, ErrTripNotFound
		}
		return models.TripContext{}, nil, fmt.Errorf("failed to get trip: %w", err)
	}

	points := []models.PickupPoint{}
	pointsQuery := `SELECT id, latitude, longitude, sequence_index, label
	                FROM pickup_points
	                WHERE trip_id = $1
	                ORDER BY sequence_index ASC`

	if err := db.Select(&points, pointsQuery, trip.TripID); err != nil {
		return models.TripContext{}, nil, fmt.Errorf("failed to get pickup points: %w", err)
	}

	return trip, points, nil
}

// StartTripRun opens a run for the trip. Any run the driver left open is
// closed first.
func StartTripRun(db *sqlx.DB, trip models.TripContext) (models.TripRun, error) {
	tx, err := db.Beginx()
	if err != nil {
		return models.TripRun{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	if _, err := tx.Exec(
		`UPDATE trip_runs SET ended_at = $1 WHERE trip_id = $2 AND ended_at IS NULL`,
		now, trip.TripID,
	); err != nil {
		return models.TripRun{}, fmt.Errorf("failed to close stale runs: %w", err)
	}

	run := models.TripRun{
		ID:        uuid.New().String(),
		TripID:    trip.TripID,
		DriverID:  trip.DriverID,
		StartedAt: now,
	}
	if _, err := tx.NamedExec(
		`INSERT INTO trip_runs (id, trip_id, driver_id, started_at)
		 VALUES (:id, :trip_id, :driver_id, :started_at)`,
		run,
	); err != nil {
		return models.TripRun{}, fmt.Errorf("failed to insert trip run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.TripRun{}, fmt.Errorf("failed to commit trip run: %w", err)
	}
	return run, nil
}

// EndTripRun closes the trip's open run, if any
func EndTripRun(db *sqlx.DB, tripID string) error {
	_, err := db.Exec(
		`UPDATE trip_runs SET ended_at = $1 WHERE trip_id = $2 AND ended_at IS NULL`,
		time.Now().Unix(), tripID,
	)
	if err != nil {
		return fmt.Errorf("failed to end trip run: %w", err)
	}
	return nil
}

// OpenTripRun returns the trip's current run
func OpenTripRun(db *sqlx.DB, tripID string) (models.TripRun, error) {
	var run models.TripRun
	err := db.Get(&run,
		`SELECT id, trip_id, driver_id, started_at, ended_at
		 FROM trip_runs
		 WHERE trip_id = $1 AND ended_at IS NULL
		 ORDER BY started_at DESC
		 LIMIT 1`,
		tripID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.TripRun{}, ErrTripNotFound
	}
	if err != nil {
		return models.TripRun{}, fmt.Errorf("failed to get open trip run: %w", err)
	}
	return run, nil
}

// RecordPickupConfirmation stores the driver's answer to an arrival prompt
func RecordPickupConfirmation(db *sqlx.DB, c models.PickupConfirmation) error {
	if c.CreatedAt == 0 {
		c.CreatedAt = time.Now().Unix()
	}
	_, err := db.NamedExec(
		`INSERT INTO pickup_confirmations (
			trip_run_id, sequence_index, confirmed, latitude, longitude, distance_m, created_at
		) VALUES (
			:trip_run_id, :sequence_index, :confirmed, :latitude, :longitude, :distance_m, :created_at
		)`,
		c,
	)
	if err != nil {
		return fmt.Errorf("failed to record pickup confirmation: %w", err)
	}
	return nil
}

// GetPickupConfirmations lists a run's confirmations oldest first
func GetPickupConfirmations(db *sqlx.DB, runID string) ([]models.PickupConfirmation, error) {
	confirmations := []models.PickupConfirmation{}
	err := db.Select(&confirmations,
		`SELECT * FROM pickup_confirmations WHERE trip_run_id = $1 ORDER BY id ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get pickup confirmations: %w", err)
	}
	return confirmations, nil
}
