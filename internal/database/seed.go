package database

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
)

// SeedDemoTrip creates one morning trip with a handful of pickup points for
// driverID, unless the driver already has trips
func SeedDemoTrip(db *sqlx.DB, driverID string) error {
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM trips WHERE driver_id = $1", driverID); err != nil {
		return err
	}

	if count > 0 {
		log.Println("✓ Trips already seeded, skipping...")
		return nil
	}

	log.Printf("🌱 Seeding demo trip for driver %s...", driverID)

	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	tripID := uuid.New().String()
	if _, err := tx.Exec(
		`INSERT INTO trips (id, school_id, bus_id, driver_id, trip_number, name)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		tripID, "lincoln-elementary", "bus-12", driverID, "1", "Morning run",
	); err != nil {
		return fmt.Errorf("failed to insert trip: %w", err)
	}

	points := []map[string]interface{}{
		{"label": "Willow St & Lincoln Ave", "latitude": 37.3091, "longitude": -121.8996},
		{"label": "Minnesota Ave & Bird Ave", "latitude": 37.3072, "longitude": -121.8887},
		{"label": "Curtner Ave & Canoas Garden", "latitude": 37.2947, "longitude": -121.8812},
		{"label": "Meridian Ave & Hamilton Ave", "latitude": 37.2945, "longitude": -121.9131},
		{"label": "Lincoln Elementary", "latitude": 37.3016, "longitude": -121.9050},
	}

	for i, p := range points {
		if _, err := tx.Exec(
			`INSERT INTO pickup_points (trip_id, sequence_index, latitude, longitude, label)
			 VALUES ($1, $2, $3, $4, $5)`,
			tripID, i+1, p["latitude"], p["longitude"], p["label"],
		); err != nil {
			return fmt.Errorf("failed to insert pickup point %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed: %w", err)
	}

	log.Printf("✅ Seeded trip %s with %d pickup points", tripID, len(points))
	return nil
}
