package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	log "github.com/sirupsen/logrus"
)

func Connect(dbURL string) (*sqlx.DB, error) {
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Println("🔌 DATABASE CONNECTION ATTEMPT")
	log.Printf("   📍 Database URL length: %d characters", len(dbURL))
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Println("❌ DATABASE CONNECTION FAILED AT sqlx.Connect()")
		log.Printf("   Error type: %T", err)
		log.Printf("   Error message: %v", err)
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		log.Println("❌ DATABASE CONNECTION FAILED AT Ping()")
		log.Printf("   Error message: %v", err)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("✅ DATABASE CONNECTION SUCCESSFUL")
	return db, nil
}

func Migrate(db *sqlx.DB) error {
	migrations := []string{
		// Trips: one per school bus run, addressed by school/bus/trip number
		`CREATE TABLE IF NOT EXISTS trips (
			id TEXT PRIMARY KEY,
			school_id TEXT NOT NULL,
			bus_id TEXT NOT NULL,
			driver_id TEXT NOT NULL,
			trip_number TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			UNIQUE (driver_id, trip_number)
		)`,

		`CREATE TABLE IF NOT EXISTS pickup_points (
			id SERIAL PRIMARY KEY,
			trip_id TEXT NOT NULL REFERENCES trips(id) ON DELETE CASCADE,
			sequence_index INT NOT NULL,
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			label TEXT NOT NULL DEFAULT '',
			UNIQUE (trip_id, sequence_index)
		)`,

		// One row per start/end cycle of a trip
		`CREATE TABLE IF NOT EXISTS trip_runs (
			id TEXT PRIMARY KEY,
			trip_id TEXT NOT NULL REFERENCES trips(id) ON DELETE CASCADE,
			driver_id TEXT NOT NULL,
			started_at BIGINT NOT NULL,
			ended_at BIGINT
		)`,

		`CREATE TABLE IF NOT EXISTS pickup_confirmations (
			id SERIAL PRIMARY KEY,
			trip_run_id TEXT NOT NULL REFERENCES trip_runs(id) ON DELETE CASCADE,
			sequence_index INT NOT NULL,
			confirmed BOOLEAN NOT NULL,
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			distance_m DOUBLE PRECISION NOT NULL,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
		)`,

		// Create indexes
		`CREATE INDEX IF NOT EXISTS idx_trips_driver_id ON trips(driver_id)`,
		`CREATE INDEX IF NOT EXISTS idx_pickup_points_trip_seq ON pickup_points(trip_id, sequence_index)`,
		`CREATE INDEX IF NOT EXISTS idx_trip_runs_trip_id ON trip_runs(trip_id)`,
		`CREATE INDEX IF NOT EXISTS idx_trip_runs_open ON trip_runs(trip_id) WHERE ended_at IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_pickup_confirmations_run ON pickup_confirmations(trip_run_id)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	log.Println("✓ Database migrations completed")
	return nil
}
