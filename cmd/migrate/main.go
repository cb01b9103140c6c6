package main

import (
	"flag"
	"fmt"
	"os"

	"schoolbus-backend/internal/database"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

func main() {
	seedDriver := flag.String("seed-driver", "", "create the demo trip for this driver ID")
	flag.Parse()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := database.Connect(dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	if *seedDriver != "" {
		if err := database.SeedDemoTrip(db, *seedDriver); err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
	}

	var result struct {
		Trips         int `db:"trips"`
		PickupPoints  int `db:"pickup_points"`
		OpenRuns      int `db:"open_runs"`
		Confirmations int `db:"confirmations"`
	}

	query := `
		SELECT
			(SELECT COUNT(*) FROM trips) AS trips,
			(SELECT COUNT(*) FROM pickup_points) AS pickup_points,
			(SELECT COUNT(*) FROM trip_runs WHERE ended_at IS NULL) AS open_runs,
			(SELECT COUNT(*) FROM pickup_confirmations) AS confirmations
	`

	if err := db.Get(&result, query); err != nil {
		log.Fatalf("Failed to query summary: %v", err)
	}

	fmt.Println("\n============================================================")
	fmt.Println("MIGRATION SUMMARY")
	fmt.Println("============================================================")
	fmt.Printf("Trips:                   %d\n", result.Trips)
	fmt.Printf("Pickup points:           %d\n", result.PickupPoints)
	fmt.Printf("Open trip runs:          %d\n", result.OpenRuns)
	fmt.Printf("Pickup confirmations:    %d\n", result.Confirmations)
	fmt.Println("============================================================")
}
