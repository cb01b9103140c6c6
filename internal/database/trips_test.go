package database

import (
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"schoolbus-backend/internal/models"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testDB connects to TEST_DATABASE_URL; the tests are skipped without it
func testDB(t *testing.T) *sqlx.DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	log.SetOutput(io.Discard)

	db, err := Connect(url)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	t.Cleanup(func() { db.Close() })
	return db
}

func uniqueDriver() string {
	return fmt.Sprintf("driver-%d", time.Now().UnixNano())
}

func TestGetDriverTrip(t *testing.T) {
	db := testDB(t)
	driverID := uniqueDriver()
	require.NoError(t, SeedDemoTrip(db, driverID))
	require.NoError(t, SeedDemoTrip(db, driverID), "seeding twice is a no-op")

	trip, points, err := GetDriverTrip(db, driverID, "1")
	require.NoError(t, err)
	assert.True(t, trip.Complete())
	assert.Equal(t, "bus-12", trip.BusID)
	require.Len(t, points, 5)
	for i, p := range points {
		assert.Equal(t, i+1, p.SequenceIndex)
	}

	_, _, err = GetDriverTrip(db, driverID, "99")
	assert.ErrorIs(t, err, ErrTripNotFound)
}

func TestTripRunLifecycle(t *testing.T) {
	db := testDB(t)
	driverID := uniqueDriver()
	require.NoError(t, SeedDemoTrip(db, driverID))
	trip, points, err := GetDriverTrip(db, driverID, "1")
	require.NoError(t, err)

	first, err := StartTripRun(db, trip)
	require.NoError(t, err)
	second, err := StartTripRun(db, trip)
	require.NoError(t, err)

	open, err := OpenTripRun(db, trip.TripID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, open.ID, "starting again closes the stale run")
	assert.NotEqual(t, first.ID, open.ID)

	require.NoError(t, RecordPickupConfirmation(db, models.PickupConfirmation{
		TripRunID:     open.ID,
		SequenceIndex: points[0].SequenceIndex,
		Confirmed:     true,
		Latitude:      points[0].Latitude,
		Longitude:     points[0].Longitude,
		DistanceM:     12.5,
	}))
	confirmations, err := GetPickupConfirmations(db, open.ID)
	require.NoError(t, err)
	require.Len(t, confirmations, 1)
	assert.True(t, confirmations[0].Confirmed)
	assert.NotZero(t, confirmations[0].CreatedAt)

	require.NoError(t, EndTripRun(db, trip.TripID))
	_, err = OpenTripRun(db, trip.TripID)
	assert.ErrorIs(t, err, ErrTripNotFound)
}
