package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"schoolbus-backend/internal/models"

	"firebase.google.com/go/v4/messaging"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	log.SetOutput(io.Discard)
}

func testTrip() models.TripContext {
	return models.TripContext{
		TripID:     "trip-1",
		SchoolID:   "school-7",
		BusID:      "bus-12",
		DriverID:   "driver-3",
		TripNumber: "1",
	}
}

type fakeMessenger struct {
	mu       sync.Mutex
	messages []*messaging.Message
	err      error
}

func (f *fakeMessenger) Send(ctx context.Context, message *messaging.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
	return "projects/test/messages/1", f.err
}

func TestNotifierSendsTopicMessages(t *testing.T) {
	fake := &fakeMessenger{}
	n := NewNotifierWithMessenger(fake)
	trip := testTrip()

	n.TripStarted(trip)
	n.LocationPublished(trip, models.LocationRecord{})
	n.PickupResolved(trip, models.PickupPoint{SequenceIndex: 2, Label: "Elm St"}, true, models.Position{}, 10)
	n.PickupResolved(trip, models.PickupPoint{SequenceIndex: 3}, false, models.Position{}, 10)
	n.TripEnded(trip)
	n.Wait()

	require.Len(t, fake.messages, 3)
	types := map[string]bool{}
	for _, m := range fake.messages {
		assert.Equal(t, "school_school-7_bus_bus-12", m.Topic)
		assert.Equal(t, "bus-12", m.Data["bus_id"])
		types[m.Data["type"]] = true
	}
	assert.Equal(t, map[string]bool{"trip_started": true, "pickup_confirmed": true, "trip_ended": true}, types)
}

func TestNotifierSwallowsSendErrors(t *testing.T) {
	fake := &fakeMessenger{err: errors.New("quota exceeded")}
	n := NewNotifierWithMessenger(fake)

	assert.NotPanics(t, func() {
		n.TripEnded(testTrip())
		n.Wait()
	})
	assert.Len(t, fake.messages, 1)
}

type fakeRuns struct {
	started       []models.TripContext
	ended         []string
	confirmations []models.PickupConfirmation
	startErr      error
}

func (f *fakeRuns) StartTripRun(trip models.TripContext) (models.TripRun, error) {
	if f.startErr != nil {
		return models.TripRun{}, f.startErr
	}
	f.started = append(f.started, trip)
	return models.TripRun{ID: "run-1", TripID: trip.TripID}, nil
}

func (f *fakeRuns) EndTripRun(tripID string) error {
	f.ended = append(f.ended, tripID)
	return nil
}

func (f *fakeRuns) RecordPickupConfirmation(c models.PickupConfirmation) error {
	f.confirmations = append(f.confirmations, c)
	return nil
}

func TestTripRecorder(t *testing.T) {
	runs := &fakeRuns{}
	r := NewTripRecorder(runs)
	trip := testTrip()

	r.TripStarted(trip)
	r.PickupResolved(trip, models.PickupPoint{SequenceIndex: 1}, true, models.Position{Latitude: 37.3, Longitude: -121.9}, 12)
	r.TripEnded(trip)
	r.PickupResolved(trip, models.PickupPoint{SequenceIndex: 2}, true, models.Position{}, 5)

	require.Len(t, runs.confirmations, 1, "answers after the run ended are dropped")
	c := runs.confirmations[0]
	assert.Equal(t, "run-1", c.TripRunID)
	assert.Equal(t, 1, c.SequenceIndex)
	assert.Equal(t, 37.3, c.Latitude)
	assert.Equal(t, 12.0, c.DistanceM)
	assert.Equal(t, []string{"trip-1"}, runs.ended)
}

func TestTripRecorderStartFailure(t *testing.T) {
	runs := &fakeRuns{startErr: errors.New("db down")}
	r := NewTripRecorder(runs)

	r.TripStarted(testTrip())
	r.PickupResolved(testTrip(), models.PickupPoint{SequenceIndex: 1}, true, models.Position{}, 1)
	assert.Empty(t, runs.confirmations)
}

func TestNewFirebaseAppNeedsCredentials(t *testing.T) {
	_, err := NewFirebaseApp(context.Background(), "https://example.firebaseio.com", "", "")
	assert.ErrorIs(t, err, ErrNoFirebaseCredentials)

	_, err = NewFirebaseApp(context.Background(), "", "%%%not-base64", "")
	assert.ErrorContains(t, err, "base64")
}
