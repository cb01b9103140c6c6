package services

import (
	"sync"

	"schoolbus-backend/internal/models"
	"schoolbus-backend/internal/tracking"

	log "github.com/sirupsen/logrus"
)

// TripRunStore persists trip runs and pickup answers
type TripRunStore interface {
	StartTripRun(trip models.TripContext) (models.TripRun, error)
	EndTripRun(tripID string) error
	RecordPickupConfirmation(c models.PickupConfirmation) error
}

// TripRecorder keeps a history of every trip run and each answered arrival
// prompt. Database failures are logged; they never affect tracking.
type TripRecorder struct {
	store TripRunStore

	mu   sync.Mutex
	runs map[string]string // trip ID -> open run ID
}

var _ tracking.Observer = (*TripRecorder)(nil)

func NewTripRecorder(store TripRunStore) *TripRecorder {
	return &TripRecorder{
		store: store,
		runs:  make(map[string]string),
	}
}

func (r *TripRecorder) TripStarted(trip models.TripContext) {
	run, err := r.store.StartTripRun(trip)
	if err != nil {
		log.Printf("❌ Failed to record start of trip %s: %v", trip.TripID, err)
		return
	}
	r.mu.Lock()
	r.runs[trip.TripID] = run.ID
	r.mu.Unlock()
	log.Printf("📝 Trip run %s started (trip %s)", run.ID, trip.TripID)
}

func (r *TripRecorder) LocationPublished(models.TripContext, models.LocationRecord) {}

func (r *TripRecorder) PickupResolved(trip models.TripContext, point models.PickupPoint, confirmed bool, at models.Position, distanceM float64) {
	runID, ok := r.runID(trip.TripID)
	if !ok {
		log.Printf("⚠️  No open run for trip %s - pickup answer not recorded", trip.TripID)
		return
	}
	err := r.store.RecordPickupConfirmation(models.PickupConfirmation{
		TripRunID:     runID,
		SequenceIndex: point.SequenceIndex,
		Confirmed:     confirmed,
		Latitude:      at.Latitude,
		Longitude:     at.Longitude,
		DistanceM:     distanceM,
	})
	if err != nil {
		log.Printf("❌ Failed to record pickup %d for trip %s: %v", point.SequenceIndex, trip.TripID, err)
	}
}

func (r *TripRecorder) TripEnded(trip models.TripContext) {
	r.mu.Lock()
	delete(r.runs, trip.TripID)
	r.mu.Unlock()

	if err := r.store.EndTripRun(trip.TripID); err != nil {
		log.Printf("❌ Failed to record end of trip %s: %v", trip.TripID, err)
	}
}

func (r *TripRecorder) runID(tripID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.runs[tripID]
	return id, ok
}
