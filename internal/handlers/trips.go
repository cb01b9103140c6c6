package handlers

import (
	"context"
	"errors"
	"net/http"

	"schoolbus-backend/internal/database"
	"schoolbus-backend/internal/middleware"
	"schoolbus-backend/internal/models"
	"schoolbus-backend/internal/tracking"
	"schoolbus-backend/internal/websocket"
	"schoolbus-backend/pkg/utils"

	log "github.com/sirupsen/logrus"
)

// TripTracker is the part of the tracking manager the HTTP layer drives
type TripTracker interface {
	Start(ctx context.Context, trip models.TripContext, points []models.PickupPoint, device tracking.Device) error
	End(driverID string) error
	ResolveConfirmation(driverID string, confirmed bool) error
	Snapshot(driverID string) tracking.Snapshot
	ActiveSnapshots() []tracking.Snapshot
}

// TripLoader loads a driver's trip and its pickup points
type TripLoader interface {
	GetDriverTrip(driverID, tripNumber string) (models.TripContext, []models.PickupPoint, error)
}

// DeviceFinder returns the driver's connected phone
type DeviceFinder func(driverID string) (tracking.Device, bool)

type startTripRequest struct {
	TripNumber string `json:"trip_number"`
}

type confirmArrivalRequest struct {
	Confirmed *bool `json:"confirmed"`
}

// StartTrip begins live tracking of one of the driver's trips
func StartTrip(trips TripLoader, devices DeviceFinder, tracker TripTracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Printf("📥 REQUEST: POST /api/driver/trip/start")

		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req startTripRequest
		if err := utils.DecodeJSON(r, &req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.TripNumber == "" {
			utils.RespondError(w, http.StatusBadRequest, "trip_number is required")
			return
		}
		log.Printf("   Driver: %s, trip %s", userClaims.UserID, req.TripNumber)

		trip, points, err := trips.GetDriverTrip(userClaims.UserID, req.TripNumber)
		if err != nil {
			respondTrackingError(w, err)
			return
		}

		device, ok := devices(userClaims.UserID)
		if !ok {
			log.Printf("⚠️  Driver %s has no connected device", userClaims.UserID)
			utils.RespondError(w, http.StatusPreconditionFailed, "Driver device is not connected")
			return
		}

		if err := tracker.Start(r.Context(), trip, points, device); err != nil {
			respondTrackingError(w, err)
			return
		}

		log.Printf("📤 RESPONSE: 200 OK - trip %s started with %d pickup points", trip.TripNumber, len(points))
		utils.RespondSuccess(w, tracker.Snapshot(userClaims.UserID))
	}
}

// EndTrip stops the driver's running trip
func EndTrip(tracker TripTracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Printf("📥 REQUEST: POST /api/driver/trip/end")

		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		err := tracker.End(userClaims.UserID)
		if err != nil && errors.Is(err, tracking.ErrNotTracking) {
			respondTrackingError(w, err)
			return
		}
		if err != nil {
			// The trip is stopped either way; the device just failed to release a sensor
			log.Printf("⚠️  Trip ended for driver %s with teardown error: %v", userClaims.UserID, err)
		}

		log.Printf("📤 RESPONSE: 200 OK - trip ended for driver %s", userClaims.UserID)
		utils.RespondSuccess(w, tracker.Snapshot(userClaims.UserID))
	}
}

// ConfirmArrival answers the pending "did you reach this stop" prompt
func ConfirmArrival(tracker TripTracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Printf("📥 REQUEST: POST /api/driver/trip/confirm")

		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req confirmArrivalRequest
		if err := utils.DecodeJSON(r, &req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.Confirmed == nil {
			utils.RespondError(w, http.StatusBadRequest, "confirmed is required")
			return
		}

		if err := tracker.ResolveConfirmation(userClaims.UserID, *req.Confirmed); err != nil {
			respondTrackingError(w, err)
			return
		}

		log.Printf("📤 RESPONSE: 200 OK - driver %s answered %v", userClaims.UserID, *req.Confirmed)
		utils.RespondSuccess(w, tracker.Snapshot(userClaims.UserID))
	}
}

// GetTripStatus returns the driver's loop snapshot
func GetTripStatus(tracker TripTracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		utils.RespondSuccess(w, tracker.Snapshot(userClaims.UserID))
	}
}

// respondTrackingError maps domain errors to HTTP statuses
func respondTrackingError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case errors.Is(err, database.ErrTripNotFound):
		status, message = http.StatusNotFound, "Trip not found"
	case errors.Is(err, tracking.ErrAlreadyTracking),
		errors.Is(err, tracking.ErrTeardownInProgress),
		errors.Is(err, tracking.ErrNoPendingConfirmation):
		status, message = http.StatusConflict, err.Error()
	case errors.Is(err, tracking.ErrNotTracking):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, tracking.ErrPermissionDenied):
		status, message = http.StatusForbidden, "Location permission denied on the device"
	case errors.Is(err, tracking.ErrIncompleteTrip):
		status, message = http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, websocket.ErrRequestTimeout), errors.Is(err, context.DeadlineExceeded):
		status, message = http.StatusGatewayTimeout, "Driver device did not respond"
	case errors.Is(err, websocket.ErrDeviceClosed),
		errors.Is(err, websocket.ErrSendFailed),
		errors.Is(err, tracking.ErrDeviceDisconnected):
		status, message = http.StatusServiceUnavailable, "Driver device is not reachable"
	}

	if status == http.StatusInternalServerError {
		log.Printf("❌ Tracking request failed: %v", err)
	} else {
		log.Printf("📤 RESPONSE: %d - %v", status, err)
	}
	utils.RespondError(w, status, message)
}
