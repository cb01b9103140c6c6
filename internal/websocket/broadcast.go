package websocket

import (
	"time"

	"schoolbus-backend/internal/middleware"
	"schoolbus-backend/internal/models"
	"schoolbus-backend/internal/tracking"
)

var _ tracking.Observer = (*Hub)(nil)

type busLocation struct {
	SchoolID   string   `json:"school_id"`
	BusID      string   `json:"bus_id"`
	TripNumber string   `json:"trip_number"`
	DriverID   string   `json:"driver_id"`
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	Accuracy   *float64 `json:"accuracy"`
	Heading    float64  `json:"heading"`
	Timestamp  int64    `json:"timestamp"`
}

type tripStatus struct {
	Status string             `json:"status"`
	Trip   models.TripContext `json:"trip"`
}

type pickupResolved struct {
	Trip          models.TripContext `json:"trip"`
	SequenceIndex int                `json:"sequence_index"`
	Confirmed     bool               `json:"confirmed"`
	DistanceM     float64            `json:"distance_m"`
}

func envelope(msgType string, data interface{}) OutgoingMessage {
	return OutgoingMessage{
		Type:      msgType,
		Timestamp: time.Now().Format(time.RFC3339),
		Data:      data,
	}
}

// TripStarted tells the driver and every manager that the trip is live
func (h *Hub) TripStarted(trip models.TripContext) {
	msg := envelope(TypeTripStatus, tripStatus{Status: "tracking", Trip: trip})
	h.BroadcastToRole(middleware.RoleAdmin, msg)
	h.BroadcastToUser(trip.DriverID, msg)
}

// LocationPublished mirrors every stored record to managers watching the map
func (h *Hub) LocationPublished(trip models.TripContext, record models.LocationRecord) {
	h.BroadcastToRole(middleware.RoleAdmin, envelope(TypeBusLocationUpdate, busLocation{
		SchoolID:   trip.SchoolID,
		BusID:      trip.BusID,
		TripNumber: trip.TripNumber,
		DriverID:   trip.DriverID,
		Latitude:   record.Latitude,
		Longitude:  record.Longitude,
		Accuracy:   record.Accuracy,
		Heading:    record.Heading,
		Timestamp:  record.Timestamp,
	}))
}

func (h *Hub) PickupResolved(trip models.TripContext, point models.PickupPoint, confirmed bool, _ models.Position, distanceM float64) {
	h.BroadcastToRole(middleware.RoleAdmin, envelope(TypePickupResolved, pickupResolved{
		Trip:          trip,
		SequenceIndex: point.SequenceIndex,
		Confirmed:     confirmed,
		DistanceM:     distanceM,
	}))
}

func (h *Hub) TripEnded(trip models.TripContext) {
	msg := envelope(TypeTripStatus, tripStatus{Status: "idle", Trip: trip})
	h.BroadcastToRole(middleware.RoleAdmin, msg)
	h.BroadcastToUser(trip.DriverID, msg)
}
