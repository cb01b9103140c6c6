package models

import "fmt"

// TripContext identifies the remote record a trip publishes to
type TripContext struct {
	TripID     string `json:"trip_id" db:"id"`
	SchoolID   string `json:"school_id" db:"school_id"`
	BusID      string `json:"bus_id" db:"bus_id"`
	DriverID   string `json:"driver_id" db:"driver_id"`
	TripNumber string `json:"trip_number" db:"trip_number"`
	Name       string `json:"name" db:"name"`
}

// Complete is true when all four addressing identifiers are present
func (t TripContext) Complete() bool {
	return t.SchoolID != "" && t.BusID != "" && t.DriverID != "" && t.TripNumber != ""
}

// LocationPath returns the remote record path for this trip
func (t TripContext) LocationPath() string {
	return fmt.Sprintf("schools/%s/buses/%s/trips/%s/location", t.SchoolID, t.BusID, t.TripNumber)
}

// NotificationTopic is the FCM topic parents of this bus subscribe to
func (t TripContext) NotificationTopic() string {
	return fmt.Sprintf("school_%s_bus_%s", t.SchoolID, t.BusID)
}

// PickupPoint is a stop the bus visits in sequence order
type PickupPoint struct {
	ID            int     `json:"id" db:"id"`
	Latitude      float64 `json:"latitude" db:"latitude"`
	Longitude     float64 `json:"longitude" db:"longitude"`
	SequenceIndex int     `json:"sequence_index" db:"sequence_index"`
	Label         string  `json:"label,omitempty" db:"label"`
}

// TripRun is one start/end cycle of a trip
type TripRun struct {
	ID        string `json:"id" db:"id"`
	TripID    string `json:"trip_id" db:"trip_id"`
	DriverID  string `json:"driver_id" db:"driver_id"`
	StartedAt int64  `json:"started_at" db:"started_at"`
	EndedAt   *int64 `json:"ended_at,omitempty" db:"ended_at"`
}

// PickupConfirmation records the driver's answer to an arrival prompt
type PickupConfirmation struct {
	ID            int     `json:"id" db:"id"`
	TripRunID     string  `json:"trip_run_id" db:"trip_run_id"`
	SequenceIndex int     `json:"sequence_index" db:"sequence_index"`
	Confirmed     bool    `json:"confirmed" db:"confirmed"`
	Latitude      float64 `json:"latitude" db:"latitude"`
	Longitude     float64 `json:"longitude" db:"longitude"`
	DistanceM     float64 `json:"distance_m" db:"distance_m"`
	CreatedAt     int64   `json:"created_at" db:"created_at"`
}
