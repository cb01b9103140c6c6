package websocket

import (
	"encoding/json"

	"schoolbus-backend/internal/models"
)

// Message types sent by the driver's device
const (
	TypePing              = "ping"
	TypeLocationUpdate    = "location_update"
	TypeOrientationUpdate = "orientation_update"
	TypePermissionStatus  = "permission_status"
	TypePositionResponse  = "position_response"
	TypeConfirmArrival    = "confirm_arrival"
)

// Message types sent by the server
const (
	TypePong                 = "pong"
	TypePermissionRequest    = "permission_request"
	TypePositionRequest      = "position_request"
	TypeWatchPosition        = "watch_position"
	TypeStopWatch            = "stop_watch"
	TypeOrientationInterval  = "orientation_interval"
	TypeStopOrientation      = "stop_orientation"
	TypeBearingUpdate        = "bearing_update"
	TypeConfirmArrivalPrompt = "confirm_arrival_prompt"
	TypeRouteUpdate          = "route_update"
	TypeTrackingError        = "tracking_error"
	TypeTripStatus           = "trip_status"
	TypeBusLocationUpdate    = "bus_location_update"
	TypePickupResolved       = "pickup_resolved"
)

// IncomingMessage represents a message from the client
type IncomingMessage struct {
	Type      string          `json:"type"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// OutgoingMessage is the envelope of every server message
type OutgoingMessage struct {
	Type      string      `json:"type"`
	Timestamp string      `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

type permissionStatus struct {
	RequestID string `json:"request_id"`
	Granted   bool   `json:"granted"`
}

type positionResponse struct {
	RequestID string           `json:"request_id"`
	Position  *models.Position `json:"position"`
	Error     string           `json:"error"`
}

type confirmArrival struct {
	Confirmed bool `json:"confirmed"`
}

type requestPayload struct {
	RequestID string `json:"request_id"`
	Accuracy  string `json:"accuracy,omitempty"`
}

type watchPayload struct {
	WatchID       string  `json:"watch_id"`
	Accuracy      string  `json:"accuracy"`
	MinDistanceM  float64 `json:"min_distance_m"`
	MinIntervalMs int64   `json:"min_interval_ms"`
}

type intervalPayload struct {
	IntervalMs int64 `json:"interval_ms"`
}

type bearingPayload struct {
	From       float64 `json:"from"`
	To         float64 `json:"to"`
	DurationMs int64   `json:"duration_ms"`
}

type promptPayload struct {
	SequenceIndex int     `json:"sequence_index"`
	Label         string  `json:"label,omitempty"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	DistanceM     float64 `json:"distance_m"`
	Message       string  `json:"message"`
}

type errorPayload struct {
	Message string `json:"message"`
}
