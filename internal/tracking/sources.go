package tracking

import (
	"context"
	"time"

	"schoolbus-backend/internal/geo"
	"schoolbus-backend/internal/models"
)

// Accuracy is a hint passed to one-shot position reads
type Accuracy string

const (
	AccuracyBalanced Accuracy = "balanced"
	AccuracyHigh     Accuracy = "high"
)

// WatchOptions bounds how often a continuous location subscription fires
type WatchOptions struct {
	Accuracy    Accuracy
	MinDistance float64       // meters
	MinInterval time.Duration
}

// Subscription is a running continuous location watch
type Subscription interface {
	Cancel() error
}

// Listener is a registered orientation callback
type Listener interface {
	Remove() error
}

// LocationSource wraps the device's positioning capability
type LocationSource interface {
	RequestPermission(ctx context.Context) (bool, error)
	CurrentPosition(ctx context.Context, accuracy Accuracy) (models.Position, error)
	WatchPosition(opts WatchOptions, fn func(models.Position)) (Subscription, error)
}

// OrientationSource wraps the device's magnetic-field sensor
type OrientationSource interface {
	SetSampleInterval(interval time.Duration) error
	Subscribe(fn func(models.OrientationSample)) (Listener, error)
}

// RecordStore is the remote real-time store holding each trip's location.
// Read returns nil, nil when nothing is stored at path.
type RecordStore interface {
	Read(ctx context.Context, path string) (*models.LocationRecord, error)
	Write(ctx context.Context, path string, record models.LocationRecord) error
}

// BearingUpdate asks the UI to rotate the bus marker
type BearingUpdate struct {
	From     float64       `json:"from"`
	To       float64       `json:"to"`
	Duration time.Duration `json:"-"`
}

// ConfirmationRequest asks the driver whether the bus reached a pickup point
type ConfirmationRequest struct {
	Point     models.PickupPoint `json:"point"`
	DistanceM float64            `json:"distance_m"`
	Message   string             `json:"message"`
}

// Route is a decoded directions result
type Route struct {
	Points          []geo.LatLng `json:"points"`
	EncodedPolyline string       `json:"encoded_polyline"`
	DurationSeconds int          `json:"duration_seconds"`
	DurationText    string       `json:"duration_text"`
}

// Prompter is the driver-facing UI. Calls must not block the tick.
type Prompter interface {
	RequestConfirmation(req ConfirmationRequest)
	ShowError(message string)
	UpdateBearing(update BearingUpdate)
	ShowRoute(route Route)
}

// RouteProvider fetches driving directions between two points
type RouteProvider interface {
	Route(ctx context.Context, origin, destination geo.LatLng) (Route, error)
}

// Observer is told about trip lifecycle events after the loop has applied them
type Observer interface {
	TripStarted(trip models.TripContext)
	LocationPublished(trip models.TripContext, record models.LocationRecord)
	PickupResolved(trip models.TripContext, point models.PickupPoint, confirmed bool, at models.Position, distanceM float64)
	TripEnded(trip models.TripContext)
}
