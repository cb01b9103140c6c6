package tracking

import "errors"

var (
	// ErrPermissionDenied means the device refused location access; the loop stays idle
	ErrPermissionDenied = errors.New("location permission denied")

	// ErrAlreadyTracking is returned by Start when a trip is already running
	ErrAlreadyTracking = errors.New("trip already being tracked")

	// ErrTeardownInProgress is returned by Start while End has not finished
	ErrTeardownInProgress = errors.New("previous trip is still shutting down")

	// ErrNotTracking is returned by operations that need an active trip
	ErrNotTracking = errors.New("no trip is being tracked")

	// ErrIncompleteTrip means one of the record identifiers is empty
	ErrIncompleteTrip = errors.New("trip context is missing an identifier")

	// ErrDeviceDisconnected is returned by Manager.Start when the driver's device
	// went away before tracking was fully set up
	ErrDeviceDisconnected = errors.New("driver device disconnected during start")

	// ErrNoPendingConfirmation is returned when resolving a prompt that was never raised
	ErrNoPendingConfirmation = errors.New("no arrival confirmation pending")
)
