package handlers

import (
	"net/http"

	"schoolbus-backend/internal/tracking"
	"schoolbus-backend/internal/websocket"
	"schoolbus-backend/pkg/utils"

	log "github.com/sirupsen/logrus"
)

// ConnectionCounter reports live socket connections
type ConnectionCounter interface {
	GetClientCount() int
	IsUserConnected(userID string) bool
	WatchStats(userID string) map[string]websocket.FilterStats
}

// ActiveTripResponse is one running trip as seen by the dispatch dashboard
type ActiveTripResponse struct {
	tracking.Snapshot
	DeviceConnected bool                             `json:"device_connected"`
	Watches         map[string]websocket.FilterStats `json:"watches,omitempty"`
}

// GetActiveTrips returns every running trip
func GetActiveTrips(tracker TripTracker, connections ConnectionCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Println("📋 GetActiveTrips: Fetching all running trips...")

		snapshots := tracker.ActiveSnapshots()
		trips := make([]ActiveTripResponse, 0, len(snapshots))
		for _, snap := range snapshots {
			resp := ActiveTripResponse{Snapshot: snap}
			if snap.Trip != nil {
				resp.DeviceConnected = connections.IsUserConnected(snap.Trip.DriverID)
				resp.Watches = connections.WatchStats(snap.Trip.DriverID)
			}
			trips = append(trips, resp)
		}

		log.Printf("✅ Found %d running trips (%d sockets connected)", len(trips), connections.GetClientCount())
		utils.RespondSuccess(w, trips)
	}
}

// StatsProvider exposes internal counters
type StatsProvider interface {
	Stats() map[string]interface{}
}

// GetDirectionsStats returns directions cache and breaker counters
func GetDirectionsStats(stats StatsProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		utils.RespondSuccess(w, stats.Stats())
	}
}
