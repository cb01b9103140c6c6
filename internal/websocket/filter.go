package websocket

import (
	"sync"
	"time"

	"schoolbus-backend/internal/geo"
	"schoolbus-backend/internal/models"

	log "github.com/sirupsen/logrus"
)

// MinHeartbeat is the longest a stationary bus goes without a delivered
// update. A heartbeat is never shorter than twice the watch interval.
const MinHeartbeat = 2 * time.Second

// MovementFilter applies a watch's minimum distance and interval to the raw
// location_update stream of a device
type MovementFilter struct {
	minDistance float64
	minInterval time.Duration
	heartbeat   time.Duration

	mutex  sync.Mutex
	last   *models.Position
	lastAt time.Time
	stats  FilterStats
}

// FilterStats tracks how many updates the filter let through
type FilterStats struct {
	Received          int64 `json:"received"`
	SkippedByInterval int64 `json:"skipped_by_interval"`
	SkippedByDelta    int64 `json:"skipped_by_delta"`
	Delivered         int64 `json:"delivered"`
}

// NewMovementFilter creates a filter for one watch
func NewMovementFilter(minDistance float64, minInterval time.Duration) *MovementFilter {
	heartbeat := 2 * minInterval
	if heartbeat < MinHeartbeat {
		heartbeat = MinHeartbeat
	}
	return &MovementFilter{
		minDistance: minDistance,
		minInterval: minInterval,
		heartbeat:   heartbeat,
	}
}

// Allow reports whether pos should reach the watcher. received is the server
// time the update arrived; the device timestamp is preferred when present.
func (f *MovementFilter) Allow(pos models.Position, received time.Time) bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.stats.Received++
	at := received
	if pos.Timestamp > 0 {
		at = time.UnixMilli(pos.Timestamp)
	}

	// First position of the watch - always deliver
	if f.last == nil {
		f.accept(pos, at)
		return true
	}

	elapsed := at.Sub(f.lastAt)
	if elapsed < f.minInterval {
		f.stats.SkippedByInterval++
		return false
	}

	distance := geo.HaversineMeters(
		geo.LatLng{Latitude: f.last.Latitude, Longitude: f.last.Longitude},
		geo.LatLng{Latitude: pos.Latitude, Longitude: pos.Longitude},
	)
	if distance >= f.minDistance {
		f.accept(pos, at)
		return true
	}

	// Time-based fallback so a stopped bus does not go stale
	if elapsed >= f.heartbeat {
		log.Debugf("⏱️  Time-based update (%.1fs since last, distance: %.1fm)", elapsed.Seconds(), distance)
		f.accept(pos, at)
		return true
	}

	f.stats.SkippedByDelta++
	return false
}

func (f *MovementFilter) accept(pos models.Position, at time.Time) {
	f.last = &pos
	f.lastAt = at
	f.stats.Delivered++
}

// Stats returns a copy of the filter counters
func (f *MovementFilter) Stats() FilterStats {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.stats
}
