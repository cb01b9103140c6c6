package websocket

import (
	"testing"
	"time"

	"schoolbus-backend/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestMovementFilter(t *testing.T) {
	f := NewMovementFilter(1, time.Second)
	start := time.Unix(1700000000, 0)
	pos := func(lat float64, offset time.Duration) models.Position {
		return models.Position{Latitude: lat, Longitude: -121.93, Timestamp: start.Add(offset).UnixMilli()}
	}

	tests := []struct {
		name string
		pos  models.Position
		want bool
	}{
		{"first position", pos(37.3470, 0), true},
		{"inside interval", pos(37.3480, 500*time.Millisecond), false},
		{"moved after interval", pos(37.3480, 1200*time.Millisecond), true},
		{"jitter below distance", pos(37.348001, 2400*time.Millisecond), false},
		{"stationary heartbeat", pos(37.348001, 3300*time.Millisecond), true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, f.Allow(tt.pos, time.Time{}), tt.name)
	}

	stats := f.Stats()
	assert.Equal(t, int64(5), stats.Received)
	assert.Equal(t, int64(3), stats.Delivered)
	assert.Equal(t, int64(1), stats.SkippedByInterval)
	assert.Equal(t, int64(1), stats.SkippedByDelta)
}

func TestMovementFilterUsesServerTimeWithoutTimestamp(t *testing.T) {
	f := NewMovementFilter(1, time.Second)
	now := time.Unix(1700000000, 0)

	assert.True(t, f.Allow(models.Position{Latitude: 37.347}, now))
	assert.False(t, f.Allow(models.Position{Latitude: 37.348}, now.Add(100*time.Millisecond)))
	assert.True(t, f.Allow(models.Position{Latitude: 37.348}, now.Add(1100*time.Millisecond)))
}

func TestMovementFilterHeartbeatFollowsInterval(t *testing.T) {
	assert.Equal(t, MinHeartbeat, NewMovementFilter(1, 500*time.Millisecond).heartbeat)
	assert.Equal(t, 10*time.Second, NewMovementFilter(1, 5*time.Second).heartbeat)
}
