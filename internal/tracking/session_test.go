package tracking

import (
	"testing"

	"schoolbus-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threePoints() []models.PickupPoint {
	return []models.PickupPoint{
		{Latitude: 37.3470, Longitude: -121.9300, SequenceIndex: 1},
		{Latitude: 37.3500, Longitude: -121.9350, SequenceIndex: 2},
		{Latitude: 37.3550, Longitude: -121.9400, SequenceIndex: 3},
	}
}

func sequences(points []models.PickupPoint) []int {
	out := make([]int, 0, len(points))
	for _, p := range points {
		out = append(out, p.SequenceIndex)
	}
	return out
}

func TestSessionConfirmPopsHead(t *testing.T) {
	s := newSession(testTrip(), threePoints())

	_, raised := s.raise(models.Position{}, 10)
	require.True(t, raised)

	point, ok := s.resolve(true)
	require.True(t, ok)
	assert.Equal(t, 1, point.SequenceIndex)
	assert.Equal(t, []int{2, 3}, sequences(s.remaining()))
	assert.False(t, s.pendingConfirmation)
}

func TestSessionDeclineKeepsQueue(t *testing.T) {
	s := newSession(testTrip(), threePoints())

	_, raised := s.raise(models.Position{}, 10)
	require.True(t, raised)

	_, ok := s.resolve(false)
	require.True(t, ok)
	assert.Equal(t, []int{1, 2, 3}, sequences(s.remaining()))
	assert.False(t, s.pendingConfirmation)
}

func TestSessionRaisesOnlyOnce(t *testing.T) {
	s := newSession(testTrip(), threePoints())

	_, raised := s.raise(models.Position{}, 10)
	assert.True(t, raised)
	_, raised = s.raise(models.Position{}, 5)
	assert.False(t, raised)
}

func TestSessionResolveWithoutPrompt(t *testing.T) {
	s := newSession(testTrip(), threePoints())
	_, ok := s.resolve(true)
	assert.False(t, ok)
	assert.Len(t, s.remaining(), 3)
}

func TestSessionCopiesPoints(t *testing.T) {
	points := threePoints()
	s := newSession(testTrip(), points)
	points[0].SequenceIndex = 99

	head, ok := s.head()
	require.True(t, ok)
	assert.Equal(t, 1, head.SequenceIndex)
}
