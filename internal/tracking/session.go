package tracking

import (
	"schoolbus-backend/internal/models"
)

// State of a Loop
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateTracking State = "tracking"
	StateStopping State = "stopping"
)

// session is the runtime state of one trip. Only Loop touches it.
type session struct {
	active              bool
	trip                models.TripContext
	queue               []models.PickupPoint
	lastPublished       *models.LocationRecord
	pendingConfirmation bool
	pendingPoint        *models.PickupPoint
	pendingPosition     models.Position
	pendingDistance     float64
}

func newSession(trip models.TripContext, points []models.PickupPoint) *session {
	queue := make([]models.PickupPoint, len(points))
	copy(queue, points)
	return &session{
		active: true,
		trip:   trip,
		queue:  queue,
	}
}

// head returns the next pickup point
func (s *session) head() (models.PickupPoint, bool) {
	if len(s.queue) == 0 {
		return models.PickupPoint{}, false
	}
	return s.queue[0], true
}

// raise marks the head as awaiting confirmation. Returns false if a prompt is already out.
func (s *session) raise(at models.Position, distance float64) (models.PickupPoint, bool) {
	if s.pendingConfirmation {
		return models.PickupPoint{}, false
	}
	p, ok := s.head()
	if !ok {
		return models.PickupPoint{}, false
	}
	s.pendingConfirmation = true
	s.pendingPoint = &p
	s.pendingPosition = at
	s.pendingDistance = distance
	return p, true
}

// resolve clears the pending prompt and pops the head when confirmed
func (s *session) resolve(confirmed bool) (models.PickupPoint, bool) {
	if !s.pendingConfirmation || s.pendingPoint == nil {
		return models.PickupPoint{}, false
	}
	point := *s.pendingPoint
	if confirmed && len(s.queue) > 0 && s.queue[0].SequenceIndex == point.SequenceIndex {
		s.queue = s.queue[1:]
	}
	s.pendingConfirmation = false
	s.pendingPoint = nil
	return point, true
}

func (s *session) remaining() []models.PickupPoint {
	out := make([]models.PickupPoint, len(s.queue))
	copy(out, s.queue)
	return out
}
