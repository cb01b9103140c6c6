package tracking

import "schoolbus-backend/internal/models"

// Observers fans lifecycle events out to several observers in order
type Observers []Observer

func (o Observers) TripStarted(trip models.TripContext) {
	for _, obs := range o {
		obs.TripStarted(trip)
	}
}

func (o Observers) LocationPublished(trip models.TripContext, record models.LocationRecord) {
	for _, obs := range o {
		obs.LocationPublished(trip, record)
	}
}

func (o Observers) PickupResolved(trip models.TripContext, point models.PickupPoint, confirmed bool, at models.Position, distanceM float64) {
	for _, obs := range o {
		obs.PickupResolved(trip, point, confirmed, at, distanceM)
	}
}

func (o Observers) TripEnded(trip models.TripContext) {
	for _, obs := range o {
		obs.TripEnded(trip)
	}
}
