package tracking

import (
	"math"

	"schoolbus-backend/internal/geo"
	"schoolbus-backend/internal/models"
)

// EstimateHeading returns the compass bearing in [0, 360).
// A valid GPS heading is normalized and returned; otherwise the bearing comes from the
// magnetometer x/y axes. ok is false while the sensor has not produced axes yet.
func EstimateHeading(sample models.OrientationSample, gpsHeading *float64) (heading float64, ok bool) {
	if validGPSHeading(gpsHeading) {
		return geo.NormalizeDegrees(*gpsHeading), true
	}

	if !sample.HasAxes() {
		return 0, false
	}
	x, y := *sample.X, *sample.Y
	if !isFinite(x) || !isFinite(y) {
		return 0, false
	}

	angle := math.Atan2(y, x) * 180 / math.Pi
	return geo.NormalizeDegrees(angle), true
}

// MarkerBearing converts a heading to the rotation of the bus marker asset,
// which is drawn pointing east.
func MarkerBearing(heading float64) float64 {
	return geo.NormalizeDegrees(heading + 90)
}

// Devices report -1 when they have no course, so negative headings do not count
func validGPSHeading(h *float64) bool {
	return h != nil && isFinite(*h) && *h >= 0
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
