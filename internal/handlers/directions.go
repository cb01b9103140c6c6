package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"schoolbus-backend/internal/directions"
	"schoolbus-backend/internal/geo"
	"schoolbus-backend/internal/tracking"
	"schoolbus-backend/pkg/utils"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
)

// GetDirections returns the driving route between two "lat,lng" points
func GetDirections(routes tracking.RouteProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin, err := parseLatLng(r.URL.Query().Get("origin"))
		if err != nil {
			utils.RespondError(w, http.StatusBadRequest, "origin: "+err.Error())
			return
		}
		destination, err := parseLatLng(r.URL.Query().Get("destination"))
		if err != nil {
			utils.RespondError(w, http.StatusBadRequest, "destination: "+err.Error())
			return
		}

		route, err := routes.Route(r.Context(), origin, destination)
		switch {
		case err == nil:
			utils.RespondSuccess(w, route)
		case errors.Is(err, directions.ErrNoRoute):
			utils.RespondError(w, http.StatusNotFound, "No route found")
		case errors.Is(err, directions.ErrNotConfigured),
			errors.Is(err, gobreaker.ErrOpenState),
			errors.Is(err, gobreaker.ErrTooManyRequests):
			log.Printf("⚠️  Directions unavailable: %v", err)
			utils.RespondError(w, http.StatusServiceUnavailable, "Directions service unavailable")
		default:
			log.Printf("❌ Directions request failed: %v", err)
			utils.RespondError(w, http.StatusBadGateway, "Failed to load directions")
		}
	}
}

// parseLatLng parses "37.33,-121.89"
func parseLatLng(value string) (geo.LatLng, error) {
	parts := strings.Split(value, ",")
	if len(parts) != 2 {
		return geo.LatLng{}, fmt.Errorf("expected lat,lng but got %q", value)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil || lat < -90 || lat > 90 {
		return geo.LatLng{}, fmt.Errorf("invalid latitude %q", parts[0])
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || lng < -180 || lng > 180 {
		return geo.LatLng{}, fmt.Errorf("invalid longitude %q", parts[1])
	}
	return geo.LatLng{Latitude: lat, Longitude: lng}, nil
}
