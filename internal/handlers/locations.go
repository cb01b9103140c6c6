package handlers

import (
	"net/http"

	"schoolbus-backend/internal/models"
	"schoolbus-backend/internal/tracking"
	"schoolbus-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
)

// GetBusLocation returns the live record of one bus trip
func GetBusLocation(records tracking.RecordStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		trip := models.TripContext{
			SchoolID:   chi.URLParam(r, "schoolID"),
			BusID:      chi.URLParam(r, "busID"),
			TripNumber: chi.URLParam(r, "tripNumber"),
		}
		if trip.SchoolID == "" || trip.BusID == "" || trip.TripNumber == "" {
			utils.RespondError(w, http.StatusBadRequest, "school, bus and trip are required")
			return
		}

		record, err := records.Read(r.Context(), trip.LocationPath())
		if err != nil {
			log.Printf("❌ Error reading %s: %v", trip.LocationPath(), err)
			utils.RespondError(w, http.StatusBadGateway, "Failed to read bus location")
			return
		}
		if record == nil {
			utils.RespondError(w, http.StatusNotFound, "No location published for this trip")
			return
		}

		utils.RespondSuccess(w, record)
	}
}
