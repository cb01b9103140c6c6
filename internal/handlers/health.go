package handlers

import (
	"context"
	"net/http"
	"time"

	"schoolbus-backend/pkg/utils"

	log "github.com/sirupsen/logrus"
)

// Pinger checks a dependency is reachable. *sqlx.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Health reports OK when the database answers
func Health(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			log.Printf("❌ Health check failed: %v", err)
			utils.RespondError(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
