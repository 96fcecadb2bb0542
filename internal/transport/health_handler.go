package transport

import (
	"net/http"

	"shuttle-market/internal/middleware"
)

// HealthChecker reports dependency status; "status" is "up" when healthy
type HealthChecker interface {
	Health() map[string]string
}

// HealthHandler returns the database health map, 503 when the database is down
func HealthHandler(db HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := db.Health()
		status := http.StatusOK
		if stats["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		middleware.RespondWithJSON(w, status, stats)
	}
}
