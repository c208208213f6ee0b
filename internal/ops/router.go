// Package ops exposes the reconciler's small operational HTTP surface:
// health, Prometheus metrics, and a read-only view of quarantined
// notifications.
package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/carebridge-health/carebridge-platform/internal/notification"
	"github.com/carebridge-health/carebridge-platform/pkg/logging"
)

type quarantineStore interface {
	ListQuarantined(ctx context.Context, limit int) ([]notification.Notification, error)
}

// Config holds router configuration.
type Config struct {
	Logger         *logging.Logger
	Notifications  quarantineStore
	MetricsHandler http.Handler
}

// New creates the ops router.
func New(cfg *Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	})

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Get("/ops/quarantine", func(w http.ResponseWriter, req *http.Request) {
		limit := 100
		if raw := req.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
				return
			}
			limit = parsed
		}

		quarantined, err := cfg.Notifications.ListQuarantined(req.Context(), limit)
		if err != nil {
			logger.Error("list quarantined notifications failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		if quarantined == nil {
			quarantined = []notification.Notification{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"count":         len(quarantined),
			"notifications": quarantined,
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
