package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	apiMiddleware "github.com/phrazzld/vivaflow/internal/api/middleware"
	"github.com/phrazzld/vivaflow/internal/api/shared"
)

// HealthChecker reports whether a dependency is reachable. *sql.DB
// satisfies it.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

const healthTimeout = 2 * time.Second

// NewRouter creates the application router with all routes and middleware.
// health may be nil, in which case /health always reports OK.
func NewRouter(tasks *TaskHandler, health HealthChecker, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/submissions/{id}/tasks/{type}", tasks.SubmitSubmissionTask)
		r.Get("/submissions/{id}", tasks.GetSubmission)

		r.Post("/rubrics/{id}/tasks/{type}", tasks.SubmitRubricTask)
		r.Get("/rubrics/{id}", tasks.GetRubric)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()
			if err := health.PingContext(ctx); err != nil {
				shared.RespondWithErrorAndLog(w, r, http.StatusServiceUnavailable, "Database unavailable", err)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
