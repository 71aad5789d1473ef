package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hotelly/hotelly/internal/apperr"
	"github.com/hotelly/hotelly/internal/httpapi/middleware"
)

// NewWorkerRouter builds the private-role chi router (spec §4.8,
// §5): every route here is a task handler reached only by the task
// queue's own OIDC-bearer dispatch, never by a browser or a guest
// channel directly.
func NewWorkerRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.SecurityHeadersMiddleware)
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(deps.Cfg.MaxBodyBytes))
	r.Use(middleware.NewCorrelationID(deps.Logger).Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "role": "worker"})
	})
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "role": "worker"})
	})
	if deps.Metrics != nil {
		r.Get("/metrics", deps.Metrics.Handler().ServeHTTP)
	}

	tasksHandlers := newTaskHandlers(deps)
	timeoutMW := middleware.NewTimeoutMiddleware(deps.Logger, deps.Cfg)

	r.Route("/tasks", func(r chi.Router) {
		r.Use(timeoutMW.Handler)
		r.Use(taskBearerAuth(deps))

		r.Post("/expire-hold", tasksHandlers.handleExpireHold)
		r.Post("/stripe", tasksHandlers.handleStripeTask)
		r.Post("/send-response", tasksHandlers.handleSendResponse)
		r.Post("/inbound-message", tasksHandlers.handleInboundMessage)
	})

	return r
}

// taskBearerAuth verifies the task queue's own OIDC identity token
// before a handler ever sees the request (spec §4.8): a missing or
// invalid bearer token, or one whose audience doesn't exactly match
// this worker, never reaches the domain logic.
func taskBearerAuth(deps *Deps) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, apperr.Unauthorized("missing task bearer token"))
				return
			}
			if _, err := deps.TaskVerifier.Verify(r.Context(), token); err != nil {
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimPrefix(h, prefix)
}
