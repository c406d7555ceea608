// Package api exposes the dispatch service over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kilianp07/civicdispatch/core/dispatch"
	"github.com/kilianp07/civicdispatch/core/ledger"
	"github.com/kilianp07/civicdispatch/core/model"
	"github.com/kilianp07/civicdispatch/core/neighborhood"
	"github.com/kilianp07/civicdispatch/infra/logger"
)

// Service is the part of the application the handlers call.
type Service interface {
	Targets() []model.DispatchTarget
	Target(id string) (model.DispatchTarget, bool)
	Nearby(point model.GeoPoint, radiusKm float64) []neighborhood.Match
	DispatchIssue(ctx context.Context, req model.DispatchRequest, userLocation model.GeoPoint) (dispatch.RoundReport, error)
	CurrentRecord(ctx context.Context, issueID string) (ledger.SubmissionRecord, error)
	History(ctx context.Context, issueID string) ([]ledger.RoundEntry, error)
}

// NewRouter builds the HTTP handler. When token is non-empty every /api route
// requires "Authorization: Bearer <token>".
func NewRouter(svc Service, token string, log logger.Logger) http.Handler {
	if log == nil {
		log = logger.NopLogger{}
	}
	h := &handlers{svc: svc, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(recoverJSON(log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(bearerAuth(token))

		r.Get("/targets", h.listTargets)
		r.Get("/targets/nearby", h.nearby)
		r.Get("/targets/{id}", h.getTarget)

		r.Route("/issues/{id}", func(r chi.Router) {
			r.Post("/dispatch", h.dispatch)
			r.Post("/compose/{targetID}", h.compose)
			r.Get("/submissions", h.submissions)
			r.Get("/history", h.history)
		})
	})
	return r
}
