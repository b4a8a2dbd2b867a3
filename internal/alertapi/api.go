// Package alertapi exposes the HTTP surface: webhook ingestion plus read
// endpoints for alerts, incidents, and pipeline runs.
package alertapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/beacon/internal/alert"
	"github.com/linnemanlabs/beacon/internal/authmw"
	"github.com/linnemanlabs/beacon/internal/lifecycle"
	"github.com/linnemanlabs/beacon/internal/pipeline"
	"github.com/linnemanlabs/beacon/internal/source"
)

// Runner executes the configured pipeline against a normalized payload.
type Runner interface {
	Run(ctx context.Context, traceID, source string, payload *alert.NormalizedPayload) *pipeline.RunResult
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger  log.Logger
	sources *source.Registry
	runner  Runner
	store   lifecycle.Store
	token   string
	runs    *runCache
}

// New creates the API handler. token may be empty, which leaves ingestion
// unauthenticated.
func New(logger log.Logger, sources *source.Registry, runner Runner, store lifecycle.Store, token string) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if sources == nil {
		panic(xerrors.New("source registry is required"))
	}
	if runner == nil {
		panic(xerrors.New("pipeline runner is required"))
	}
	if store == nil {
		panic(xerrors.New("lifecycle store is required"))
	}
	return &API{
		logger:  logger,
		sources: sources,
		runner:  runner,
		store:   store,
		token:   token,
		runs:    newRunCache(defaultRunCacheSize),
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if a.token != "" {
				r.Use(authmw.BearerToken(a.token))
			}
			r.Post("/alerts", a.handleIngestAlert)
		})
		r.Get("/alerts/{fingerprint}", a.handleGetAlert)
		r.Get("/incidents", a.handleListIncidents)
		r.Get("/incidents/{id}", a.handleGetIncident)
		r.Get("/runs/{id}", a.handleGetRun)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
