package alertapi

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
)

func (a *API) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	incidents, err := a.store.OpenIncidents(r.Context())
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list incidents")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"incidents": incidents,
		"count":     len(incidents),
	})
}

func (a *API) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("beacon.incident.id", id))

	incident, ok, err := a.store.GetIncident(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get incident", "id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	alerts, err := a.store.AlertsByIncident(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list incident alerts", "id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	span.SetAttributes(attribute.String("beacon.incident.status", string(incident.Status)))

	writeJSON(w, http.StatusOK, map[string]any{
		"incident": incident,
		"alerts":   alerts,
	})
}
