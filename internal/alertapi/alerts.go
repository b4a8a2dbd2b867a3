package alertapi

import (
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/beacon/internal/source"
)

func (a *API) handleIngestAlert(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var (
		drv source.Driver
		err error
	)
	if name := r.URL.Query().Get("source"); name != "" {
		var ok bool
		drv, ok = a.sources.Get(name)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown source "+name)
			return
		}
	} else {
		drv, err = a.sources.Detect(payload)
		if err != nil {
			writeError(w, http.StatusBadRequest, "no source driver matches payload")
			return
		}
	}

	normalized, err := drv.Parse(payload)
	if err != nil {
		a.logger.Warn(r.Context(), "webhook rejected", "source", drv.Name(), "error", err)
		writeError(w, http.StatusBadRequest, "payload does not match source "+drv.Name())
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("beacon.source", drv.Name()),
		attribute.Int("beacon.alerts", len(normalized.Alerts)),
	)

	var traceID string
	if sc := span.SpanContext(); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}

	run := a.runner.Run(r.Context(), traceID, drv.Name(), normalized)
	a.runs.put(run)

	span.SetAttributes(attribute.String("beacon.run_id", run.RunID))

	writeJSON(w, http.StatusAccepted, map[string]any{
		"run_id":   run.RunID,
		"trace_id": run.TraceID,
		"source":   drv.Name(),
		"alerts":   len(normalized.Alerts),
		"failed":   run.Failed(),
	})
}

func (a *API) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	fingerprint := chi.URLParam(r, "fingerprint")
	src := r.URL.Query().Get("source")
	if src == "" {
		writeError(w, http.StatusBadRequest, "source query parameter is required")
		return
	}

	al, ok, err := a.store.GetAlert(r.Context(), fingerprint, src)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get alert", "fingerprint", fingerprint)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	history, err := a.store.HistoryByAlert(r.Context(), al.ID)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get alert history", "alert_id", al.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"alert":   al,
		"history": history,
	})
}
