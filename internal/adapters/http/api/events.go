package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okian/mapcheck/internal/adapters/mq/queue"
	"github.com/okian/mapcheck/internal/adapters/repository"
	"github.com/okian/mapcheck/internal/domain/dedupe"
	"github.com/okian/mapcheck/internal/domain/diagnostic"
	"github.com/okian/mapcheck/internal/domain/errorsummary"
	model "github.com/okian/mapcheck/internal/domain/model"
)

// EventDependencies defines the interface for async event processing.
type EventDependencies interface {
	dedupe.Guard

	// NextRevision issues the revision the submitted job will carry. key
	// comes from repository.Key.
	NextRevision(ctx context.Context, key string) int64

	// Enqueue pushes a job for async processing. Returns false on backpressure.
	Enqueue(ctx context.Context, job queue.CheckJob) bool
}

// EventsHandler handles async submissions and stored diagnoses.
type EventsHandler struct {
	deps    EventDependencies
	results ResultReader
	now     func() time.Time
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps EventDependencies, results ResultReader) *EventsHandler {
	return &EventsHandler{deps: deps, results: results, now: time.Now}
}

// HandleSubmit handles POST /api/0/events requests.
func (h *EventsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_event"
	req, err := decodeCheckRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	key := repository.Key(req.OrgSlug, req.ProjectSlug, req.Event.ID)

	switch err := h.deps.TryBegin(r.Context(), key); {
	case errors.Is(err, dedupe.ErrInFlight):
		writeJSON(w, http.StatusOK, ackResponse{Status: "in_flight", Duplicate: true})
		return
	case errors.Is(err, dedupe.ErrFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", WrapKind(op, ErrBackpressure, err))
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal", WrapKind(op, ErrInternal, err))
		return
	}

	job := queue.CheckJob{
		Event:      *req.Event,
		Scope:      req.Scope,
		Revision:   h.deps.NextRevision(r.Context(), key),
		EnqueuedAt: h.now(),
	}
	if ok := h.deps.Enqueue(r.Context(), job); !ok {
		// The worker will never see the job, so release the slot here.
		h.deps.Done(r.Context(), key)
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", Revision: job.Revision})
}

// HandleGetDiagnostics handles
// GET /api/0/projects/{owner}/{project}/events/{eventID}/diagnostics and
// GET /api/0/events/{eventID}/diagnostics?orgSlug=&projectSlug= requests.
func (h *EventsHandler) HandleGetDiagnostics(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_diagnostics"
	owner, project := chi.URLParam(r, "owner"), chi.URLParam(r, "project")
	if owner == "" && project == "" {
		owner, project = r.URL.Query().Get("orgSlug"), r.URL.Query().Get("projectSlug")
	}
	if owner == "" || project == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("orgSlug and projectSlug are required")))
		return
	}

	res, err := h.results.GetResult(r.Context(), repository.Key(owner, project, chi.URLParam(r, "eventID")))
	switch {
	case isNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal", WrapKind(op, ErrInternal, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// DiagnoseHandler runs checks synchronously.
type DiagnoseHandler struct {
	diagnoser Diagnoser
}

// NewDiagnoseHandler creates a new diagnose handler.
func NewDiagnoseHandler(d Diagnoser) *DiagnoseHandler {
	return &DiagnoseHandler{diagnoser: d}
}

type diagnoseResponse struct {
	EventID     string              `json:"eventId"`
	Diagnostics []model.EventError  `json:"diagnostics"`
	Banner      errorsummary.Banner `json:"banner"`
}

// HandleDiagnose handles POST /api/0/events/diagnose requests.
func (h *DiagnoseHandler) HandleDiagnose(w http.ResponseWriter, r *http.Request) {
	const op = "api.diagnose_event"
	req, err := decodeCheckRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	diags, banner := h.diagnoser.Diagnose(r.Context(), req.Scope, req.Event)
	writeJSON(w, http.StatusOK, diagnoseResponse{
		EventID:     req.Event.ID,
		Diagnostics: diagnostic.ToEventErrors(diags),
		Banner:      banner,
	})
}
