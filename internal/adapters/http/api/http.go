// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/mapcheck/internal/adapters/debugfiles"
	"github.com/okian/mapcheck/internal/adapters/repository"
	"github.com/okian/mapcheck/internal/domain/diagnostic"
	"github.com/okian/mapcheck/internal/domain/errorsummary"
	model "github.com/okian/mapcheck/internal/domain/model"
	"github.com/okian/mapcheck/internal/domain/proguard"
)

// maxBodyBytes caps request bodies. Events with large stacktraces fit easily.
const maxBodyBytes = 8 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	EventDependencies
	Diagnoser
	ResultReader
	DebugFileDependencies
}

// Diagnoser runs a synchronous check of one event.
type Diagnoser interface {
	Diagnose(ctx context.Context, scope proguard.Scope, event *model.Event) ([]diagnostic.Diagnostic, errorsummary.Banner)
}

// ResultReader reads stored diagnoses by repository.Key.
type ResultReader interface {
	GetResult(ctx context.Context, key string) (repository.Result, error)
}

// DebugFileDependencies manage the project debug-file registry.
type DebugFileDependencies interface {
	CreateDebugFile(ctx context.Context, f debugfiles.DebugFile) (debugfiles.DebugFile, error)
	FindDebugFiles(ctx context.Context, q debugfiles.Query) ([]debugfiles.DebugFile, error)
	DeleteDebugFile(ctx context.Context, ref debugfiles.ProjectRef, id string) error
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	eventsHandler     *EventsHandler
	diagnoseHandler   *DiagnoseHandler
	debugFilesHandler *DebugFilesHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(statsProvider),
		eventsHandler:     NewEventsHandler(deps, deps),
		diagnoseHandler:   NewDiagnoseHandler(deps),
		debugFilesHandler: NewDebugFilesHandler(deps),
	}
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	if r == nil {
		panic("router is nil")
	}
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	r.Route("/api/0", func(r chi.Router) {
		r.Route("/events", func(r chi.Router) {
			r.Post("/", MetricsMiddleware(s.eventsHandler.HandleSubmit, "events"))
			r.Post("/diagnose", MetricsMiddleware(s.diagnoseHandler.HandleDiagnose, "diagnose"))
			r.Get("/{eventID}/diagnostics", MetricsMiddleware(s.eventsHandler.HandleGetDiagnostics, "diagnostics"))
		})
		r.Get("/projects/{owner}/{project}/events/{eventID}/diagnostics",
			MetricsMiddleware(s.eventsHandler.HandleGetDiagnostics, "diagnostics"))
		r.Route("/projects/{owner}/{project}/files/dsyms", func(r chi.Router) {
			r.Get("/", MetricsMiddleware(s.debugFilesHandler.HandleList, "dsyms"))
			r.Post("/", MetricsMiddleware(s.debugFilesHandler.HandleCreate, "dsyms"))
			r.Delete("/", MetricsMiddleware(s.debugFilesHandler.HandleDelete, "dsyms"))
		})
	})
}

// checkRequest is the body of the diagnose and submit endpoints: the
// project scope plus the normalized event.
type checkRequest struct {
	proguard.Scope
	Event *model.Event `json:"event"`
}

func (c *checkRequest) validate() error {
	switch {
	case c.Event == nil:
		return errors.New("missing event")
	case strings.TrimSpace(c.Event.ID) == "":
		return errors.New("missing event.id")
	case strings.TrimSpace(c.OrgSlug) == "":
		return errors.New("missing orgSlug")
	case strings.TrimSpace(c.ProjectSlug) == "":
		return errors.New("missing projectSlug")
	}
	if c.Platform == "" {
		c.Platform = c.Event.Platform
	}
	return nil
}

func decodeCheckRequest(w http.ResponseWriter, r *http.Request) (checkRequest, error) {
	var req checkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return req, err
	}
	return req, req.validate()
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
	Revision  int64  `json:"revision,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// isNotFound translates the not-found sentinels of the backing stores.
func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, repository.ErrNotFound) ||
		errors.Is(err, debugfiles.ErrNotFound)
}
