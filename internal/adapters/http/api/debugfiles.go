package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/mapcheck/internal/adapters/debugfiles"
)

// DebugFilesHandler serves the project dsyms endpoints.
type DebugFilesHandler struct {
	deps DebugFileDependencies
}

// NewDebugFilesHandler creates a new debug files handler.
func NewDebugFilesHandler(deps DebugFileDependencies) *DebugFilesHandler {
	return &DebugFilesHandler{deps: deps}
}

func projectRef(r *http.Request) debugfiles.ProjectRef {
	return debugfiles.ProjectRef{
		Owner:   chi.URLParam(r, "owner"),
		Project: chi.URLParam(r, "project"),
	}
}

// HandleList handles GET .../files/dsyms/?query=&file_formats= requests.
// file_formats may repeat or hold a comma separated list.
func (h *DebugFilesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_debug_files"
	params := r.URL.Query()
	q := debugfiles.Query{
		ProjectRef: projectRef(r),
		Text:       strings.TrimSpace(params.Get("query")),
	}
	for _, v := range params["file_formats"] {
		for _, f := range strings.Split(v, ",") {
			if f = strings.TrimSpace(f); f != "" {
				q.Formats = append(q.Formats, f)
			}
		}
	}
	if raw := params.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("limit must be a positive integer")))
			return
		}
		q.Limit = n
	}

	files, err := h.deps.FindDebugFiles(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", WrapKind(op, ErrInternal, err))
		return
	}
	if files == nil {
		files = []debugfiles.DebugFile{}
	}
	writeJSON(w, http.StatusOK, files)
}

// HandleCreate handles POST .../files/dsyms/ requests.
func (h *DebugFilesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_debug_file"
	var f debugfiles.DebugFile
	if err := decodeJSON(w, r, &f); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	ref := projectRef(r)
	f.ProjectOwner, f.Project = ref.Owner, ref.Project

	created, err := h.deps.CreateDebugFile(r.Context(), f)
	switch {
	case errors.Is(err, debugfiles.ErrInvalidFile):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal", WrapKind(op, ErrInternal, err))
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// HandleDelete handles DELETE .../files/dsyms/?id= requests.
func (h *DebugFilesHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_debug_file"
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing id")))
		return
	}
	err := h.deps.DeleteDebugFile(r.Context(), projectRef(r), id)
	switch {
	case isNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal", WrapKind(op, ErrInternal, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
