package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sungho-yun/gapsim/internal/household"
	"github.com/sungho-yun/gapsim/internal/service"
)

type RunHandler struct {
	svc    *service.RunService
	export *service.ExportService
}

func NewRunHandler(svc *service.RunService, export *service.ExportService) *RunHandler {
	return &RunHandler{svc: svc, export: export}
}

func (h *RunHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.CreateRunInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	run, err := h.svc.Create(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, household.ErrTemplateNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrHouseholdMissing),
			errors.Is(err, service.ErrInvalidRunInput),
			errors.Is(err, service.ErrBadTickMinutes):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to create run")
		}
		return
	}

	writeJSON(w, http.StatusCreated, run)
}

func (h *RunHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	runs, err := h.svc.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (h *RunHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}

	report, err := h.svc.Status(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get run status")
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// Start kicks off the simulate pass and returns immediately; progress is
// polled via Status.
func (h *RunHandler) Start(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}

	run, err := h.svc.Start(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRunNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrRunNotStartable):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to start run")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, run)
}

func (h *RunHandler) Observe(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}

	run, err := h.svc.Observe(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRunNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrRunNotObservable):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to start observer pass")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, run)
}

// Export renders the finished run in the requested format: json (default),
// jsonl, or csv.
func (h *RunHandler) Export(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}

	ex, err := h.export.Build(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRunNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrExportNotReady),
			errors.Is(err, service.ErrIncompleteRecords):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to build export")
		}
		return
	}

	switch format {
	case "json":
		writeJSON(w, http.StatusOK, ex)
	case "jsonl":
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.WriteHeader(http.StatusOK)
		_ = h.export.WriteJSONL(ex, w)
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.WriteHeader(http.StatusOK)
		_ = h.export.WriteCSV(ex, w)
	default:
		writeError(w, http.StatusBadRequest, "unknown format (valid: json, jsonl, csv)")
	}
}

// runID parses the {id} URL parameter, writing the error response itself on
// failure.
func runID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return uuid.Nil, false
	}
	return id, true
}
