package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sungho-yun/gapsim/internal/domain"
	"github.com/sungho-yun/gapsim/internal/service"
)

type RecordHandler struct {
	svc    *service.RunService
	search *service.SearchService
}

func NewRecordHandler(svc *service.RunService, search *service.SearchService) *RecordHandler {
	return &RecordHandler{svc: svc, search: search}
}

// ListByRun returns a run's interaction records, narrowed by the optional
// person_id, cell, state, and tick query parameters.
func (h *RecordHandler) ListByRun(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}

	var filter domain.RecordFilter

	if personStr := r.URL.Query().Get("person_id"); personStr != "" {
		personID, err := uuid.Parse(personStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid person_id")
			return
		}
		filter.PersonID = &personID
	}
	if cellStr := r.URL.Query().Get("cell"); cellStr != "" {
		if !domain.ValidCell(cellStr) {
			writeError(w, http.StatusBadRequest, "invalid cell")
			return
		}
		cell := domain.Cell(cellStr)
		filter.Cell = &cell
	}
	if stateStr := r.URL.Query().Get("state"); stateStr != "" {
		if !domain.ValidCellState(stateStr) {
			writeError(w, http.StatusBadRequest, "invalid state")
			return
		}
		state := domain.CellState(stateStr)
		filter.State = &state
	}
	if tickStr := r.URL.Query().Get("tick"); tickStr != "" {
		tick, err := strconv.Atoi(tickStr)
		if err != nil || tick < 0 {
			writeError(w, http.StatusBadRequest, "invalid tick")
			return
		}
		filter.Tick = &tick
	}

	records, err := h.svc.Records(r.Context(), id, filter)
	if err != nil {
		if errors.Is(err, service.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to list records")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"records": records, "count": len(records)})
}

func (h *RecordHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid record id")
		return
	}

	rec, err := h.svc.Record(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get record")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// Search finds records whose issued command is semantically closest to the
// query parameter.
func (h *RecordHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")

	limit := 10
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n <= 0 || n > 100 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	results, err := h.search.Search(r.Context(), query, limit)
	if err != nil {
		if errors.Is(err, service.ErrSearchQueryEmpty) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results, "count": len(results)})
}

// Backfill embeds the run's issued commands so they become searchable.
func (h *RecordHandler) Backfill(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}

	embedded, err := h.search.Backfill(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "embedding backfill failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"embedded": embedded})
}
