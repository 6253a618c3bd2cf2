package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sungho-yun/gapsim/internal/service"
)

type PersonHandler struct {
	svc *service.RunService
}

func NewPersonHandler(svc *service.RunService) *PersonHandler {
	return &PersonHandler{svc: svc}
}

func (h *PersonHandler) ListByRun(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}

	persons, err := h.svc.Persons(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to list persons")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"persons": persons})
}

func (h *PersonHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid person id")
		return
	}

	person, err := h.svc.Person(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrPersonNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get person")
		return
	}

	writeJSON(w, http.StatusOK, person)
}

// Memories returns the person's memory stream with decay weights. The
// optional as_of_tick parameter picks the viewpoint; default is the end of
// the person's schedule.
func (h *PersonHandler) Memories(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid person id")
		return
	}

	asOfTick := -1
	if tickStr := r.URL.Query().Get("as_of_tick"); tickStr != "" {
		n, err := strconv.Atoi(tickStr)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid as_of_tick")
			return
		}
		asOfTick = n
	}

	memories, err := h.svc.PersonMemories(r.Context(), id, asOfTick)
	if err != nil {
		if errors.Is(err, service.ErrPersonNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to list memories")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"memories": memories, "count": len(memories)})
}
