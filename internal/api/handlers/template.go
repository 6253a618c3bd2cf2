package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sungho-yun/gapsim/internal/household"
)

// TemplateHandler serves the household templates available on disk, so
// clients can discover what a run may be created from.
type TemplateHandler struct {
	dir string
}

func NewTemplateHandler(dir string) *TemplateHandler {
	return &TemplateHandler{dir: dir}
}

func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	names, err := household.List(h.dir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list templates")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"templates": names})
}

func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	tmpl, err := household.LoadByName(h.dir, name)
	if err != nil {
		if errors.Is(err, household.ErrTemplateNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, tmpl)
}
