package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/newthinker/perftrack/internal/api/response"
	"github.com/newthinker/perftrack/internal/core"
	"github.com/newthinker/perftrack/internal/storage/archive"
)

// PerformanceHandler serves the last published performance summary.
type PerformanceHandler struct {
	archive archive.Storage
	path    string
}

// NewPerformanceHandler creates a handler reading the summary at path.
func NewPerformanceHandler(storage archive.Storage, path string) *PerformanceHandler {
	return &PerformanceHandler{archive: storage, path: path}
}

// Get returns the summary document as written by the last run.
func (h *PerformanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	data, err := h.archive.Read(r.Context(), h.path)
	if errors.Is(err, archive.ErrNotExist) {
		response.Fail(w, core.WrapError(core.ErrNoData, fmt.Errorf("no summary published yet")))
		return
	}
	if err != nil {
		response.Fail(w, core.WrapError(core.ErrStorageFailed, err))
		return
	}
	if !json.Valid(data) {
		response.Fail(w, core.WrapError(core.ErrStorageFailed, fmt.Errorf("summary %s is not valid JSON", h.path)))
		return
	}

	response.JSON(w, http.StatusOK, json.RawMessage(data))
}
