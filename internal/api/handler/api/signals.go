package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/newthinker/perftrack/internal/api/response"
	"github.com/newthinker/perftrack/internal/core"
	"github.com/newthinker/perftrack/internal/storage/signal"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// SignalsHandler handles signal-related API requests.
type SignalsHandler struct {
	store signal.Store
}

// NewSignalsHandler creates a new signals handler.
func NewSignalsHandler(store signal.Store) *SignalsHandler {
	return &SignalsHandler{store: store}
}

// parseFilter builds a ListFilter from query parameters.
func parseFilter(r *http.Request) (signal.ListFilter, error) {
	q := r.URL.Query()

	filter := signal.ListFilter{
		Universe: core.Universe(q.Get("universe")),
		Strategy: q.Get("strategy"),
		Ticker:   strings.ToUpper(q.Get("ticker")),
		Limit:    defaultLimit,
	}

	if status := q.Get("status"); status != "" {
		s := core.TradeStatus(strings.ToUpper(status))
		switch s {
		case core.StatusPending, core.StatusActive, core.StatusClosed:
			filter.Status = s
		default:
			return filter, core.WrapError(core.ErrInvalidQuery, fmt.Errorf("status %q", status))
		}
	}

	for name, dst := range map[string]*string{"from": &filter.From, "to": &filter.To} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		if _, err := core.ParseDay(v); err != nil {
			return filter, core.WrapError(core.ErrInvalidQuery, fmt.Errorf("%s must be YYYY-MM-DD, got %q", name, v))
		}
		*dst = v
	}

	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			return filter, core.WrapError(core.ErrInvalidQuery, fmt.Errorf("limit %q", limit))
		}
		filter.Limit = min(n, maxLimit)
	}

	if offset := q.Get("offset"); offset != "" {
		n, err := strconv.Atoi(offset)
		if err != nil || n < 0 {
			return filter, core.WrapError(core.ErrInvalidQuery, fmt.Errorf("offset %q", offset))
		}
		filter.Offset = n
	}

	return filter, nil
}

// List returns signals matching query parameters.
func (h *SignalsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		response.Fail(w, err)
		return
	}

	signals, err := h.store.List(r.Context(), filter)
	if err != nil {
		response.Fail(w, err)
		return
	}

	count, err := h.store.Count(r.Context(), filter)
	if err != nil {
		response.Fail(w, err)
		return
	}

	response.Page(w, signals, count, filter.Limit, filter.Offset)
}

// GetByID returns a single signal by the {id} path value.
func (h *SignalsHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	sig, err := h.store.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		response.Fail(w, err)
		return
	}

	response.JSON(w, http.StatusOK, sig)
}
