package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/matthewbaird/casedesk/internal/activity"
)

// ActivityHandler serves the recent activity feed.
type ActivityHandler struct {
	store  activity.Store
	logger *zap.Logger
}

// NewActivityHandler creates an ActivityHandler.
func NewActivityHandler(store activity.Store, logger *zap.Logger) *ActivityHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityHandler{store: store, logger: logger}
}

// Search handles GET /v1/activity?q=&entity_type=&since=&categories=&limit=.
func (h *ActivityHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := activity.DefaultSearchOptions()
	opts.EntityType = q.Get("entity_type")
	opts.Categories = splitList(q.Get("categories"))
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.Limit = n
		}
	}
	since, ok := parseTime(w, r, "since")
	if !ok {
		return
	}
	opts.Since = since

	entries, total, err := h.store.Search(r.Context(), q.Get("q"), opts)
	if err != nil {
		h.logger.Error("activity search failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	if entries == nil {
		entries = []activity.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries":     entries,
		"total_count": total,
	})
}

// ForEntity returns a handler listing the activity of one entity of the
// given type; the id comes from the {id} URL parameter.
func (h *ActivityHandler) ForEntity(entityType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		opts := activity.DefaultQueryOptions()
		opts.Categories = splitList(q.Get("categories"))
		opts.Cursor = q.Get("cursor")
		if v := q.Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				opts.Limit = min(n, 500)
			}
		}
		since, ok := parseTime(w, r, "since")
		if !ok {
			return
		}
		until, ok := parseTime(w, r, "until")
		if !ok {
			return
		}
		opts.Since, opts.Until = since, until

		entries, next, total, err := h.store.QueryByEntity(r.Context(), entityType, chi.URLParam(r, "id"), opts)
		if err != nil {
			h.logger.Error("activity query failed", zap.String("entity_type", entityType), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
			return
		}
		if entries == nil {
			entries = []activity.Entry{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"entries":     entries,
			"next_cursor": next,
			"total_count": total,
		})
	}
}

// SummaryFor returns a handler condensing one entity's activity over
// ?since= and ?until= (default: the last 30 days).
func (h *ActivityHandler) SummaryFor(entityType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		since, ok := parseTime(w, r, "since")
		if !ok {
			return
		}
		until, ok := parseTime(w, r, "until")
		if !ok {
			return
		}
		end := time.Now()
		if until != nil {
			end = *until
		}
		start := end.Add(-30 * 24 * time.Hour)
		if since != nil {
			start = *since
		}

		id := chi.URLParam(r, "id")
		opts := activity.DefaultQueryOptions()
		opts.Since, opts.Until = &start, &end
		opts.Limit = 500
		entries, _, _, err := h.store.QueryByEntity(r.Context(), entityType, id, opts)
		if err != nil {
			h.logger.Error("activity query failed", zap.String("entity_type", entityType), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, activity.Summarize(entries, entityType, id, start, end, activity.DefaultAlertRules))
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func parseTime(w http.ResponseWriter, r *http.Request, param string) (*time.Time, bool) {
	v := r.URL.Query().Get(param)
	if v == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		writeBadRequest(w, r, "INVALID_"+strings.ToUpper(param), "bad_request")
		return nil, false
	}
	return &t, true
}
