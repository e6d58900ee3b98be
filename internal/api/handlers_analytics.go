package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/formbridge/internal/analytics"
	"github.com/ignite/formbridge/internal/pkg/httputil"
)

// analyticsQuery parses the shared filter parameters.
func analyticsQuery(r *http.Request) (analytics.Query, error) {
	q := analytics.Query{AudienceID: r.URL.Query().Get("audience_id")}

	if raw := r.URL.Query().Get("form_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return q, fmt.Errorf("invalid form_id")
		}
		q.FormID = id
	}
	var err error
	if q.Since, err = parseDay(r.URL.Query().Get("since")); err != nil {
		return q, fmt.Errorf("invalid since")
	}
	if q.Until, err = parseDay(r.URL.Query().Get("until")); err != nil {
		return q, fmt.Errorf("invalid until")
	}
	return q, nil
}

// parseDay accepts a date or a full RFC3339 timestamp.
func parseDay(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

// AnalyticsOverview serves the cached aggregate view.
func (h *Handlers) AnalyticsOverview(w http.ResponseWriter, r *http.Request) {
	q, err := analyticsQuery(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	ov, err := h.deps.Analytics.Overview(r.Context(), q)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, ov)
}

// ExportAnalytics streams the filtered event log as a CSV download.
func (h *Handlers) ExportAnalytics(w http.ResponseWriter, r *http.Request) {
	q, err := analyticsQuery(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	filename := fmt.Sprintf("formbridge-analytics-%s.csv", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	if err := h.deps.Analytics.ExportCSV(r.Context(), w, q); err != nil {
		// headers are gone; log rather than write a second body
		h.log.Error("analytics export failed", "error", err.Error())
	}
}
