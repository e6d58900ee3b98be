package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/ignite/formbridge/internal/pkg/httputil"
	"github.com/ignite/formbridge/internal/submission"
)

// SubmitForm is the public intake endpoint. Validation failures come
// back as a 200 with per-field messages; only transport and storage
// problems surface as HTTP errors.
func (h *Handlers) SubmitForm(w http.ResponseWriter, r *http.Request) {
	formID, ok := urlUUID(w, r, "formID")
	if !ok {
		return
	}
	var values map[string]string
	if !httputil.Decode(w, r, &values) {
		return
	}

	meta := submission.Meta{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	}
	result, err := h.deps.Pipeline.Submit(r.Context(), formID, values, meta)
	if err != nil {
		storeError(w, err)
		return
	}
	if len(result.FieldErrors) > 0 {
		httputil.ValidationFailed(w, result.FieldErrors)
		return
	}
	httputil.OK(w, map[string]string{"submission_id": result.Submission.ID.String()})
}

// ListSubmissions pages through a form's submissions.
func (h *Handlers) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	formID, ok := urlUUID(w, r, "formID")
	if !ok {
		return
	}

	status := submission.Status(r.URL.Query().Get("status"))
	if status != "" && !submission.ValidStatus(status) {
		httputil.BadRequest(w, "unknown status")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	subs, err := h.deps.Submissions.List(r.Context(), formID, status, limit, offset)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, subs)
}

// GetSubmission returns one submission.
func (h *Handlers) GetSubmission(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "submissionID")
	if !ok {
		return
	}
	sub, err := h.deps.Submissions.Get(r.Context(), id)
	if err != nil {
		storeError(w, err)
		return
	}
	httputil.OK(w, sub)
}

// SetSubmissionStatus tags a submission (new, read, replied, spam).
func (h *Handlers) SetSubmissionStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "submissionID")
	if !ok {
		return
	}
	var payload struct {
		Status submission.Status `json:"status"`
	}
	if !httputil.Decode(w, r, &payload) {
		return
	}
	if !submission.ValidStatus(payload.Status) {
		httputil.BadRequest(w, "unknown status")
		return
	}
	if err := h.deps.Submissions.SetStatus(r.Context(), id, payload.Status); err != nil {
		storeError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": string(payload.Status)})
}

// DeleteSubmission removes one submission.
func (h *Handlers) DeleteSubmission(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "submissionID")
	if !ok {
		return
	}
	if err := h.deps.Submissions.Delete(r.Context(), id); err != nil {
		storeError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"deleted": id.String()})
}

// BulkDeleteSubmissions removes a batch of submissions.
func (h *Handlers) BulkDeleteSubmissions(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		IDs []uuid.UUID `json:"ids"`
	}
	if !httputil.Decode(w, r, &payload) {
		return
	}
	if len(payload.IDs) == 0 {
		httputil.BadRequest(w, "ids is required")
		return
	}
	n, err := h.deps.Submissions.BulkDelete(r.Context(), payload.IDs)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]int64{"deleted": n})
}
