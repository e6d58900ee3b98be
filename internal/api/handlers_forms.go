package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/ignite/formbridge/internal/form"
	"github.com/ignite/formbridge/internal/pkg/httputil"
)

type formPayload struct {
	Name     string         `json:"name"`
	Settings *form.Settings `json:"settings,omitempty"`
	Fields   []form.Field   `json:"fields,omitempty"`
}

// CreateForm creates a form, optionally with an initial field set.
func (h *Handlers) CreateForm(w http.ResponseWriter, r *http.Request) {
	var payload formPayload
	if !httputil.Decode(w, r, &payload) {
		return
	}

	f, err := form.New(payload.Name)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if payload.Settings != nil {
		f.Settings = *payload.Settings
	}
	for i := range payload.Fields {
		if payload.Fields[i].ID == uuid.Nil {
			payload.Fields[i].ID = uuid.New()
		}
		if err := payload.Fields[i].Validate(); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
	}
	f.Fields = payload.Fields

	if err := h.deps.Forms.Create(r.Context(), f); err != nil {
		httputil.InternalError(w, err)
		return
	}
	h.log.Info("form created", "form_id", f.ID, "name", f.Name)
	httputil.Created(w, f)
}

// GetForm returns one form with its fields.
func (h *Handlers) GetForm(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "formID")
	if !ok {
		return
	}
	f, err := h.deps.Forms.Get(r.Context(), id)
	if err != nil {
		storeError(w, err)
		return
	}
	httputil.OK(w, f)
}

// ListForms returns all forms.
func (h *Handlers) ListForms(w http.ResponseWriter, r *http.Request) {
	forms, err := h.deps.Forms.List(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, forms)
}

// UpdateForm renames a form and replaces its settings.
func (h *Handlers) UpdateForm(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "formID")
	if !ok {
		return
	}
	var payload formPayload
	if !httputil.Decode(w, r, &payload) {
		return
	}

	f, err := h.deps.Forms.Get(r.Context(), id)
	if err != nil {
		storeError(w, err)
		return
	}
	if payload.Name != "" {
		f.Name = payload.Name
	}
	if payload.Settings != nil {
		f.Settings = *payload.Settings
	}

	if err := h.deps.Forms.Update(r.Context(), f); err != nil {
		storeError(w, err)
		return
	}
	httputil.OK(w, f)
}

// DeleteForm removes a form with its fields, submissions, and mappings.
func (h *Handlers) DeleteForm(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "formID")
	if !ok {
		return
	}
	if err := h.deps.Forms.Delete(r.Context(), id); err != nil {
		storeError(w, err)
		return
	}
	h.log.Info("form deleted", "form_id", id)
	httputil.OK(w, map[string]string{"deleted": id.String()})
}

// DuplicateForm copies a form with fresh field ids.
func (h *Handlers) DuplicateForm(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "formID")
	if !ok {
		return
	}
	copy, err := h.deps.Forms.Duplicate(r.Context(), id)
	if err != nil {
		storeError(w, err)
		return
	}
	httputil.Created(w, copy)
}

// SaveField adds or replaces one field on a form.
func (h *Handlers) SaveField(w http.ResponseWriter, r *http.Request) {
	formID, ok := urlUUID(w, r, "formID")
	if !ok {
		return
	}
	var fld form.Field
	if !httputil.Decode(w, r, &fld) {
		return
	}
	if fld.ID == uuid.Nil {
		fld.ID = uuid.New()
	}
	if err := fld.Validate(); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := h.deps.Forms.SaveField(r.Context(), formID, fld); err != nil {
		storeError(w, err)
		return
	}
	httputil.OK(w, fld)
}

// DeleteField removes one field from a form.
func (h *Handlers) DeleteField(w http.ResponseWriter, r *http.Request) {
	formID, ok := urlUUID(w, r, "formID")
	if !ok {
		return
	}
	fieldID, ok := urlUUID(w, r, "fieldID")
	if !ok {
		return
	}
	if err := h.deps.Forms.DeleteField(r.Context(), formID, fieldID); err != nil {
		storeError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"deleted": fieldID.String()})
}

// ReorderFields applies a new field order.
func (h *Handlers) ReorderFields(w http.ResponseWriter, r *http.Request) {
	formID, ok := urlUUID(w, r, "formID")
	if !ok {
		return
	}
	var payload struct {
		Order []uuid.UUID `json:"order"`
	}
	if !httputil.Decode(w, r, &payload) {
		return
	}
	if len(payload.Order) == 0 {
		httputil.BadRequest(w, "order is required")
		return
	}
	if err := h.deps.Forms.Reorder(r.Context(), formID, payload.Order); err != nil {
		storeError(w, err)
		return
	}
	httputil.OK(w, map[string]int{"reordered": len(payload.Order)})
}
