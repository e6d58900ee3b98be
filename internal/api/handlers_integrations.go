package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/formbridge/internal/form"
	"github.com/ignite/formbridge/internal/integration"
	"github.com/ignite/formbridge/internal/pkg/httputil"
)

func urlProvider(w http.ResponseWriter, r *http.Request) (form.Provider, bool) {
	p := form.Provider(chi.URLParam(r, "provider"))
	if p != form.ProviderMailchimp && p != form.ProviderHubSpot {
		httputil.BadRequest(w, "unknown provider")
		return "", false
	}
	return p, true
}

// SaveIntegrationSettings stores global provider credentials.
func (h *Handlers) SaveIntegrationSettings(w http.ResponseWriter, r *http.Request) {
	provider, ok := urlProvider(w, r)
	if !ok {
		return
	}
	var payload struct {
		Credentials map[string]string `json:"credentials"`
	}
	if !httputil.Decode(w, r, &payload) {
		return
	}
	st := &integration.Settings{Provider: provider, Credentials: payload.Credentials}
	if err := h.deps.Integrations.SaveSettings(r.Context(), st); err != nil {
		httputil.InternalError(w, err)
		return
	}
	if h.deps.Connectors != nil {
		h.deps.Connectors.Refresh(provider)
	}
	h.log.Info("integration settings saved", "provider", string(provider))
	httputil.OK(w, map[string]string{"provider": string(provider)})
}

// GetIntegrationSettings returns stored credentials with values masked.
func (h *Handlers) GetIntegrationSettings(w http.ResponseWriter, r *http.Request) {
	provider, ok := urlProvider(w, r)
	if !ok {
		return
	}
	st, err := h.deps.Integrations.GetSettings(r.Context(), provider)
	if err != nil {
		storeError(w, err)
		return
	}

	masked := make(map[string]string, len(st.Credentials))
	for k, v := range st.Credentials {
		masked[k] = maskCredential(v)
	}
	httputil.OK(w, map[string]any{
		"provider":    st.Provider,
		"credentials": masked,
		"updated_at":  st.UpdatedAt,
	})
}

// maskCredential keeps the last four characters for recognition.
func maskCredential(v string) string {
	if len(v) <= 4 {
		return "****"
	}
	return "****" + v[len(v)-4:]
}

// TestIntegration runs a live credential check against the provider.
func (h *Handlers) TestIntegration(w http.ResponseWriter, r *http.Request) {
	provider, ok := urlProvider(w, r)
	if !ok {
		return
	}
	conn, err := h.deps.Connectors.Connector(r.Context(), provider)
	if err != nil {
		category, message := integration.Classify(err)
		httputil.OK(w, map[string]any{
			"connected": false,
			"category":  category,
			"message":   message,
		})
		return
	}
	if err := conn.TestConnection(r.Context()); err != nil {
		category, message := integration.Classify(err)
		httputil.OK(w, map[string]any{
			"connected": false,
			"category":  category,
			"message":   message,
		})
		return
	}
	httputil.OK(w, map[string]any{"connected": true})
}

// audienceCatalog resolves the Mailchimp connector and narrows it to
// the catalog surface, writing a 400 when neither stored credentials
// nor boot config provide one.
func (h *Handlers) audienceCatalog(w http.ResponseWriter, r *http.Request) (AudienceCatalog, bool) {
	conn, err := h.deps.Connectors.Connector(r.Context(), form.ProviderMailchimp)
	if err != nil {
		httputil.BadRequest(w, "provider not configured")
		return nil, false
	}
	catalog, ok := conn.(AudienceCatalog)
	if !ok {
		httputil.BadRequest(w, "provider not configured")
		return nil, false
	}
	return catalog, true
}

// propertyCatalog is the HubSpot counterpart of audienceCatalog.
func (h *Handlers) propertyCatalog(w http.ResponseWriter, r *http.Request) (PropertyCatalog, bool) {
	conn, err := h.deps.Connectors.Connector(r.Context(), form.ProviderHubSpot)
	if err != nil {
		httputil.BadRequest(w, "provider not configured")
		return nil, false
	}
	catalog, ok := conn.(PropertyCatalog)
	if !ok {
		httputil.BadRequest(w, "provider not configured")
		return nil, false
	}
	return catalog, true
}

// ListAudiences returns the Mailchimp audiences for mapping UIs.
func (h *Handlers) ListAudiences(w http.ResponseWriter, r *http.Request) {
	catalog, ok := h.audienceCatalog(w, r)
	if !ok {
		return
	}
	audiences, err := catalog.Audiences(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, audiences)
}

// ListMergeFields returns the merge fields of one Mailchimp audience.
func (h *Handlers) ListMergeFields(w http.ResponseWriter, r *http.Request) {
	catalog, ok := h.audienceCatalog(w, r)
	if !ok {
		return
	}
	fields, err := catalog.MergeFields(r.Context(), chi.URLParam(r, "audienceID"))
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, fields)
}

// ListProperties returns HubSpot properties for one object type.
func (h *Handlers) ListProperties(w http.ResponseWriter, r *http.Request) {
	catalog, ok := h.propertyCatalog(w, r)
	if !ok {
		return
	}
	props, err := catalog.Properties(r.Context(), chi.URLParam(r, "objectType"))
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, props)
}

// GetMapping returns the stored field mapping for a (form, provider) pair.
func (h *Handlers) GetMapping(w http.ResponseWriter, r *http.Request) {
	formID, ok := urlUUID(w, r, "formID")
	if !ok {
		return
	}
	provider, ok := urlProvider(w, r)
	if !ok {
		return
	}
	m, err := h.deps.Integrations.GetMapping(r.Context(), formID, provider)
	if err != nil {
		storeError(w, err)
		return
	}
	httputil.OK(w, m)
}

// SaveMapping stores the field mapping for a (form, provider) pair.
func (h *Handlers) SaveMapping(w http.ResponseWriter, r *http.Request) {
	formID, ok := urlUUID(w, r, "formID")
	if !ok {
		return
	}
	provider, ok := urlProvider(w, r)
	if !ok {
		return
	}
	var payload struct {
		Target  string            `json:"target"`
		Mapping map[string]string `json:"mapping"`
	}
	if !httputil.Decode(w, r, &payload) {
		return
	}
	m := &integration.FieldMapping{
		FormID:   formID,
		Provider: provider,
		Target:   payload.Target,
		Mapping:  payload.Mapping,
	}
	if err := h.deps.Integrations.SaveMapping(r.Context(), m); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, m)
}

// SuggestMapping proposes a mapping from field labels. Advisory only;
// nothing is stored.
func (h *Handlers) SuggestMapping(w http.ResponseWriter, r *http.Request) {
	formID, ok := urlUUID(w, r, "formID")
	if !ok {
		return
	}
	objectType := r.URL.Query().Get("object_type")
	if objectType == "" {
		objectType = "contacts"
	}

	f, err := h.deps.Forms.Get(r.Context(), formID)
	if err != nil {
		storeError(w, err)
		return
	}
	suggested := integration.SuggestMapping(f.Fields, objectType)
	if suggested == nil {
		httputil.BadRequest(w, "unknown object type")
		return
	}
	httputil.OK(w, map[string]any{"object_type": objectType, "mapping": suggested})
}
