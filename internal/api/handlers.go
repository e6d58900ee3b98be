// Package api exposes the admin and public HTTP surface: form
// management, submissions, integrations, analytics, and webhooks.
package api

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ignite/formbridge/internal/analytics"
	"github.com/ignite/formbridge/internal/form"
	"github.com/ignite/formbridge/internal/integration"
	"github.com/ignite/formbridge/internal/integration/hubspot"
	"github.com/ignite/formbridge/internal/integration/mailchimp"
	"github.com/ignite/formbridge/internal/pkg/httputil"
	"github.com/ignite/formbridge/internal/pkg/logger"
	"github.com/ignite/formbridge/internal/submission"
)

// FormStore is the form persistence the handlers drive.
type FormStore interface {
	Create(ctx context.Context, f *form.Form) error
	Get(ctx context.Context, id uuid.UUID) (*form.Form, error)
	List(ctx context.Context) ([]*form.Form, error)
	Update(ctx context.Context, f *form.Form) error
	Delete(ctx context.Context, id uuid.UUID) error
	Duplicate(ctx context.Context, id uuid.UUID) (*form.Form, error)
	SaveField(ctx context.Context, formID uuid.UUID, fld form.Field) error
	DeleteField(ctx context.Context, formID, fieldID uuid.UUID) error
	Reorder(ctx context.Context, formID uuid.UUID, order []uuid.UUID) error
}

// SubmissionStore is the submission admin persistence.
type SubmissionStore interface {
	Get(ctx context.Context, id uuid.UUID) (*submission.Submission, error)
	List(ctx context.Context, formID uuid.UUID, status submission.Status, limit, offset int) ([]*submission.Submission, error)
	SetStatus(ctx context.Context, id uuid.UUID, status submission.Status) error
	Delete(ctx context.Context, id uuid.UUID) error
	BulkDelete(ctx context.Context, ids []uuid.UUID) (int64, error)
}

// Submitter runs the public submission pipeline.
type Submitter interface {
	Submit(ctx context.Context, formID uuid.UUID, raw map[string]string, meta submission.Meta) (*submission.Result, error)
}

// IntegrationStore persists mappings and provider credentials.
type IntegrationStore interface {
	SaveMapping(ctx context.Context, m *integration.FieldMapping) error
	GetMapping(ctx context.Context, formID uuid.UUID, provider form.Provider) (*integration.FieldMapping, error)
	SaveSettings(ctx context.Context, st *integration.Settings) error
	GetSettings(ctx context.Context, provider form.Provider) (*integration.Settings, error)
}

// AnalyticsService serves aggregate views and exports.
type AnalyticsService interface {
	Overview(ctx context.Context, q analytics.Query) (*analytics.Overview, error)
	ExportCSV(ctx context.Context, w io.Writer, q analytics.Query) error
}

// AudienceCatalog lists Mailchimp audiences and their merge fields.
type AudienceCatalog interface {
	Audiences(ctx context.Context) ([]mailchimp.Audience, error)
	MergeFields(ctx context.Context, audienceID string) ([]mailchimp.MergeField, error)
}

// PropertyCatalog lists HubSpot properties per object type.
type PropertyCatalog interface {
	Properties(ctx context.Context, objectType string) ([]hubspot.Property, error)
}

// ConnectorRegistry resolves provider connectors, preferring admin-saved
// credentials over boot configuration. Refresh drops a cached connector
// after its credentials change.
type ConnectorRegistry interface {
	integration.ConnectorSource
	Refresh(provider form.Provider)
}

// Deps bundles everything the handlers need. Wiring happens in
// cmd/server; tests swap in fakes per dependency.
type Deps struct {
	Forms        FormStore
	Submissions  SubmissionStore
	Pipeline     Submitter
	Integrations IntegrationStore
	Analytics    AnalyticsService
	Connectors   ConnectorRegistry
}

// Handlers holds all HTTP handlers for the API.
type Handlers struct {
	deps Deps
	log  *logger.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(deps Deps) *Handlers {
	return &Handlers{deps: deps, log: logger.Component("api")}
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

// urlUUID parses a uuid path parameter, writing a 400 on failure.
func urlUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		httputil.BadRequest(w, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// storeError maps persistence failures onto the response envelope.
func storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, form.ErrNotFound) || errors.Is(err, submission.ErrNotFound) ||
		errors.Is(err, integration.ErrNotFound) {
		httputil.NotFound(w, "not found")
		return
	}
	httputil.InternalError(w, err)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
