package integration

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/ignite/formbridge/internal/form"
	"github.com/ignite/formbridge/internal/pkg/logger"
	"github.com/ignite/formbridge/internal/submission"
)

// MappingLoader resolves the stored field mapping for a (form, provider)
// pair. A missing mapping is not an error: dispatch falls back to the
// email heuristic alone.
type MappingLoader interface {
	GetMapping(ctx context.Context, formID uuid.UUID, provider form.Provider) (*FieldMapping, error)
}

// Recorder receives the outcome of every dispatch attempt.
type Recorder interface {
	RecordDispatch(ctx context.Context, formID uuid.UUID, attempt Attempt, email string)
}

// Dispatcher pushes stored submissions to every integration enabled on
// their form. It is a pipeline listener: a failed push is logged and
// recorded, never propagated, since the submission is already stored.
type Dispatcher struct {
	mappings   MappingLoader
	connectors ConnectorSource
	recorder   Recorder
	log        *logger.Logger
}

// NewDispatcher creates a dispatcher resolving connectors through the
// given source.
func NewDispatcher(mappings MappingLoader, recorder Recorder, connectors ConnectorSource) *Dispatcher {
	return &Dispatcher{
		mappings:   mappings,
		connectors: connectors,
		recorder:   recorder,
		log:        logger.Component("dispatcher"),
	}
}

// OnSubmissionCreated dispatches the submission to each enabled provider.
// An enabled provider without usable credentials records a failed
// attempt instead of being skipped.
func (d *Dispatcher) OnSubmissionCreated(ctx context.Context, f *form.Form, sub *submission.Submission) {
	for provider, toggle := range f.Settings.Integrations {
		if !toggle.Enabled {
			continue
		}
		attempt, email := d.dispatch(ctx, f, provider, toggle, sub.Values)

		if d.recorder != nil {
			d.recorder.RecordDispatch(ctx, f.ID, attempt, email)
		}
		if attempt.Status == StatusSent {
			d.log.Info("dispatch sent",
				"form_id", f.ID, "provider", provider, "target", attempt.Target, "email", email)
		} else {
			d.log.Warn("dispatch failed",
				"form_id", f.ID, "provider", provider, "target", attempt.Target,
				"category", attempt.Category, "error", attempt.Message)
		}
	}
}

// dispatch performs the single synchronous attempt for one provider:
// pending → sent | failed(category).
func (d *Dispatcher) dispatch(ctx context.Context, f *form.Form, provider form.Provider, toggle form.IntegrationToggle, values map[string]string) (Attempt, string) {
	attempt := Attempt{Provider: provider, Target: toggle.Target, Status: StatusPending}

	connector, err := d.connectors.Connector(ctx, provider)
	if err != nil {
		attempt.Status = StatusFailed
		attempt.Category, attempt.Message = Classify(err)
		return attempt, ""
	}

	var mapping map[string]string
	if d.mappings != nil {
		m, err := d.mappings.GetMapping(ctx, f.ID, provider)
		switch {
		case err == nil && m != nil:
			mapping = m.Mapping
			if attempt.Target == "" {
				attempt.Target = m.Target
			}
		case err != nil && !errors.Is(err, ErrNotFound):
			d.log.Warn("mapping load failed, dispatching with email heuristic only",
				"form_id", f.ID, "provider", provider, "error", err)
		}
	}

	props, email := ApplyMapping(f, mapping, values)
	if email == "" {
		// Required external identity missing: fail before any network call.
		attempt.Status = StatusFailed
		attempt.Category = CategoryValidation
		attempt.Message = "no email value resolved from mapping or submission"
		return attempt, ""
	}

	err = connector.Push(ctx, PushRequest{
		Target:      attempt.Target,
		Email:       email,
		Properties:  props,
		DoubleOptIn: toggle.DoubleOptIn,
	})
	if err != nil {
		attempt.Status = StatusFailed
		attempt.Category, attempt.Message = Classify(err)
		return attempt, email
	}

	attempt.Status = StatusSent
	return attempt, email
}
