package submission

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/formbridge/internal/form"
	"github.com/ignite/formbridge/internal/pkg/logger"
)

// FormLoader resolves a form definition for validation.
type FormLoader interface {
	Get(ctx context.Context, id uuid.UUID) (*form.Form, error)
}

// Inserter persists an accepted submission.
type Inserter interface {
	Insert(ctx context.Context, sub *Submission) error
}

// Listener is notified after a submission is stored. Listener failures
// are logged and never undo the write: the submission's atomicity
// boundary ends at the insert.
type Listener interface {
	OnSubmissionCreated(ctx context.Context, f *form.Form, sub *Submission)
}

// Pipeline validates, stores, and fans out form submissions.
type Pipeline struct {
	forms     FormLoader
	store     Inserter
	listeners []Listener
	log       *logger.Logger
}

// NewPipeline creates a submission pipeline. Listeners run in the order
// given after each successful insert.
func NewPipeline(forms FormLoader, store Inserter, listeners ...Listener) *Pipeline {
	return &Pipeline{
		forms:     forms,
		store:     store,
		listeners: listeners,
		log:       logger.Component("pipeline"),
	}
}

// Result is the outcome of a submission attempt. FieldErrors is non-empty
// exactly when validation rejected the payload; nothing was persisted then.
type Result struct {
	Submission  *Submission
	FieldErrors map[string]string
}

// Submit runs the pipeline for one posted payload. The raw values map is
// keyed by field id. Unknown keys are dropped so that stored value keys
// are always a subset of the form's field set at submission time.
func (p *Pipeline) Submit(ctx context.Context, formID uuid.UUID, raw map[string]string, meta Meta) (*Result, error) {
	f, err := p.forms.Get(ctx, formID)
	if err != nil {
		return nil, fmt.Errorf("loading form: %w", err)
	}

	fieldErrors := map[string]string{}
	values := map[string]string{}

	for _, fld := range f.InputFields() {
		key := fld.ID.String()
		value := raw[key]
		if msg := form.ValidateValue(fld, value); msg != "" {
			fieldErrors[key] = msg
			continue
		}
		// Captcha answers are verified, not stored.
		if fld.Type == form.TypeCaptcha {
			continue
		}
		if value != "" {
			values[key] = value
		}
	}

	if len(fieldErrors) > 0 {
		return &Result{FieldErrors: fieldErrors}, nil
	}

	sub := &Submission{
		FormID:    f.ID,
		Values:    values,
		Status:    StatusNew,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
	}
	if err := p.store.Insert(ctx, sub); err != nil {
		return nil, fmt.Errorf("storing submission: %w", err)
	}

	for _, l := range p.listeners {
		p.notify(ctx, l, f, sub)
	}

	return &Result{Submission: sub}, nil
}

func (p *Pipeline) notify(ctx context.Context, l Listener, f *form.Form, sub *Submission) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("listener panicked", "form_id", f.ID, "submission_id", sub.ID, "panic", r)
		}
	}()
	l.OnSubmissionCreated(ctx, f, sub)
}
