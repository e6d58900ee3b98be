// Package form holds form and field definitions plus the validation
// engine that gates the submission pipeline.
package form

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FieldType is the closed set of supported field types.
type FieldType string

const (
	TypeText     FieldType = "text"
	TypeTextarea FieldType = "textarea"
	TypeEmail    FieldType = "email"
	TypeNumber   FieldType = "number"
	TypeDate     FieldType = "date"
	TypePhone    FieldType = "phone"
	TypeSelect   FieldType = "select"
	TypeRadio    FieldType = "radio"
	TypeCheckbox FieldType = "checkbox"
	TypeFile     FieldType = "file"
	TypeCaptcha  FieldType = "captcha"
	TypeUTM      FieldType = "utm"
	TypeSubmit   FieldType = "submit"
	TypeHidden   FieldType = "hidden"
	TypeHTML     FieldType = "html"
	TypeDivider  FieldType = "divider"
)

var validTypes = map[FieldType]bool{
	TypeText: true, TypeTextarea: true, TypeEmail: true, TypeNumber: true,
	TypeDate: true, TypePhone: true, TypeSelect: true, TypeRadio: true,
	TypeCheckbox: true, TypeFile: true, TypeCaptcha: true, TypeUTM: true,
	TypeSubmit: true, TypeHidden: true, TypeHTML: true, TypeDivider: true,
}

// IsLayout reports whether the type renders chrome only and never carries
// a submitted value.
func (t FieldType) IsLayout() bool {
	return t == TypeSubmit || t == TypeHTML || t == TypeDivider
}

// IsInput reports whether the pipeline validates and stores a value for
// this type. Captcha is validated but not stored.
func (t FieldType) IsInput() bool {
	return !t.IsLayout()
}

// Field is a single form field. Identity is the field id; mappings and
// submissions key on it, so it never changes after creation.
type Field struct {
	ID       uuid.UUID `json:"id"`
	Type     FieldType `json:"type"`
	Label    string    `json:"label"`
	Required bool      `json:"required"`

	// Type-specific options: choices for select/radio/checkbox, the
	// challenge expression for captcha, the parameter name for utm.
	Options []string `json:"options,omitempty"`

	// Validation constraints. Zero values mean unconstrained.
	MinLength   int      `json:"min_length,omitempty"`
	MaxLength   int      `json:"max_length,omitempty"`
	Min         *float64 `json:"min,omitempty"`
	Max         *float64 `json:"max,omitempty"`
	FileTypes   []string `json:"file_types,omitempty"`
	MaxFileSize int64    `json:"max_file_size,omitempty"`

	// ErrorMessage overrides the type-default validation message.
	ErrorMessage string `json:"error_message,omitempty"`
}

// NewField constructs a field with a fresh id, validating the type.
func NewField(t FieldType, label string) (Field, error) {
	if !validTypes[t] {
		return Field{}, fmt.Errorf("unknown field type %q", t)
	}
	return Field{ID: uuid.New(), Type: t, Label: label}, nil
}

// Validate checks structural consistency of a field descriptor.
func (f Field) Validate() error {
	if f.ID == uuid.Nil {
		return fmt.Errorf("field has no id")
	}
	if !validTypes[f.Type] {
		return fmt.Errorf("unknown field type %q", f.Type)
	}
	if (f.Type == TypeSelect || f.Type == TypeRadio) && len(f.Options) == 0 {
		return fmt.Errorf("field %q: %s fields need at least one option", f.Label, f.Type)
	}
	if f.MinLength < 0 || f.MaxLength < 0 || (f.MaxLength > 0 && f.MinLength > f.MaxLength) {
		return fmt.Errorf("field %q: invalid length bounds", f.Label)
	}
	if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
		return fmt.Errorf("field %q: min above max", f.Label)
	}
	return nil
}

// Provider identifies an external marketing platform.
type Provider string

const (
	ProviderMailchimp Provider = "mailchimp"
	ProviderHubSpot   Provider = "hubspot"
)

// IntegrationToggle is the per-form integration switch plus its target.
type IntegrationToggle struct {
	Enabled     bool   `json:"enabled"`
	Target      string `json:"target"` // audience id (Mailchimp) or object type (HubSpot)
	DoubleOptIn bool   `json:"double_opt_in,omitempty"`
}

// Settings carries per-form behavior: response messages, notification
// email, and integration toggles.
type Settings struct {
	SuccessMessage string                         `json:"success_message"`
	ErrorMessage   string                         `json:"error_message"`
	RedirectURL    string                         `json:"redirect_url,omitempty"`
	NotifyEmails   []string                       `json:"notify_emails,omitempty"`
	NotifySubject  string                         `json:"notify_subject,omitempty"`
	NotifyTemplate string                         `json:"notify_template,omitempty"`
	Integrations   map[Provider]IntegrationToggle `json:"integrations,omitempty"`
}

// DefaultSettings returns the settings applied to a newly created form.
func DefaultSettings() Settings {
	return Settings{
		SuccessMessage: "Thanks! Your submission has been received.",
		ErrorMessage:   "Please correct the errors below.",
		NotifySubject:  "New submission on {form_name}",
		NotifyTemplate: "{all_fields}\n\nSubmitted {submission_date} from {ip_address}",
	}
}

// Form is a form definition with its ordered fields.
type Form struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Fields    []Field   `json:"fields"`
	Settings  Settings  `json:"settings"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New constructs an empty form with default settings.
func New(name string) (*Form, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("form name is required")
	}
	return &Form{
		ID:       uuid.New(),
		Name:     name,
		Settings: DefaultSettings(),
	}, nil
}

// FieldByID returns the field with the given id, if present.
func (f *Form) FieldByID(id uuid.UUID) (Field, bool) {
	for _, fld := range f.Fields {
		if fld.ID == id {
			return fld, true
		}
	}
	return Field{}, false
}

// InputFields returns the fields the pipeline validates, in order.
func (f *Form) InputFields() []Field {
	out := make([]Field, 0, len(f.Fields))
	for _, fld := range f.Fields {
		if fld.Type.IsInput() {
			out = append(out, fld)
		}
	}
	return out
}

// IntegrationEnabled reports whether the provider is switched on for this
// form and returns its toggle.
func (f *Form) IntegrationEnabled(p Provider) (IntegrationToggle, bool) {
	t, ok := f.Settings.Integrations[p]
	if !ok || !t.Enabled {
		return IntegrationToggle{}, false
	}
	return t, true
}
