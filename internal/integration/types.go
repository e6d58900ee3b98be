// Package integration maps stored submissions onto external marketing
// platform schemas and dispatches them through provider connectors.
package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/formbridge/internal/form"
)

// ErrorCategory classifies a failed dispatch attempt.
type ErrorCategory string

const (
	// CategoryAuth covers bad or missing credentials.
	CategoryAuth ErrorCategory = "auth"
	// CategoryValidation covers payloads the provider cannot accept,
	// detected before or after the call (missing required email, bad
	// merge field).
	CategoryValidation ErrorCategory = "validation"
	// CategoryNetwork covers transport failures and rate limiting,
	// treated uniformly as transient.
	CategoryNetwork ErrorCategory = "network"
	// CategoryApplication covers structured error bodies from the API.
	CategoryApplication ErrorCategory = "application"
)

// Error is a classified dispatch failure.
type Error struct {
	Category ErrorCategory
	Message  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

// Errorf builds a classified error.
func Errorf(cat ErrorCategory, format string, args ...any) *Error {
	return &Error{Category: cat, Message: fmt.Sprintf(format, args...)}
}

// Classify extracts the category from an error, defaulting to network
// for anything unclassified (transport-layer failures arrive raw).
func Classify(err error) (ErrorCategory, string) {
	if ie, ok := err.(*Error); ok {
		return ie.Category, ie.Message
	}
	return CategoryNetwork, err.Error()
}

// DispatchStatus is the state of one dispatch attempt:
// pending → sent | failed. There is exactly one synchronous attempt per
// submission and provider; the transport retries transient errors
// internally but the attempt itself never re-runs.
type DispatchStatus string

const (
	StatusPending DispatchStatus = "pending"
	StatusSent    DispatchStatus = "sent"
	StatusFailed  DispatchStatus = "failed"
)

// Attempt records the outcome of one dispatch.
type Attempt struct {
	Provider form.Provider  `json:"provider"`
	Target   string         `json:"target"`
	Status   DispatchStatus `json:"status"`
	Category ErrorCategory  `json:"category,omitempty"`
	Message  string         `json:"message,omitempty"`
}

// PushRequest is the provider-agnostic payload handed to a connector.
type PushRequest struct {
	// Target is the audience id (Mailchimp) or object type (HubSpot).
	Target string
	// Email is the contact identity; connectors require it.
	Email string
	// Properties are external-property-keyed values.
	Properties map[string]string
	// DoubleOptIn asks the provider to confirm before activating.
	DoubleOptIn bool
}

// Connector pushes one mapped payload to an external platform.
type Connector interface {
	Provider() form.Provider
	TestConnection(ctx context.Context) error
	Push(ctx context.Context, req PushRequest) error
}

// FieldMapping associates local field ids with external property names
// for one (form, provider) pair. Edited independently from the form;
// entries for deleted fields are harmless and skipped at dispatch.
type FieldMapping struct {
	FormID    uuid.UUID         `json:"form_id"`
	Provider  form.Provider     `json:"provider"`
	Target    string            `json:"target"`
	Mapping   map[string]string `json:"mapping"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Settings holds per-provider global credentials.
type Settings struct {
	Provider    form.Provider     `json:"provider"`
	Credentials map[string]string `json:"credentials"`
	UpdatedAt   time.Time         `json:"updated_at"`
}
