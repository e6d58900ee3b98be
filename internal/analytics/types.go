// Package analytics records form and integration activity as an
// append-only event stream and serves aggregate views over it.
package analytics

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Event types recorded by the pipeline, dispatcher, and webhook receiver.
const (
	EventSubmission     = "submission"
	EventDispatchSent   = "dispatch_sent"
	EventDispatchFailed = "dispatch_failed"
	EventSubscribe      = "subscribe"
	EventUnsubscribe    = "unsubscribe"
	EventCleaned        = "cleaned"
	EventProfile        = "profile"
	EventEmailChanged   = "upemail"
	EventCampaign       = "campaign"
)

// Event is one append-only activity record. FormID is uuid.Nil for
// provider-originated events that carry no form context.
type Event struct {
	ID         uuid.UUID      `json:"id"`
	FormID     uuid.UUID      `json:"form_id,omitempty"`
	AudienceID string         `json:"audience_id,omitempty"`
	Email      string         `json:"email,omitempty"`
	EventType  string         `json:"event_type"`
	Payload    map[string]any `json:"payload,omitempty"`
	IP         string         `json:"ip,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Query scopes an aggregate or export. Zero values mean unfiltered.
type Query struct {
	FormID     uuid.UUID
	AudienceID string
	Since      time.Time
	Until      time.Time
}

// Overview is the cached aggregate view.
type Overview struct {
	Totals         map[string]int `json:"totals"`
	Submissions    int            `json:"submissions"`
	Dispatched     int            `json:"dispatched"`
	ConversionRate float64        `json:"conversion_rate"`
	RecentActivity []*Event       `json:"recent_activity"`
	GeneratedAt    time.Time      `json:"generated_at"`
}

// ConversionRate is the percentage of submissions that reached a
// provider, clamped to [0,100] and rounded to two decimals. Zero
// submissions yields zero rather than NaN.
func ConversionRate(dispatched, submissions int) float64 {
	if submissions <= 0 {
		return 0
	}
	rate := 100 * float64(dispatched) / float64(submissions)
	if rate < 0 {
		rate = 0
	}
	if rate > 100 {
		rate = 100
	}
	return math.Round(rate*100) / 100
}
