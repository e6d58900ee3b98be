// Package submission implements the submission pipeline: validate a
// posted payload against its form, persist the entry, then fan out to
// listeners (analytics, integrations, notification email).
package submission

import (
	"time"

	"github.com/google/uuid"
)

// Status tags a stored submission for the admin inbox.
type Status string

const (
	StatusNew     Status = "new"
	StatusRead    Status = "read"
	StatusReplied Status = "replied"
	StatusSpam    Status = "spam"
)

var validStatuses = map[Status]bool{
	StatusNew: true, StatusRead: true, StatusReplied: true, StatusSpam: true,
}

// ValidStatus reports whether s is a known status tag.
func ValidStatus(s Status) bool { return validStatuses[s] }

// Meta is client metadata captured with a submission.
type Meta struct {
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`
}

// Submission is one stored form entry. Values are keyed by field id and
// write-once; only the status tag changes afterwards.
type Submission struct {
	ID        uuid.UUID         `json:"id"`
	FormID    uuid.UUID         `json:"form_id"`
	Values    map[string]string `json:"values"`
	Status    Status            `json:"status"`
	IP        string            `json:"ip"`
	UserAgent string            `json:"user_agent"`
	CreatedAt time.Time         `json:"created_at"`
}
