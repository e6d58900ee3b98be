package analytics

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/formbridge/internal/form"
	"github.com/ignite/formbridge/internal/integration"
	"github.com/ignite/formbridge/internal/pkg/logger"
	"github.com/ignite/formbridge/internal/submission"
)

// exportLimit caps one CSV export.
const exportLimit = 10000

// EventStore is the persistence the aggregator reads and writes.
type EventStore interface {
	Record(ctx context.Context, ev *Event) error
	Totals(ctx context.Context, q Query) (map[string]int, error)
	Events(ctx context.Context, q Query, limit int) ([]*Event, error)
}

// Aggregator serves cached aggregate views and records activity from
// the submission pipeline, the dispatcher, and the webhook receiver.
type Aggregator struct {
	store       EventStore
	cache       Cache
	log         *logger.Logger
	recentLimit int
}

// NewAggregator wires an aggregator over a store and cache.
func NewAggregator(store EventStore, cache Cache, recentLimit int) *Aggregator {
	if cache == nil {
		cache = NoopCache{}
	}
	if recentLimit <= 0 {
		recentLimit = 50
	}
	return &Aggregator{
		store:       store,
		cache:       cache,
		log:         logger.Component("analytics"),
		recentLimit: recentLimit,
	}
}

// Record appends an event and expires cached overviews.
func (a *Aggregator) Record(ctx context.Context, ev *Event) error {
	if err := a.store.Record(ctx, ev); err != nil {
		return err
	}
	a.cache.Invalidate(ctx)
	return nil
}

// OnSubmissionCreated counts a stored submission. Runs as a pipeline
// listener after the insert; a failed count never surfaces to the visitor.
func (a *Aggregator) OnSubmissionCreated(ctx context.Context, f *form.Form, sub *submission.Submission) {
	err := a.Record(ctx, &Event{
		FormID:    f.ID,
		Email:     submittedEmail(f, sub),
		EventType: EventSubmission,
		Payload:   map[string]any{"field_count": len(sub.Values)},
		IP:        sub.IP,
	})
	if err != nil {
		a.log.Error("submission not counted", "form_id", f.ID, "error", err.Error())
	}
}

// RecordDispatch stores the outcome of one dispatch attempt.
func (a *Aggregator) RecordDispatch(ctx context.Context, formID uuid.UUID, attempt integration.Attempt, email string) {
	eventType := EventDispatchSent
	payload := map[string]any{"provider": string(attempt.Provider)}
	if attempt.Status == integration.StatusFailed {
		eventType = EventDispatchFailed
		payload["category"] = string(attempt.Category)
		payload["message"] = attempt.Message
	}
	err := a.Record(ctx, &Event{
		FormID:     formID,
		AudienceID: attempt.Target,
		Email:      email,
		EventType:  eventType,
		Payload:    payload,
	})
	if err != nil {
		a.log.Error("dispatch outcome not recorded",
			"form_id", formID, "provider", string(attempt.Provider), "error", err.Error())
	}
}

// Overview computes the aggregate view for a query, cache-first.
func (a *Aggregator) Overview(ctx context.Context, q Query) (*Overview, error) {
	if ov, ok := a.cache.GetOverview(ctx, q); ok {
		return ov, nil
	}

	totals, err := a.store.Totals(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("aggregating totals: %w", err)
	}
	recent, err := a.store.Events(ctx, q, a.recentLimit)
	if err != nil {
		return nil, fmt.Errorf("loading recent events: %w", err)
	}

	ov := &Overview{
		Totals:         totals,
		Submissions:    totals[EventSubmission],
		Dispatched:     totals[EventDispatchSent],
		RecentActivity: recent,
		GeneratedAt:    time.Now(),
	}
	ov.ConversionRate = ConversionRate(ov.Dispatched, ov.Submissions)

	a.cache.SetOverview(ctx, q, ov)
	return ov, nil
}

// ExportCSV streams events for the query as CSV.
func (a *Aggregator) ExportCSV(ctx context.Context, w io.Writer, q Query) error {
	events, err := a.store.Events(ctx, q, exportLimit)
	if err != nil {
		return fmt.Errorf("loading events: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Form ID", "Audience ID", "Email", "Event Type", "Event Data", "IP Address", "Date"}); err != nil {
		return err
	}
	for _, ev := range events {
		formID := ""
		if ev.FormID != uuid.Nil {
			formID = ev.FormID.String()
		}
		data := ""
		if len(ev.Payload) > 0 {
			encoded, err := json.Marshal(ev.Payload)
			if err != nil {
				return fmt.Errorf("encoding payload: %w", err)
			}
			data = string(encoded)
		}
		row := []string{
			formID,
			ev.AudienceID,
			ev.Email,
			ev.EventType,
			data,
			ev.IP,
			ev.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Prune applies the retention policy through the store, when the store
// supports it.
func (a *Aggregator) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	pruner, ok := a.store.(interface {
		Prune(ctx context.Context, olderThan time.Time) (int64, error)
	})
	if !ok {
		return 0, nil
	}
	n, err := pruner.Prune(ctx, olderThan)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		a.log.Info("pruned analytics events", "count", n)
		a.cache.Invalidate(ctx)
	}
	return n, nil
}

// submittedEmail pulls the first email-typed field value off a submission.
func submittedEmail(f *form.Form, sub *submission.Submission) string {
	for _, fld := range f.InputFields() {
		if fld.Type != form.TypeEmail {
			continue
		}
		if v := sub.Values[fld.ID.String()]; v != "" {
			return v
		}
	}
	return ""
}
