// Package webhook receives provider event notifications and folds them
// into the subscriber mirror and the analytics stream.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/ignite/formbridge/internal/analytics"
	"github.com/ignite/formbridge/internal/form"
	"github.com/ignite/formbridge/internal/pkg/httputil"
	"github.com/ignite/formbridge/internal/pkg/logger"
	"github.com/ignite/formbridge/internal/subscriber"
)

// SignatureHeader carries the HMAC-SHA1 of the raw request body.
const SignatureHeader = "X-Webhook-Signature"

// maxBodySize caps inbound payloads at 1 MiB.
const maxBodySize = 1 << 20

// Mirror is the subscriber state the receiver updates.
type Mirror interface {
	Upsert(ctx context.Context, sub *subscriber.Subscriber) error
	UpdateStatus(ctx context.Context, email, audienceID string, provider form.Provider, status subscriber.Status) error
	Rekey(ctx context.Context, oldEmail, newEmail, audienceID string) error
}

// EventSink records webhook activity for the analytics overview.
type EventSink interface {
	Record(ctx context.Context, ev *analytics.Event) error
}

// Receiver verifies and processes inbound provider webhooks.
type Receiver struct {
	secret string
	mirror Mirror
	events EventSink
	log    *logger.Logger
}

// NewReceiver creates a webhook receiver. An empty secret disables
// signature verification.
func NewReceiver(secret string, mirror Mirror, events EventSink) *Receiver {
	return &Receiver{
		secret: secret,
		mirror: mirror,
		events: events,
		log:    logger.Component("webhook"),
	}
}

// envelope is the provider's {type, data} payload.
type envelope struct {
	Type    string    `json:"type"`
	FiredAt string    `json:"fired_at"`
	Data    eventData `json:"data"`
}

type eventData struct {
	Email      string         `json:"email"`
	ListID     string         `json:"list_id"`
	NewEmail   string         `json:"new_email"`
	OldEmail   string         `json:"old_email"`
	Reason     string         `json:"reason"`
	CampaignID string         `json:"id"`
	Subject    string         `json:"subject"`
	Merges     map[string]any `json:"merges"`
}

// HandleMailchimp processes one Mailchimp notification. The response is
// 200 once the envelope parses, regardless of handler outcome, so the
// provider does not redeliver events we merely failed to apply.
func (rc *Receiver) HandleMailchimp(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		httputil.BadRequest(w, "unreadable body")
		return
	}

	if rc.secret != "" && !rc.verify(body, r.Header.Get(SignatureHeader)) {
		rc.log.Warn("webhook signature mismatch", "remote", r.RemoteAddr)
		httputil.Denied(w)
		return
	}

	var ev envelope
	if err := json.Unmarshal(body, &ev); err != nil {
		httputil.BadRequest(w, "invalid JSON payload")
		return
	}
	if ev.Type == "" {
		httputil.BadRequest(w, "missing event type")
		return
	}

	if err := rc.handle(r.Context(), ev, clientIP(r)); err != nil {
		rc.log.Error("webhook event not applied",
			"type", ev.Type, "audience", ev.Data.ListID, "error", err.Error())
	}
	httputil.OK(w, map[string]string{"received": ev.Type})
}

// verify checks the base64 HMAC-SHA1 signature in constant time.
func (rc *Receiver) verify(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(rc.secret, body)), []byte(signature))
}

// Sign computes the signature for a payload, shared with senders and tests.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (rc *Receiver) handle(ctx context.Context, ev envelope, ip string) error {
	switch ev.Type {
	case "subscribe", "profile":
		if err := rc.mirror.Upsert(ctx, &subscriber.Subscriber{
			Email:      ev.Data.Email,
			AudienceID: ev.Data.ListID,
			Provider:   form.ProviderMailchimp,
			Status:     subscriber.StatusSubscribed,
			MergeData:  stringMerges(ev.Data.Merges),
		}); err != nil {
			return fmt.Errorf("upserting mirror: %w", err)
		}
	case "unsubscribe":
		if err := rc.mirror.UpdateStatus(ctx, ev.Data.Email, ev.Data.ListID,
			form.ProviderMailchimp, subscriber.StatusUnsubscribed); err != nil {
			return fmt.Errorf("updating mirror status: %w", err)
		}
	case "cleaned":
		if err := rc.mirror.UpdateStatus(ctx, ev.Data.Email, ev.Data.ListID,
			form.ProviderMailchimp, subscriber.StatusCleaned); err != nil {
			return fmt.Errorf("updating mirror status: %w", err)
		}
	case "upemail":
		if err := rc.mirror.Rekey(ctx, ev.Data.OldEmail, ev.Data.NewEmail, ev.Data.ListID); err != nil {
			return fmt.Errorf("rekeying mirror: %w", err)
		}
	case "campaign":
		// analytics only, no mirror state
	default:
		rc.log.Warn("unsupported webhook event", "type", ev.Type)
		return nil
	}
	return rc.record(ctx, ev, ip)
}

func (rc *Receiver) record(ctx context.Context, ev envelope, ip string) error {
	payload := map[string]any{}
	if ev.Data.Reason != "" {
		payload["reason"] = ev.Data.Reason
	}
	if ev.Data.CampaignID != "" {
		payload["campaign_id"] = ev.Data.CampaignID
	}
	if ev.Data.Subject != "" {
		payload["subject"] = ev.Data.Subject
	}
	if ev.Type == "upemail" {
		payload["old_email"] = ev.Data.OldEmail
	}

	email := ev.Data.Email
	if ev.Type == "upemail" {
		email = ev.Data.NewEmail
	}
	if err := rc.events.Record(ctx, &analytics.Event{
		AudienceID: ev.Data.ListID,
		Email:      email,
		EventType:  ev.Type,
		Payload:    payload,
		IP:         ip,
	}); err != nil {
		return fmt.Errorf("recording event: %w", err)
	}
	return nil
}

// stringMerges flattens provider merge values, which arrive untyped.
func stringMerges(merges map[string]any) map[string]string {
	if len(merges) == 0 {
		return nil
	}
	out := make(map[string]string, len(merges))
	for k, v := range merges {
		out[k] = fmt.Sprint(v)
	}
	return out
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
