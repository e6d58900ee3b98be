package email

import (
	"context"

	"github.com/ignite/formbridge/internal/form"
	"github.com/ignite/formbridge/internal/pkg/logger"
	"github.com/ignite/formbridge/internal/submission"
)

// Notifier sends the operator notification for each stored submission.
// It is a pipeline listener: failures are logged, never propagated.
type Notifier struct {
	sender   Sender
	html     *HTMLRenderer
	siteName string
	log      *logger.Logger
}

// NewNotifier creates a notification listener.
func NewNotifier(sender Sender, html *HTMLRenderer, siteName string) *Notifier {
	return &Notifier{
		sender:   sender,
		html:     html,
		siteName: siteName,
		log:      logger.Component("notifier"),
	}
}

// OnSubmissionCreated renders the form's notification template and sends
// it to the configured recipients. Forms without recipients are skipped.
func (n *Notifier) OnSubmissionCreated(ctx context.Context, f *form.Form, sub *submission.Submission) {
	recipients := f.Settings.NotifyEmails
	if len(recipients) == 0 {
		return
	}

	subs := Substitutions(n.siteName, f, sub)
	subject := RenderPlaceholders(f.Settings.NotifySubject, subs)
	body := RenderPlaceholders(f.Settings.NotifyTemplate, subs)

	msg := Message{To: recipients, Subject: subject, Text: body}
	if n.html != nil {
		html, err := n.html.Render(n.siteName, subject, body)
		if err != nil {
			n.log.Warn("html render failed, sending text only",
				"form_id", f.ID, "error", err)
		} else {
			msg.HTML = html
		}
	}

	if err := n.sender.Send(ctx, msg); err != nil {
		n.log.Error("notification send failed",
			"form_id", f.ID, "submission_id", sub.ID, "error", err)
		return
	}
	n.log.Info("notification sent", "form_id", f.ID, "submission_id", sub.ID)
}
