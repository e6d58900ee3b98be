package email

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/formbridge/internal/form"
	"github.com/ignite/formbridge/internal/submission"
)

func TestRenderPlaceholders(t *testing.T) {
	subs := map[string]string{
		"site_name":  "Example",
		"ip_address": "203.0.113.7",
	}

	out := RenderPlaceholders("From {site_name} ({ip_address})", subs)
	assert.Equal(t, "From Example (203.0.113.7)", out)

	// Unknown tokens stay visible
	out = RenderPlaceholders("Hello {nobody}", subs)
	assert.Equal(t, "Hello {nobody}", out)

	// No tokens, no change
	assert.Equal(t, "plain", RenderPlaceholders("plain", subs))
}

func TestSubstitutions(t *testing.T) {
	f, err := form.New("Contact")
	require.NoError(t, err)
	email, _ := form.NewField(form.TypeEmail, "Email")
	name, _ := form.NewField(form.TypeText, "Name")
	f.Fields = []form.Field{name, email}

	sub := &submission.Submission{
		FormID: f.ID,
		Values: map[string]string{
			email.ID.String(): "ada@example.com",
			name.ID.String():  "Ada",
		},
		IP:        "203.0.113.7",
		CreatedAt: time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC),
	}

	subs := Substitutions("Example", f, sub)

	assert.Equal(t, "Example", subs["site_name"])
	assert.Equal(t, "Contact", subs["form_name"])
	assert.Equal(t, "203.0.113.7", subs["ip_address"])
	assert.Equal(t, "ada@example.com", subs[email.ID.String()])
	// all_fields follows form field order
	assert.Equal(t, "Name: Ada\nEmail: ada@example.com", subs["all_fields"])
}

func TestHTMLRenderer(t *testing.T) {
	r, err := NewHTMLRenderer()
	require.NoError(t, err)

	out, err := r.Render("Example", "New submission", "Name: Ada")
	require.NoError(t, err)
	assert.Contains(t, out, "New submission")
	assert.Contains(t, out, "Name: Ada")
	assert.Contains(t, out, "Sent by Example")
}

type captureSender struct {
	sent []Message
	err  error
}

func (c *captureSender) Send(ctx context.Context, msg Message) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	return nil
}

func TestNotifier(t *testing.T) {
	f, err := form.New("Contact")
	require.NoError(t, err)
	name, _ := form.NewField(form.TypeText, "Name")
	f.Fields = []form.Field{name}
	f.Settings.NotifyEmails = []string{"ops@example.com"}
	f.Settings.NotifySubject = "New submission on {form_name}"
	f.Settings.NotifyTemplate = "{all_fields}"

	sub := &submission.Submission{
		FormID:    f.ID,
		Values:    map[string]string{name.ID.String(): "Ada"},
		CreatedAt: time.Now(),
	}

	sender := &captureSender{}
	html, err := NewHTMLRenderer()
	require.NoError(t, err)
	n := NewNotifier(sender, html, "Example")

	n.OnSubmissionCreated(context.Background(), f, sub)

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, []string{"ops@example.com"}, msg.To)
	assert.Equal(t, "New submission on Contact", msg.Subject)
	assert.Equal(t, "Name: Ada", msg.Text)
	assert.Contains(t, msg.HTML, "Name: Ada")
}

func TestNotifierSkipsWithoutRecipients(t *testing.T) {
	f, err := form.New("Contact")
	require.NoError(t, err)

	sender := &captureSender{}
	n := NewNotifier(sender, nil, "Example")
	n.OnSubmissionCreated(context.Background(), f, &submission.Submission{})

	assert.Empty(t, sender.sent)
}
