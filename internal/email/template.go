// Package email renders and sends operator notification emails.
package email

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/osteele/liquid"

	"github.com/ignite/formbridge/internal/form"
	"github.com/ignite/formbridge/internal/submission"
)

// placeholderRegex matches {name} tokens. Unknown tokens are left as-is
// so a typo is visible in the delivered mail instead of silently blank.
var placeholderRegex = regexp.MustCompile(`\{([a-zA-Z0-9_\-]+)\}`)

// RenderPlaceholders substitutes {name} tokens from the given map. Pure
// function: no I/O, no clock, fully deterministic for its inputs.
func RenderPlaceholders(template string, subs map[string]string) string {
	return placeholderRegex.ReplaceAllStringFunc(template, func(token string) string {
		name := token[1 : len(token)-1]
		if v, ok := subs[name]; ok {
			return v
		}
		return token
	})
}

// Substitutions builds the closed placeholder set for a submission:
// every field id, plus site/form/date/ip metadata and an {all_fields}
// label: value digest.
func Substitutions(siteName string, f *form.Form, sub *submission.Submission) map[string]string {
	subs := map[string]string{
		"site_name":       siteName,
		"form_name":       f.Name,
		"submission_date": sub.CreatedAt.Format("2006-01-02 15:04:05 MST"),
		"ip_address":      sub.IP,
	}

	type line struct {
		pos   int
		label string
		value string
	}
	var lines []line
	for pos, fld := range f.Fields {
		key := fld.ID.String()
		value, ok := sub.Values[key]
		if !ok {
			continue
		}
		subs[key] = value
		lines = append(lines, line{pos: pos, label: fld.Label, value: value})
	}

	sort.Slice(lines, func(i, j int) bool { return lines[i].pos < lines[j].pos })
	var digest strings.Builder
	for _, l := range lines {
		fmt.Fprintf(&digest, "%s: %s\n", l.label, l.value)
	}
	subs["all_fields"] = strings.TrimRight(digest.String(), "\n")

	return subs
}

// htmlWrapper is the Liquid template around the plain-text body.
const htmlWrapper = `<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #333;">
<h2>{{ subject }}</h2>
<div style="white-space: pre-line; border-left: 3px solid #ddd; padding-left: 12px;">{{ body }}</div>
<p style="color: #999; font-size: 12px;">Sent by {{ site_name }}</p>
</body>
</html>`

// HTMLRenderer wraps notification bodies in the HTML shell.
type HTMLRenderer struct {
	engine   *liquid.Engine
	template *liquid.Template
}

// NewHTMLRenderer parses the wrapper template once up front.
func NewHTMLRenderer() (*HTMLRenderer, error) {
	engine := liquid.NewEngine()
	tpl, err := engine.ParseString(htmlWrapper)
	if err != nil {
		return nil, fmt.Errorf("parsing html wrapper: %w", err)
	}
	return &HTMLRenderer{engine: engine, template: tpl}, nil
}

// Render produces the HTML version of a notification email.
func (r *HTMLRenderer) Render(siteName, subject, body string) (string, error) {
	out, err := r.template.RenderString(map[string]any{
		"site_name": siteName,
		"subject":   subject,
		"body":      body,
	})
	if err != nil {
		return "", fmt.Errorf("rendering html wrapper: %w", err)
	}
	return out, nil
}
