package integration

import (
	"strings"

	"github.com/ignite/formbridge/internal/form"
)

// emailProperty reports whether an external property name denotes the
// contact email on any supported platform (EMAIL merge field, email
// contact property).
func emailProperty(name string) bool {
	return strings.EqualFold(name, "email") || strings.EqualFold(name, "email_address")
}

// ApplyMapping copies submitted values onto external property names.
// Only pairs present in both the mapping and the values survive; stale
// mapping entries for deleted fields drop out silently. The returned
// email is resolved from the mapped email property first, then by
// heuristic fallback over the form's fields.
func ApplyMapping(f *form.Form, mapping map[string]string, values map[string]string) (props map[string]string, email string) {
	props = make(map[string]string)

	for fieldID, prop := range mapping {
		v, ok := values[fieldID]
		if !ok || v == "" {
			continue
		}
		props[prop] = v
		if emailProperty(prop) {
			email = v
		}
	}

	if email == "" {
		email = fallbackEmail(f, values)
	}
	return props, email
}

// fallbackEmail guesses the contact email when no mapping entry resolves
// one: first an email-typed field with a value, then a field whose label
// smells like an email.
func fallbackEmail(f *form.Form, values map[string]string) string {
	for _, fld := range f.Fields {
		if fld.Type == form.TypeEmail {
			if v := values[fld.ID.String()]; v != "" {
				return v
			}
		}
	}
	for _, fld := range f.Fields {
		label := strings.ToLower(fld.Label)
		if strings.Contains(label, "email") || strings.Contains(label, "e-mail") {
			if v := values[fld.ID.String()]; v != "" {
				return v
			}
		}
	}
	return ""
}

// synonym pairs an external property with the label fragments that imply
// it. Tables are ordered: earlier properties claim matching fields first.
type synonym struct {
	property  string
	fragments []string
}

var synonymTable = map[string][]synonym{
	"contacts": {
		{"email", []string{"email", "e-mail", "mail"}},
		{"firstname", []string{"first name", "firstname", "first", "given"}},
		{"lastname", []string{"last name", "lastname", "last", "surname", "family"}},
		{"phone", []string{"phone", "mobile", "tel"}},
		{"company", []string{"company", "organization", "organisation", "employer"}},
		{"website", []string{"website", "site", "url"}},
	},
	"deals": {
		{"dealname", []string{"deal", "subject", "title", "topic"}},
		{"amount", []string{"amount", "budget", "value", "price"}},
	},
	"companies": {
		{"name", []string{"company", "organization", "organisation", "business"}},
		{"domain", []string{"website", "domain", "url"}},
		{"phone", []string{"phone", "tel"}},
	},
	// Mailchimp audiences use merge tags instead of object properties.
	"audience": {
		{"EMAIL", []string{"email", "e-mail", "mail"}},
		{"FNAME", []string{"first name", "firstname", "first", "given", "name"}},
		{"LNAME", []string{"last name", "lastname", "last", "surname"}},
		{"PHONE", []string{"phone", "mobile", "tel"}},
	},
}

// SuggestMapping proposes field-to-property pairs by matching field
// labels against the synonym table for the given object type ("audience"
// selects the Mailchimp merge-tag table). When several fields match the
// same property, the first in form field order wins. Suggestions are
// advisory and never persisted here.
func SuggestMapping(fields []form.Field, objectType string) map[string]string {
	table, ok := synonymTable[objectType]
	if !ok {
		return nil
	}

	suggested := make(map[string]string)
	taken := make(map[string]bool)

	for _, fld := range fields {
		if !fld.Type.IsInput() {
			continue
		}
		label := strings.ToLower(fld.Label)
		for _, syn := range table {
			if taken[syn.property] {
				continue
			}
			claimed := matchesAny(label, syn.fragments)
			// Email-typed fields claim the email property regardless of label.
			if fld.Type == form.TypeEmail && emailProperty(syn.property) {
				claimed = true
			}
			if claimed {
				suggested[fld.ID.String()] = syn.property
				taken[syn.property] = true
				break
			}
		}
	}
	return suggested
}

func matchesAny(label string, fragments []string) bool {
	for _, frag := range fragments {
		if strings.Contains(label, frag) {
			return true
		}
	}
	return false
}
