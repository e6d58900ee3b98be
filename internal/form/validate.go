package form

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// RFC-approximate; intentionally loose, the platform of record rejects
// anything it actually cannot deliver to.
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Phone shape: digits with optional +, spaces, dashes, dots, parens.
var phoneRegex = regexp.MustCompile(`^\+?[0-9 ().\-]{6,20}$`)

var defaultMessages = map[FieldType]string{
	TypeText:     "This field is invalid.",
	TypeTextarea: "This field is invalid.",
	TypeEmail:    "Please enter a valid email address.",
	TypeNumber:   "Please enter a valid number.",
	TypeDate:     "Please enter a valid date (YYYY-MM-DD).",
	TypePhone:    "Please enter a valid phone number.",
	TypeSelect:   "Please choose one of the offered options.",
	TypeRadio:    "Please choose one of the offered options.",
	TypeCheckbox: "Please choose one of the offered options.",
	TypeFile:     "This file is not allowed.",
	TypeCaptcha:  "Captcha answer is incorrect.",
}

const requiredMessage = "This field is required."

// fileValue is the submitted shape for file fields: metadata about an
// already-uploaded file, not the file bytes.
type fileValue struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// ValidateValue checks a raw submitted value against a field descriptor.
// It returns "" when the value passes, otherwise the error message to
// surface for the field (custom override first, then the type default).
func ValidateValue(f Field, value string) string {
	trimmed := strings.TrimSpace(value)

	if trimmed == "" {
		if f.Required {
			return f.message(requiredMessage)
		}
		return ""
	}

	switch f.Type {
	case TypeEmail:
		if !emailRegex.MatchString(trimmed) {
			return f.fail()
		}
	case TypeNumber:
		n, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return f.fail()
		}
		if f.Min != nil && n < *f.Min {
			return f.message(fmt.Sprintf("Value must be at least %v.", *f.Min))
		}
		if f.Max != nil && n > *f.Max {
			return f.message(fmt.Sprintf("Value must be at most %v.", *f.Max))
		}
	case TypeDate:
		if _, err := time.Parse("2006-01-02", trimmed); err != nil {
			return f.fail()
		}
	case TypePhone:
		if !phoneRegex.MatchString(trimmed) {
			return f.fail()
		}
	case TypeSelect, TypeRadio:
		if !contains(f.Options, trimmed) {
			return f.fail()
		}
	case TypeCheckbox:
		if !validCheckboxValue(trimmed, f.Options) {
			return f.fail()
		}
	case TypeFile:
		var fv fileValue
		if err := json.Unmarshal([]byte(trimmed), &fv); err != nil || fv.Name == "" {
			return f.fail()
		}
		if len(f.FileTypes) > 0 && !allowedExtension(fv.Name, f.FileTypes) {
			return f.message("This file type is not allowed.")
		}
		if f.MaxFileSize > 0 && fv.Size > f.MaxFileSize {
			return f.message("This file is too large.")
		}
	case TypeCaptcha:
		expected, err := solveChallenge(f.Challenge())
		if err != nil {
			return f.fail()
		}
		got, err := strconv.Atoi(trimmed)
		if err != nil || got != expected {
			return f.fail()
		}
	}

	// Length bounds apply to free-text types only.
	if f.Type == TypeText || f.Type == TypeTextarea {
		if f.MinLength > 0 && len(trimmed) < f.MinLength {
			return f.message(fmt.Sprintf("Must be at least %d characters.", f.MinLength))
		}
		if f.MaxLength > 0 && len(trimmed) > f.MaxLength {
			return f.message(fmt.Sprintf("Must be at most %d characters.", f.MaxLength))
		}
	}

	return ""
}

// Challenge returns the arithmetic captcha expression ("3+4") stored in
// the field options.
func (f Field) Challenge() string {
	if len(f.Options) > 0 {
		return f.Options[0]
	}
	return ""
}

func (f Field) fail() string {
	return f.message(defaultMessages[f.Type])
}

func (f Field) message(fallback string) string {
	if f.ErrorMessage != "" {
		return f.ErrorMessage
	}
	if fallback == "" {
		return "This field is invalid."
	}
	return fallback
}

var challengeRegex = regexp.MustCompile(`^\s*(\d+)\s*([+\-*])\s*(\d+)\s*$`)

// solveChallenge evaluates a simple two-operand arithmetic expression.
func solveChallenge(expr string) (int, error) {
	m := challengeRegex.FindStringSubmatch(expr)
	if m == nil {
		return 0, fmt.Errorf("malformed captcha challenge %q", expr)
	}
	a, _ := strconv.Atoi(m[1])
	b, _ := strconv.Atoi(m[3])
	switch m[2] {
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	default:
		return a * b, nil
	}
}

// validCheckboxValue checks every selected choice against the option
// list. Selections arrive either as a JSON array or comma-separated;
// in the comma form an option may itself contain commas, so segments
// are joined greedily until they match a known option.
func validCheckboxValue(raw string, options []string) bool {
	if strings.HasPrefix(raw, "[") {
		var arr []string
		if err := json.Unmarshal([]byte(raw), &arr); err != nil {
			return false
		}
		for _, choice := range arr {
			if c := strings.TrimSpace(choice); c != "" && !contains(options, c) {
				return false
			}
		}
		return true
	}

	parts := strings.Split(raw, ",")
	for i := 0; i < len(parts); {
		matched := false
		for j := len(parts); j > i; j-- {
			cand := strings.TrimSpace(strings.Join(parts[i:j], ","))
			if cand == "" && j == i+1 {
				i = j
				matched = true
				break
			}
			if contains(options, cand) {
				i = j
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func allowedExtension(name string, whitelist []string) bool {
	dot := strings.LastIndex(name, ".")
	if dot < 0 || dot == len(name)-1 {
		return false
	}
	ext := strings.ToLower(name[dot+1:])
	for _, allowed := range whitelist {
		if strings.ToLower(strings.TrimPrefix(allowed, ".")) == ext {
			return true
		}
	}
	return false
}
