package form

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func floatPtr(f float64) *float64 { return &f }

func TestValidateRequired(t *testing.T) {
	f := Field{Type: TypeText, Label: "Name", Required: true}

	assert.NotEmpty(t, ValidateValue(f, ""))
	assert.NotEmpty(t, ValidateValue(f, "   "))
	assert.Empty(t, ValidateValue(f, "Ada"))

	// Optional field passes when empty
	f.Required = false
	assert.Empty(t, ValidateValue(f, ""))
}

func TestValidateEmail(t *testing.T) {
	f := Field{Type: TypeEmail, Label: "Email"}

	tests := []struct {
		value string
		ok    bool
	}{
		{"user@example.com", true},
		{"first.last+tag@sub.example.co", true},
		{"not-an-email", false},
		{"missing@tld", false},
		{"@example.com", false},
		{"user@.com", false},
	}
	for _, tt := range tests {
		msg := ValidateValue(f, tt.value)
		if tt.ok {
			assert.Empty(t, msg, "value %q should pass", tt.value)
		} else {
			assert.Equal(t, "Please enter a valid email address.", msg, "value %q should fail", tt.value)
		}
	}
}

func TestValidateNumberRange(t *testing.T) {
	f := Field{Type: TypeNumber, Label: "Age", Min: floatPtr(18), Max: floatPtr(99)}

	assert.Empty(t, ValidateValue(f, "42"))
	assert.Empty(t, ValidateValue(f, "18"))
	assert.Empty(t, ValidateValue(f, "99"))
	assert.NotEmpty(t, ValidateValue(f, "17"))
	assert.NotEmpty(t, ValidateValue(f, "100"))
	assert.NotEmpty(t, ValidateValue(f, "abc"))
}

func TestValidateLengthBounds(t *testing.T) {
	f := Field{Type: TypeText, Label: "Code", MinLength: 3, MaxLength: 5}

	assert.NotEmpty(t, ValidateValue(f, "ab"))
	assert.Empty(t, ValidateValue(f, "abc"))
	assert.Empty(t, ValidateValue(f, "abcde"))
	assert.NotEmpty(t, ValidateValue(f, "abcdef"))
}

func TestValidateDateAndPhone(t *testing.T) {
	date := Field{Type: TypeDate, Label: "When"}
	assert.Empty(t, ValidateValue(date, "2026-08-28"))
	assert.NotEmpty(t, ValidateValue(date, "28/08/2026"))
	assert.NotEmpty(t, ValidateValue(date, "2026-13-01"))

	phone := Field{Type: TypePhone, Label: "Phone"}
	assert.Empty(t, ValidateValue(phone, "+1 (555) 010-2030"))
	assert.Empty(t, ValidateValue(phone, "555-0102"))
	assert.NotEmpty(t, ValidateValue(phone, "call me"))
}

func TestValidateChoices(t *testing.T) {
	sel := Field{Type: TypeSelect, Label: "Color", Options: []string{"red", "green", "blue"}}
	assert.Empty(t, ValidateValue(sel, "green"))
	assert.NotEmpty(t, ValidateValue(sel, "purple"))

	chk := Field{Type: TypeCheckbox, Label: "Toppings", Options: []string{"ham", "cheese"}}
	assert.Empty(t, ValidateValue(chk, "ham,cheese"))
	assert.Empty(t, ValidateValue(chk, "ham"))
	assert.NotEmpty(t, ValidateValue(chk, "ham,pineapple"))
}

func TestValidateCheckboxCommaOptions(t *testing.T) {
	chk := Field{Type: TypeCheckbox, Label: "Size", Options: []string{
		"Small", "Medium", "Large, extra sauce",
	}}

	// an option containing a comma must validate in comma form
	assert.Empty(t, ValidateValue(chk, "Large, extra sauce"))
	assert.Empty(t, ValidateValue(chk, "Small,Large, extra sauce"))
	assert.Empty(t, ValidateValue(chk, "Small,"))
	assert.NotEmpty(t, ValidateValue(chk, "Large, anchovies"))

	// JSON array form is accepted as-is
	assert.Empty(t, ValidateValue(chk, `["Small","Large, extra sauce"]`))
	assert.NotEmpty(t, ValidateValue(chk, `["Small","Huge"]`))
}

func TestValidateFile(t *testing.T) {
	f := Field{
		Type:        TypeFile,
		Label:       "Resume",
		FileTypes:   []string{"pdf", ".docx"},
		MaxFileSize: 1 << 20,
	}

	assert.Empty(t, ValidateValue(f, `{"name":"cv.pdf","size":2048}`))
	assert.Empty(t, ValidateValue(f, `{"name":"cv.DOCX","size":2048}`))
	assert.Equal(t, "This file type is not allowed.", ValidateValue(f, `{"name":"cv.exe","size":10}`))
	assert.Equal(t, "This file is too large.", ValidateValue(f, `{"name":"cv.pdf","size":2097152}`))
	assert.NotEmpty(t, ValidateValue(f, "not-json"))
}

func TestValidateCaptcha(t *testing.T) {
	f := Field{Type: TypeCaptcha, Label: "Check", Options: []string{"3 + 4"}}

	assert.Empty(t, ValidateValue(f, "7"))
	assert.NotEmpty(t, ValidateValue(f, "8"))
	assert.NotEmpty(t, ValidateValue(f, "seven"))

	mult := Field{Type: TypeCaptcha, Label: "Check", Options: []string{"2*5"}}
	assert.Empty(t, ValidateValue(mult, "10"))

	broken := Field{Type: TypeCaptcha, Label: "Check", Options: []string{"what"}}
	assert.NotEmpty(t, ValidateValue(broken, "0"))
}

func TestCustomErrorMessage(t *testing.T) {
	f := Field{Type: TypeEmail, Label: "Email", Required: true, ErrorMessage: "We need your email!"}

	assert.Equal(t, "We need your email!", ValidateValue(f, ""))
	assert.Equal(t, "We need your email!", ValidateValue(f, "nope"))
}

func TestFieldValidateStructure(t *testing.T) {
	fld, err := NewField(TypeSelect, "Pick")
	assert.NoError(t, err)
	assert.Error(t, fld.Validate(), "select without options must be rejected")

	fld.Options = []string{"a"}
	assert.NoError(t, fld.Validate())

	_, err = NewField(FieldType("banana"), "Nope")
	assert.Error(t, err)

	bad := Field{Type: TypeText, Label: "x", MinLength: 10, MaxLength: 5}
	bad.ID = fld.ID
	assert.Error(t, bad.Validate())
}
