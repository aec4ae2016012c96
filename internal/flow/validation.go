package flow

import (
	"regexp"
	"strings"
)

// Validation messages surfaced to the visitor on a rejected lead form.
const (
	MsgInvalidName  = "Please enter a valid name (minimum 2 characters)."
	MsgInvalidEmail = "Please enter a valid email address (e.g., name@example.com)."
	MsgInvalidPhone = "Please enter a valid 10-digit phone number."
)

var (
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	nonDigitPattern = regexp.MustCompile(`[^0-9]`)
)

// FieldError is one field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult carries the outcome of lead-form validation. On success
// the cleaned values (trimmed name, lowercased email, digits-only phone)
// are populated.
type ValidationResult struct {
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors,omitempty"`

	Name  string `json:"-"`
	Email string `json:"-"`
	Phone string `json:"-"`
}

// Messages returns the error messages joined for transcript display.
func (r ValidationResult) Messages() string {
	parts := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		parts = append(parts, e.Message)
	}
	return strings.Join(parts, " ")
}

// ValidateLeadForm validates the visitor's contact details. Phone numbers
// are normalized by stripping every non-digit character before the
// 10-digit check, so "98765-43210" validates as "9876543210".
func ValidateLeadForm(name, email, phone string) ValidationResult {
	var result ValidationResult

	name = strings.TrimSpace(name)
	if len(name) < 2 {
		result.Errors = append(result.Errors, FieldError{Field: "name", Message: MsgInvalidName})
	}

	email = strings.TrimSpace(email)
	if email == "" || !emailPattern.MatchString(email) {
		result.Errors = append(result.Errors, FieldError{Field: "email", Message: MsgInvalidEmail})
	}

	phoneClean := nonDigitPattern.ReplaceAllString(strings.TrimSpace(phone), "")
	if len(phoneClean) != 10 {
		result.Errors = append(result.Errors, FieldError{Field: "phone", Message: MsgInvalidPhone})
	}

	if len(result.Errors) > 0 {
		return result
	}

	result.Valid = true
	result.Name = name
	result.Email = strings.ToLower(email)
	result.Phone = phoneClean
	return result
}
