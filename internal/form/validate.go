// Package form provides whole-form validation over committed answers.
package form

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"

	"github.com/guidedforms/FormVoice/internal/models"
)

// ValidationError reports one violated field with a user-facing message.
type ValidationError struct {
	FieldID string `json:"field_id"`
	Message string `json:"message"`
}

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^[\d\s()+-]{7,}$`)
)

// ValidateAll checks every field of the template against the committed
// answers and returns one error per violated field, first violation only,
// in field declaration order.
func ValidateAll(t *models.FormTemplate, answers models.Answers) []ValidationError {
	var errs []ValidationError
	for _, f := range t.FlattenedFields() {
		if msg := validateField(f, answers); msg != "" {
			errs = append(errs, ValidationError{FieldID: f.ID, Message: msg})
		}
	}
	if len(errs) > 0 {
		slog.Debug("ValidateAll found violations", "template", t.ID, "count", len(errs))
	}
	return errs
}

// validateField returns the first violation message for a field, or "".
func validateField(f models.Field, answers models.Answers) string {
	answered := answers.IsAnswered(f.ID)
	if f.Required && !answered {
		return fmt.Sprintf("%s is required", f.Label)
	}
	if !answered {
		return ""
	}
	value := answers[f.ID].String()

	switch f.Type {
	case models.FieldTypeEmail:
		if !emailPattern.MatchString(value) {
			return fmt.Sprintf("%s must be a valid email address", f.Label)
		}
	case models.FieldTypePhone:
		if !phonePattern.MatchString(value) {
			return fmt.Sprintf("%s must be a valid phone number", f.Label)
		}
	}

	if f.Validation == nil {
		return ""
	}
	rule := f.Validation

	if rule.Pattern != "" {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			slog.Warn("validateField: invalid pattern in validation rule", "field", f.ID, "pattern", rule.Pattern, "error", err)
		} else if !re.MatchString(value) {
			if rule.Message != "" {
				return rule.Message
			}
			return fmt.Sprintf("%s has an invalid format", f.Label)
		}
	}

	if rule.Min != nil || rule.Max != nil {
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			if rule.Message != "" {
				return rule.Message
			}
			return fmt.Sprintf("%s must be a number", f.Label)
		}
		if rule.Min != nil && n < *rule.Min {
			if rule.Message != "" {
				return rule.Message
			}
			return fmt.Sprintf("%s must be at least %v", f.Label, *rule.Min)
		}
		if rule.Max != nil && n > *rule.Max {
			if rule.Message != "" {
				return rule.Message
			}
			return fmt.Sprintf("%s must be at most %v", f.Label, *rule.Max)
		}
	}
	return ""
}
