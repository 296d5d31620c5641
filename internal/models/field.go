// Package models defines the core data structures for FormVoice.
//
// It includes form templates, answers, chat transcript entries, and the
// dialogue state types shared across modules.
package models

import "errors"

// FieldType defines the kind of value a field collects.
type FieldType string

const (
	// FieldTypeShortText collects a single line of free text.
	FieldTypeShortText FieldType = "short-text"
	// FieldTypeEmail collects an email address.
	FieldTypeEmail FieldType = "email"
	// FieldTypePhone collects a phone number.
	FieldTypePhone FieldType = "phone"
	// FieldTypeDate collects a calendar date.
	FieldTypeDate FieldType = "date"
	// FieldTypeNumber collects a numeric value.
	FieldTypeNumber FieldType = "number"
	// FieldTypeSingleSelect collects one value from a fixed option list.
	FieldTypeSingleSelect FieldType = "single-select"
	// FieldTypeMultiSelect collects multiple values from a fixed option list.
	FieldTypeMultiSelect FieldType = "multi-select"
	// FieldTypeLongText collects multi-line free text.
	FieldTypeLongText FieldType = "long-text"
)

// Validation constants for template validation.
const (
	// MaxQuickReplyOptions defines how many select options are surfaced as quick replies.
	MaxQuickReplyOptions = 4
	// MaxFieldLabelLength defines the maximum allowed length for a field label.
	MaxFieldLabelLength = 200
	// MaxPromptLength defines the maximum allowed length for a conversational prompt.
	MaxPromptLength = 1000
)

// Error variables for better error handling and testability.
var (
	ErrEmptyTemplateID   = errors.New("template id cannot be empty")
	ErrEmptyFieldID      = errors.New("field id cannot be empty")
	ErrDuplicateFieldID  = errors.New("duplicate field id in template")
	ErrInvalidFieldType  = errors.New("invalid field type")
	ErrMissingOptions    = errors.New("options are required for select fields")
	ErrFieldLabelTooLong = errors.New("field label exceeds maximum length")
	ErrPromptTooLong     = errors.New("field prompt exceeds maximum length")
	ErrUnknownField      = errors.New("field does not exist in template")
)

// IsValidFieldType checks if the given field type is supported.
func IsValidFieldType(ft FieldType) bool {
	switch ft {
	case FieldTypeShortText, FieldTypeEmail, FieldTypePhone, FieldTypeDate,
		FieldTypeNumber, FieldTypeSingleSelect, FieldTypeMultiSelect, FieldTypeLongText:
		return true
	default:
		return false
	}
}

// IsSelect reports whether the field type carries a fixed option list.
func (ft FieldType) IsSelect() bool {
	return ft == FieldTypeSingleSelect || ft == FieldTypeMultiSelect
}

// FieldOption represents one selectable (value, label) pair for select fields.
type FieldOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// ValidationRule holds an optional per-field validation constraint.
type ValidationRule struct {
	Pattern string   `json:"pattern,omitempty"` // regular expression the value must match
	Min     *float64 `json:"min,omitempty"`     // numeric lower bound, inclusive
	Max     *float64 `json:"max,omitempty"`     // numeric upper bound, inclusive
	Message string   `json:"message,omitempty"` // custom message reported on violation
}

// Field represents one question/input unit within a form template.
type Field struct {
	ID          string          `json:"id"`
	Label       string          `json:"label"`
	Type        FieldType       `json:"type"`
	Required    bool            `json:"required,omitempty"`
	Options     []FieldOption   `json:"options,omitempty"`
	Prompt      string          `json:"prompt,omitempty"`      // conversational prompt used to ask for the field
	Placeholder string          `json:"placeholder,omitempty"` // placeholder/help text
	Validation  *ValidationRule `json:"validation,omitempty"`
}

// Section groups an ordered list of fields under a title.
type Section struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Fields []Field `json:"fields"`
}

// FormTemplate is an ordered list of sections. Immutable once loaded for a session.
type FormTemplate struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Sections []Section `json:"sections"`
}

// Validate performs structural validation on a template.
func (t *FormTemplate) Validate() error {
	if t.ID == "" {
		return ErrEmptyTemplateID
	}
	seen := make(map[string]bool)
	for _, sec := range t.Sections {
		for _, f := range sec.Fields {
			if f.ID == "" {
				return ErrEmptyFieldID
			}
			if seen[f.ID] {
				return ErrDuplicateFieldID
			}
			seen[f.ID] = true
			if !IsValidFieldType(f.Type) {
				return ErrInvalidFieldType
			}
			if f.Type.IsSelect() && len(f.Options) == 0 {
				return ErrMissingOptions
			}
			if len(f.Label) > MaxFieldLabelLength {
				return ErrFieldLabelTooLong
			}
			if len(f.Prompt) > MaxPromptLength {
				return ErrPromptTooLong
			}
		}
	}
	return nil
}

// FlattenedFields returns all fields of all sections in declaration order.
func (t *FormTemplate) FlattenedFields() []Field {
	var fields []Field
	for _, sec := range t.Sections {
		fields = append(fields, sec.Fields...)
	}
	return fields
}

// FieldByID looks up a field by its identifier.
func (t *FormTemplate) FieldByID(id string) (Field, bool) {
	for _, sec := range t.Sections {
		for _, f := range sec.Fields {
			if f.ID == id {
				return f, true
			}
		}
	}
	return Field{}, false
}

// RequiredFieldCount returns the number of required fields in the template.
func (t *FormTemplate) RequiredFieldCount() int {
	count := 0
	for _, f := range t.FlattenedFields() {
		if f.Required {
			count++
		}
	}
	return count
}
