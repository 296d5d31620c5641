// Package models defines answer value structures for FormVoice sessions.
package models

import (
	"encoding/json"
	"strings"
)

// ValueKind tags an AnswerValue as holding text or a list of strings.
type ValueKind string

const (
	// ValueKindText marks a single string value.
	ValueKindText ValueKind = "text"
	// ValueKindList marks an ordered list of strings (multi-select).
	ValueKindList ValueKind = "list"
)

// AnswerValue is a tagged union: either a single string or an ordered list
// of strings. The kind mirrors the declared type of the answered field, so
// consumers do not need type switches at every read site.
type AnswerValue struct {
	Kind ValueKind
	Text string
	List []string
}

// TextValue wraps a single string as an AnswerValue.
func TextValue(s string) AnswerValue {
	return AnswerValue{Kind: ValueKindText, Text: s}
}

// ListValue wraps an ordered string list as an AnswerValue.
func ListValue(items []string) AnswerValue {
	return AnswerValue{Kind: ValueKindList, List: items}
}

// IsEmpty reports whether the value carries no usable content.
func (v AnswerValue) IsEmpty() bool {
	if v.Kind == ValueKindList {
		for _, item := range v.List {
			if strings.TrimSpace(item) != "" {
				return false
			}
		}
		return true
	}
	return strings.TrimSpace(v.Text) == ""
}

// String renders the value for display; list values are comma-joined.
func (v AnswerValue) String() string {
	if v.Kind == ValueKindList {
		return strings.Join(v.List, ", ")
	}
	return v.Text
}

// MarshalJSON encodes text values as JSON strings and list values as JSON
// arrays, matching the wire shape of the persisted draft.
func (v AnswerValue) MarshalJSON() ([]byte, error) {
	if v.Kind == ValueKindList {
		return json.Marshal(v.List)
	}
	return json.Marshal(v.Text)
}

// UnmarshalJSON decodes either a JSON string or a JSON array of strings.
func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = TextValue(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*v = ListValue(list)
	return nil
}

// Answers maps a field identifier to its committed value. No entry means
// "unanswered". Mutated only by the dialogue orchestrator.
type Answers map[string]AnswerValue

// IsAnswered reports whether the field holds a non-empty committed value.
func (a Answers) IsAnswered(fieldID string) bool {
	v, ok := a[fieldID]
	return ok && !v.IsEmpty()
}

// Clone returns a deep copy of the answer map.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for k, v := range a {
		if v.Kind == ValueKindList {
			list := make([]string, len(v.List))
			copy(list, v.List)
			v.List = list
		}
		out[k] = v
	}
	return out
}

// ValueForField wraps a raw extracted string into an AnswerValue whose kind
// mirrors the field's declared type. Multi-select raw input is split on
// commas; other types are stored as text.
func ValueForField(f Field, raw string) AnswerValue {
	if f.Type != FieldTypeMultiSelect {
		return TextValue(raw)
	}
	var items []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return ListValue(items)
}
