// Package models defines draft and submission structures for FormVoice.
package models

import (
	"encoding/json"
	"sort"
	"time"
)

// SkipSet holds the identifiers of fields the user explicitly deferred.
// A skipped field is excluded from automatic traversal until re-opened
// through a direct click.
type SkipSet map[string]struct{}

// NewSkipSet creates an empty skip set.
func NewSkipSet() SkipSet {
	return make(SkipSet)
}

// Add marks a field as skipped.
func (s SkipSet) Add(fieldID string) {
	s[fieldID] = struct{}{}
}

// Remove clears the skipped mark for a field.
func (s SkipSet) Remove(fieldID string) {
	delete(s, fieldID)
}

// Contains reports whether the field is currently skipped.
func (s SkipSet) Contains(fieldID string) bool {
	_, ok := s[fieldID]
	return ok
}

// MarshalJSON encodes the set as a sorted JSON array for stable drafts.
func (s SkipSet) MarshalJSON() ([]byte, error) {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return json.Marshal(ids)
}

// UnmarshalJSON decodes a JSON array of field identifiers.
func (s *SkipSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	set := make(SkipSet, len(ids))
	for _, id := range ids {
		set.Add(id)
	}
	*s = set
	return nil
}

// Draft is the persisted, resumable snapshot of an in-progress session.
// It is created on first autosave, updated thereafter, and deleted on
// successful final submission.
type Draft struct {
	ID              string        `json:"id,omitempty"`
	TemplateID      string        `json:"template_id"`
	Answers         Answers       `json:"answers"`
	Messages        []ChatMessage `json:"messages"`
	CurrentFieldID  string        `json:"current_field_id,omitempty"`
	Skipped         SkipSet       `json:"skipped,omitempty"`
	Progress        int           `json:"progress"`
	MissingRequired int           `json:"missing_required"`
	CreatedAt       time.Time     `json:"created_at,omitempty"`
	UpdatedAt       time.Time     `json:"updated_at,omitempty"`
}

// Submission is the final record created when a session passes validation
// and the user submits.
type Submission struct {
	ID         string    `json:"id,omitempty"`
	TemplateID string    `json:"template_id"`
	Answers    Answers   `json:"answers"`
	Summary    string    `json:"summary"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

// Profile is a flat key/value record of known user attributes used to
// pre-populate matching empty fields before the dialogue begins.
type Profile map[string]string
