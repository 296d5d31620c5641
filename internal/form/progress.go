// Package form provides the progress and traversal engine over form
// templates: completion percentage, next-missing-field search, and
// whole-form validation. All functions are pure and side-effect free.
package form

import (
	"math"

	"github.com/guidedforms/FormVoice/internal/models"
)

// Progress summarizes completion of the required fields of a template.
type Progress struct {
	Percent         int `json:"percent"`
	MissingRequired int `json:"missing_required"`
}

// ComputeProgress returns the percentage of answered required fields,
// rounded to the nearest integer, and the count of required fields still
// missing. A template with zero required fields reports 100 percent.
// Percent is 100 exactly when every required field is answered, so rounding
// never reports completion early.
func ComputeProgress(t *models.FormTemplate, answers models.Answers) Progress {
	total := 0
	answered := 0
	for _, f := range t.FlattenedFields() {
		if !f.Required {
			continue
		}
		total++
		if answers.IsAnswered(f.ID) {
			answered++
		}
	}
	if total == 0 {
		return Progress{Percent: 100}
	}
	percent := int(math.Round(float64(answered) / float64(total) * 100))
	if percent == 100 && answered < total {
		percent = 99
	}
	return Progress{Percent: percent, MissingRequired: total - answered}
}

// NextMissingField returns the next required, non-skipped, unanswered field.
//
// Fields are considered in declaration order across all sections. When
// currentFieldID is set, the scan starts strictly after its position; if
// nothing matches going forward the whole list is re-scanned from the
// start. Skip exclusion takes precedence over this wrap-around fallback: a
// skipped field is never returned, even by the rescan. The second return
// value is false when every required, non-skipped field is answered, which
// is the terminal condition ending the guided phase.
func NextMissingField(t *models.FormTemplate, answers models.Answers, currentFieldID string, skipped models.SkipSet) (models.Field, bool) {
	fields := t.FlattenedFields()

	wants := func(f models.Field) bool {
		return f.Required && !skipped.Contains(f.ID) && !answers.IsAnswered(f.ID)
	}

	start := 0
	if currentFieldID != "" {
		for i, f := range fields {
			if f.ID == currentFieldID {
				start = i + 1
				break
			}
		}
	}

	for i := start; i < len(fields); i++ {
		if wants(fields[i]) {
			return fields[i], true
		}
	}
	for i := 0; i < start && i < len(fields); i++ {
		if wants(fields[i]) {
			return fields[i], true
		}
	}
	return models.Field{}, false
}
