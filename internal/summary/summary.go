// Package summary renders completed answers into a deterministic plain-text
// block grouped by form section. The same renderer backs the pre-submission
// confirmation, the stored submission record, and the download endpoint.
package summary

import (
	"fmt"
	"strings"

	"github.com/guidedforms/FormVoice/internal/models"
)

const (
	skippedPlaceholder    = "(skipped)"
	unansweredPlaceholder = "(not answered)"
)

// Render produces the section-grouped text summary of the given answers.
// Sections and fields appear in template declaration order; unanswered
// fields are listed with a placeholder so the reader can see what is
// missing. Output is stable for identical input.
func Render(t models.FormTemplate, answers models.Answers, skipped models.SkipSet) string {
	var b strings.Builder
	b.WriteString(t.Title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", len(t.Title)))
	b.WriteString("\n")

	for _, section := range t.Sections {
		b.WriteString("\n")
		b.WriteString(section.Title)
		b.WriteString("\n")
		b.WriteString(strings.Repeat("-", len(section.Title)))
		b.WriteString("\n")
		for _, f := range section.Fields {
			b.WriteString(fmt.Sprintf("%s: %s\n", f.Label, renderValue(f, answers, skipped)))
		}
	}
	return b.String()
}

// RenderSpoken produces the short confirmation line read aloud before
// submission: only answered fields, joined into one utterance.
func RenderSpoken(t models.FormTemplate, answers models.Answers) string {
	var parts []string
	for _, f := range t.FlattenedFields() {
		if !answers.IsAnswered(f.ID) {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", f.Label, answers[f.ID].String()))
	}
	if len(parts) == 0 {
		return "No answers recorded yet."
	}
	return "Here is what I have. " + strings.Join(parts, ". ") + "."
}

func renderValue(f models.Field, answers models.Answers, skipped models.SkipSet) string {
	if answers.IsAnswered(f.ID) {
		return answers[f.ID].String()
	}
	if skipped.Contains(f.ID) {
		return skippedPlaceholder
	}
	return unansweredPlaceholder
}
