// Package extract turns conversational utterances into best-guess
// structured field values.
//
// Extraction is heuristic, not exact NLP: every strategy returns its best
// guess and correctness is enforced downstream by validation. The
// top-level Value function never fails; worst case it returns the cleaned
// but unparsed utterance so the orchestrator can still store something.
package extract

import (
	"log/slog"
	"strings"

	"github.com/guidedforms/FormVoice/internal/models"
)

// Strategy converts a cleaned utterance into a canonical value for one
// field type. Strategies are replaceable so an alternative implementation
// (e.g. a hosted NLU model) can be substituted without touching the
// dialogue orchestrator.
type Strategy interface {
	Extract(utterance string, f models.Field) string
}

var registry = make(map[models.FieldType]Strategy)

// Register associates a FieldType with a Strategy implementation,
// replacing any previously registered strategy for that type.
func Register(ft models.FieldType, s Strategy) {
	registry[ft] = s
}

// Get retrieves the Strategy for a given FieldType.
func Get(ft models.FieldType) (Strategy, bool) {
	s, ok := registry[ft]
	return s, ok
}

func init() {
	Register(models.FieldTypeEmail, &EmailStrategy{})
	Register(models.FieldTypePhone, &PhoneStrategy{})
	Register(models.FieldTypeNumber, &NumberStrategy{})
	Register(models.FieldTypeDate, &DateStrategy{})
	Register(models.FieldTypeSingleSelect, &SelectStrategy{})
	Register(models.FieldTypeMultiSelect, &SelectStrategy{})
}

// Value extracts the best-guess canonical value of the field's type from a
// free-form utterance. It never returns an error; when no strategy applies
// or a strategy yields nothing, the generic cleanup fallback is used.
func Value(utterance string, f models.Field) string {
	cleaned := Clean(utterance)
	if s, ok := Get(f.Type); ok {
		if v := s.Extract(cleaned, f); v != "" {
			slog.Debug("extract.Value strategy hit", "field", f.ID, "type", f.Type)
			return v
		}
	}
	return fallback(cleaned, f)
}

// conversationalPrefixes are stripped from the front of an utterance once,
// longest match first, before any strategy runs.
var conversationalPrefixes = []string{
	"my name is",
	"my email is",
	"my email address is",
	"my phone number is",
	"my number is",
	"name is",
	"email is",
	"phone is",
	"it is",
	"it's",
	"its",
	"this is",
	"that is",
	"that's",
	"i am",
	"i'm",
	"my",
	"the",
}

// leading articles removed after prefix stripping.
var leadingArticles = []string{"a", "an"}

// Clean strips one matching conversational prefix and one leading article,
// case-insensitively, and trims surrounding whitespace.
func Clean(utterance string) string {
	s := strings.TrimSpace(utterance)
	lower := strings.ToLower(s)
	for _, prefix := range conversationalPrefixes {
		if strings.HasPrefix(lower, prefix+" ") {
			s = strings.TrimSpace(s[len(prefix):])
			lower = strings.ToLower(s)
			break
		}
	}
	for _, article := range leadingArticles {
		if strings.HasPrefix(lower, article+" ") {
			s = strings.TrimSpace(s[len(article):])
			break
		}
	}
	return s
}

// fallback strips trailing punctuation and title-cases name-like fields.
func fallback(cleaned string, f models.Field) string {
	s := strings.TrimRight(cleaned, ".!?,;:")
	if isNameField(f) {
		s = titleCase(s)
	}
	return s
}

func isNameField(f models.Field) bool {
	return strings.Contains(strings.ToLower(f.ID), "name") ||
		strings.Contains(strings.ToLower(f.Label), "name")
}

// titleCase capitalizes the first letter of each whitespace-separated token.
func titleCase(s string) string {
	tokens := strings.Fields(s)
	for i, tok := range tokens {
		if len(tok) == 0 {
			continue
		}
		tokens[i] = strings.ToUpper(tok[:1]) + tok[1:]
	}
	return strings.Join(tokens, " ")
}
