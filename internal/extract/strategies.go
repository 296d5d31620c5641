// Package extract implements the per-field-type extraction strategies.
package extract

import (
	"regexp"
	"strings"

	"github.com/guidedforms/FormVoice/internal/models"
)

var (
	emailPattern  = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	domainPattern = regexp.MustCompile(`^[A-Za-z0-9-]+(\.[A-Za-z0-9-]+)*\.[A-Za-z]{2,}$`)
	phonePattern  = regexp.MustCompile(`[\d(][\d\s()-]*\d|\d`)
	digitsPattern = regexp.MustCompile(`\d+`)

	isoDatePattern   = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	slashDatePattern = regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}`)
	textDatePattern  = regexp.MustCompile(`(?i)(january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{1,2}(st|nd|rd|th)?,?\s+\d{4}`)
)

// EmailStrategy normalizes spoken email patterns and extracts the first
// substring shaped like local@domain.tld.
type EmailStrategy struct{}

// Extract implements Strategy for email fields.
func (EmailStrategy) Extract(utterance string, f models.Field) string {
	s := collapseSpelledLetters(utterance)
	s = replaceSpokenTokens(s)
	if m := emailPattern.FindString(s); m != "" {
		return strings.ToLower(m)
	}
	if spliced := spliceDomain(s); spliced != "" {
		return strings.ToLower(spliced)
	}
	return ""
}

// collapseSpelledLetters joins runs of two or more single-letter tokens,
// recovering letter-by-letter spelling ("j o h n" -> "john").
func collapseSpelledLetters(s string) string {
	tokens := strings.Fields(s)
	var out []string
	i := 0
	for i < len(tokens) {
		j := i
		for j < len(tokens) && len(tokens[j]) == 1 && isLetter(tokens[j][0]) {
			j++
		}
		if j-i >= 2 {
			out = append(out, strings.Join(tokens[i:j], ""))
			i = j
			continue
		}
		out = append(out, tokens[i])
		i++
	}
	return strings.Join(out, " ")
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// replaceSpokenTokens rewrites spoken "at" and "dot" separators into their
// symbol forms and removes the whitespace around them.
func replaceSpokenTokens(s string) string {
	tokens := strings.Fields(s)
	var b strings.Builder
	for i, tok := range tokens {
		switch strings.ToLower(tok) {
		case "at":
			b.WriteString("@")
		case "dot":
			b.WriteString(".")
		default:
			if i > 0 && !endsWithSeparator(&b) {
				b.WriteString(" ")
			}
			b.WriteString(tok)
		}
	}
	return b.String()
}

func endsWithSeparator(b *strings.Builder) bool {
	s := b.String()
	return s == "" || strings.HasSuffix(s, "@") || strings.HasSuffix(s, ".")
}

// spliceDomain joins a domain-looking fragment onto the most plausible
// local-part token when no "@" is present: the token immediately before
// the fragment, else the first alphanumeric token.
func spliceDomain(s string) string {
	if strings.Contains(s, "@") {
		return ""
	}
	tokens := strings.Fields(s)
	for i, tok := range tokens {
		if !domainPattern.MatchString(tok) {
			continue
		}
		local := ""
		if i > 0 {
			local = tokens[i-1]
		} else {
			for j := i + 1; j < len(tokens); j++ {
				if isPlainToken(tokens[j]) {
					local = tokens[j]
					break
				}
			}
		}
		if local == "" || !isPlainToken(local) {
			return ""
		}
		candidate := local + "@" + tok
		if emailPattern.MatchString(candidate) {
			return candidate
		}
	}
	return ""
}

func isPlainToken(tok string) bool {
	for i := 0; i < len(tok); i++ {
		b := tok[i]
		if !isLetter(b) && !(b >= '0' && b <= '9') && b != '.' && b != '_' && b != '-' && b != '+' {
			return false
		}
	}
	return len(tok) > 0
}

// PhoneStrategy extracts the first maximal run of digits, spaces, hyphens,
// and parentheses.
type PhoneStrategy struct{}

// Extract implements Strategy for phone fields.
func (PhoneStrategy) Extract(utterance string, f models.Field) string {
	return strings.TrimSpace(phonePattern.FindString(utterance))
}

// NumberStrategy extracts the first digit run.
type NumberStrategy struct{}

// Extract implements Strategy for number fields.
func (NumberStrategy) Extract(utterance string, f models.Field) string {
	return digitsPattern.FindString(utterance)
}

// DateStrategy recognizes ISO, slash-separated, and textual month forms,
// returning the first match verbatim without reformatting.
type DateStrategy struct{}

// Extract implements Strategy for date fields.
func (DateStrategy) Extract(utterance string, f models.Field) string {
	if m := isoDatePattern.FindString(utterance); m != "" {
		return m
	}
	if m := slashDatePattern.FindString(utterance); m != "" {
		return m
	}
	if m := textDatePattern.FindString(utterance); m != "" {
		return m
	}
	return ""
}

// SelectStrategy matches the cleaned utterance against the field's option
// labels and values, case-insensitively, returning the first hit's value.
type SelectStrategy struct{}

// Extract implements Strategy for select fields.
func (SelectStrategy) Extract(utterance string, f models.Field) string {
	lower := strings.ToLower(utterance)
	if lower == "" {
		return ""
	}
	if f.Type == models.FieldTypeMultiSelect {
		var values []string
		for _, opt := range f.Options {
			if optionMatches(lower, opt) {
				values = append(values, opt.Value)
			}
		}
		return strings.Join(values, ", ")
	}
	for _, opt := range f.Options {
		if optionMatches(lower, opt) {
			return opt.Value
		}
	}
	return ""
}

func optionMatches(lowerUtterance string, opt models.FieldOption) bool {
	label := strings.ToLower(opt.Label)
	value := strings.ToLower(opt.Value)
	if label != "" && (strings.Contains(lowerUtterance, label) || strings.Contains(label, lowerUtterance)) {
		return true
	}
	return value != "" && strings.Contains(lowerUtterance, value)
}
