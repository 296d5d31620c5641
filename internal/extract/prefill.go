// Package extract implements profile pre-population for session bootstrap.
package extract

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/guidedforms/FormVoice/internal/models"
)

// semantic categories recognized during pre-population, in the order they
// are attempted. Matchers are substrings checked against the lowercased
// field identifier and label; sources are profile keys checked in order.
type prefillCategory struct {
	name     string
	matchers []string
	sources  []string
}

var prefillCategories = []prefillCategory{
	{"emergency contact name", []string{"emergency_contact_name", "emergency contact name"}, []string{"emergency_contact_name", "emergencyContactName"}},
	{"emergency contact phone", []string{"emergency_contact_phone", "emergency contact phone"}, []string{"emergency_contact_phone", "emergencyContactPhone"}},
	{"company", []string{"company", "organization", "employer"}, []string{"company", "organization"}},
	{"full name", []string{"full_name", "fullname", "full name", "your name", "name"}, []string{"full_name", "name", "fullName"}},
	{"email", []string{"email"}, []string{"email", "work_email"}},
	{"phone", []string{"phone", "mobile", "cell"}, []string{"phone", "mobile", "phone_number"}},
	{"job title", []string{"job_title", "job title", "title", "role", "position"}, []string{"job_title", "title", "role"}},
	{"date of birth", []string{"date_of_birth", "birth", "dob"}, []string{"date_of_birth", "dob", "birthdate"}},
	{"country", []string{"country"}, []string{"country"}},
	{"street", []string{"street", "address_line", "address line", "address1"}, []string{"street"}},
	{"city", []string{"city", "town"}, []string{"city"}},
	{"state", []string{"state", "province", "region"}, []string{"state", "province"}},
	{"zip", []string{"zip", "postal"}, []string{"zip", "postal_code"}},
	{"address", []string{"address"}, []string{"address"}},
}

// Prefill copies known profile values into matching empty fields before the
// dialogue starts. Address sub-components are recovered from a combined
// address value when the profile carries no dedicated component keys.
// Already-populated answers are never overwritten. Returns one "Label:
// value" summary line per populated field, in field declaration order.
func Prefill(t *models.FormTemplate, answers models.Answers, profile models.Profile) []string {
	if len(profile) == 0 {
		return nil
	}
	components := AddressComponents{}
	if addr, ok := profile["address"]; ok {
		components = ParseAddress(addr)
	}

	var summaries []string
	for _, f := range t.FlattenedFields() {
		if answers.IsAnswered(f.ID) {
			continue
		}
		value := lookupProfileValue(f, profile, components)
		if value == "" {
			continue
		}
		answers[f.ID] = models.ValueForField(f, value)
		summaries = append(summaries, f.Label+": "+value)
		slog.Debug("Prefill populated field from profile", "field", f.ID)
	}
	return summaries
}

func lookupProfileValue(f models.Field, profile models.Profile, components AddressComponents) string {
	haystack := strings.ToLower(f.ID + " " + f.Label)
	for _, cat := range prefillCategories {
		if !matchesAny(haystack, cat.matchers) {
			continue
		}
		for _, key := range cat.sources {
			if v := strings.TrimSpace(profile[key]); v != "" {
				return v
			}
		}
		// Address sub-components fall back to the parsed combined address.
		switch cat.name {
		case "street":
			return components.Street
		case "city":
			return components.City
		case "state":
			return components.State
		case "zip":
			return components.Zip
		case "country":
			if components.Country != "" {
				return components.Country
			}
		}
		return ""
	}
	return ""
}

func matchesAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// AddressComponents holds the parts recovered from a combined address line.
type AddressComponents struct {
	Street  string
	City    string
	State   string
	Zip     string
	Country string
}

var zipPattern = regexp.MustCompile(`\b\d{5}(-\d{4})?\b`)

// ParseAddress splits a comma-separated address into components. It is a
// light heuristic: street, city, then a state/zip segment, then country.
func ParseAddress(addr string) AddressComponents {
	var c AddressComponents
	parts := strings.Split(addr, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	switch len(parts) {
	case 0:
		return c
	case 1:
		c.Street = parts[0]
		return c
	}
	c.Street = parts[0]
	c.City = parts[1]
	if len(parts) >= 3 {
		seg := parts[2]
		if zip := zipPattern.FindString(seg); zip != "" {
			c.Zip = zip
			seg = strings.TrimSpace(strings.Replace(seg, zip, "", 1))
		}
		c.State = seg
	}
	if len(parts) >= 4 {
		c.Country = parts[3]
	}
	return c
}
