package summary

import (
	"strings"
	"testing"

	"github.com/guidedforms/FormVoice/internal/models"
)

func testTemplate() models.FormTemplate {
	return models.FormTemplate{
		ID:    "contact-basic",
		Title: "Contact Details",
		Sections: []models.Section{
			{
				ID:    "personal",
				Title: "Personal",
				Fields: []models.Field{
					{ID: "full_name", Label: "Full name", Type: models.FieldTypeShortText, Required: true},
					{ID: "email", Label: "Email", Type: models.FieldTypeEmail, Required: true},
				},
			},
			{
				ID:    "preferences",
				Title: "Preferences",
				Fields: []models.Field{
					{ID: "channels", Label: "Preferred channels", Type: models.FieldTypeMultiSelect, Options: []models.FieldOption{
						{Label: "Email", Value: "email"},
						{Label: "Phone", Value: "phone"},
						{Label: "Mail", Value: "mail"},
					}},
				},
			},
		},
	}
}

func TestRenderGroupsBySection(t *testing.T) {
	answers := models.Answers{
		"full_name": models.TextValue("Ada Lovelace"),
		"channels":  models.ListValue([]string{"email", "phone"}),
	}
	skipped := models.NewSkipSet()
	skipped.Add("email")

	got := Render(testTemplate(), answers, skipped)

	for _, want := range []string{
		"Contact Details",
		"Personal",
		"Full name: Ada Lovelace",
		"Email: (skipped)",
		"Preferences",
		"Preferred channels: email, phone",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("summary missing %q\n%s", want, got)
		}
	}

	// Sections appear in declaration order.
	if strings.Index(got, "Personal") > strings.Index(got, "Preferences") {
		t.Error("sections rendered out of declaration order")
	}
}

func TestRenderUnansweredPlaceholder(t *testing.T) {
	got := Render(testTemplate(), models.Answers{}, models.NewSkipSet())
	if !strings.Contains(got, "Full name: (not answered)") {
		t.Errorf("unanswered field not marked:\n%s", got)
	}
}

func TestRenderDeterministic(t *testing.T) {
	answers := models.Answers{
		"full_name": models.TextValue("Ada Lovelace"),
		"email":     models.TextValue("ada@example.com"),
	}
	first := Render(testTemplate(), answers, models.NewSkipSet())
	for i := 0; i < 5; i++ {
		if again := Render(testTemplate(), answers, models.NewSkipSet()); again != first {
			t.Fatal("identical input produced different summaries")
		}
	}
}

func TestRenderSpoken(t *testing.T) {
	answers := models.Answers{
		"full_name": models.TextValue("Ada Lovelace"),
	}
	got := RenderSpoken(testTemplate(), answers)
	if !strings.Contains(got, "Full name: Ada Lovelace") {
		t.Errorf("spoken summary missing answered field: %q", got)
	}
	if strings.Contains(got, "Email") {
		t.Errorf("spoken summary includes unanswered field: %q", got)
	}

	if got := RenderSpoken(testTemplate(), models.Answers{}); got != "No answers recorded yet." {
		t.Errorf("empty spoken summary = %q", got)
	}
}
