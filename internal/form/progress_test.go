package form

import (
	"fmt"
	"testing"

	"github.com/guidedforms/FormVoice/internal/models"
)

func testTemplate() *models.FormTemplate {
	return &models.FormTemplate{
		ID: "onboarding",
		Sections: []models.Section{
			{
				ID: "contact",
				Fields: []models.Field{
					{ID: "full_name", Label: "Full Name", Type: models.FieldTypeShortText, Required: true},
					{ID: "nickname", Label: "Nickname", Type: models.FieldTypeShortText},
					{ID: "email", Label: "Work Email", Type: models.FieldTypeEmail, Required: true},
				},
			},
			{
				ID: "schedule",
				Fields: []models.Field{
					{ID: "go_live", Label: "Go-Live Date", Type: models.FieldTypeDate, Required: true},
				},
			},
		},
	}
}

func TestComputeProgress(t *testing.T) {
	tmpl := testTemplate()
	answers := models.Answers{}

	p := ComputeProgress(tmpl, answers)
	if p.Percent != 0 || p.MissingRequired != 3 {
		t.Errorf("empty answers: expected 0%%/3 missing, got %d%%/%d", p.Percent, p.MissingRequired)
	}

	answers["full_name"] = models.TextValue("Jane Doe")
	p = ComputeProgress(tmpl, answers)
	if p.Percent != 33 || p.MissingRequired != 2 {
		t.Errorf("one of three: expected 33%%/2, got %d%%/%d", p.Percent, p.MissingRequired)
	}

	answers["email"] = models.TextValue("jane@example.com")
	answers["go_live"] = models.TextValue("2024-02-01")
	p = ComputeProgress(tmpl, answers)
	if p.Percent != 100 || p.MissingRequired != 0 {
		t.Errorf("all answered: expected 100%%/0, got %d%%/%d", p.Percent, p.MissingRequired)
	}

	// Optional fields never count.
	answers["nickname"] = models.TextValue("J")
	if got := ComputeProgress(tmpl, answers); got.Percent != 100 {
		t.Errorf("optional answer changed percent: %d", got.Percent)
	}
}

func TestComputeProgressNeverRoundsUpToComplete(t *testing.T) {
	fields := make([]models.Field, 200)
	answers := models.Answers{}
	for i := range fields {
		id := fmt.Sprintf("f%d", i)
		fields[i] = models.Field{ID: id, Label: id, Type: models.FieldTypeShortText, Required: true}
		if i > 0 {
			answers[id] = models.TextValue("x")
		}
	}
	tmpl := &models.FormTemplate{ID: "big", Sections: []models.Section{{ID: "s", Fields: fields}}}

	// 199 of 200 answered rounds to 100; one required field is still
	// missing, so percent must stay below 100.
	p := ComputeProgress(tmpl, answers)
	if p.MissingRequired != 1 {
		t.Fatalf("expected 1 missing, got %d", p.MissingRequired)
	}
	if p.Percent != 99 {
		t.Errorf("expected 99%% with a required field missing, got %d%%", p.Percent)
	}

	answers["f0"] = models.TextValue("x")
	p = ComputeProgress(tmpl, answers)
	if p.Percent != 100 || p.MissingRequired != 0 {
		t.Errorf("all answered: expected 100%%/0, got %d%%/%d", p.Percent, p.MissingRequired)
	}
}

func TestComputeProgressNoRequiredFields(t *testing.T) {
	tmpl := &models.FormTemplate{ID: "t", Sections: []models.Section{
		{ID: "s", Fields: []models.Field{{ID: "a", Label: "A", Type: models.FieldTypeShortText}}},
	}}
	p := ComputeProgress(tmpl, models.Answers{})
	if p.Percent != 100 || p.MissingRequired != 0 {
		t.Errorf("expected 100%%/0 for zero required fields, got %d%%/%d", p.Percent, p.MissingRequired)
	}
}

func TestNextMissingFieldOrderAndWrap(t *testing.T) {
	tmpl := testTemplate()
	answers := models.Answers{}
	skipped := models.NewSkipSet()

	f, ok := NextMissingField(tmpl, answers, "", skipped)
	if !ok || f.ID != "full_name" {
		t.Fatalf("expected full_name first, got %v ok=%v", f.ID, ok)
	}

	// Forward scan from current position.
	f, ok = NextMissingField(tmpl, answers, "full_name", skipped)
	if !ok || f.ID != "email" {
		t.Fatalf("expected email after full_name, got %v", f.ID)
	}

	// Wrap-around: beyond the last field, earlier missing fields surface again.
	f, ok = NextMissingField(tmpl, answers, "go_live", skipped)
	if !ok || f.ID != "full_name" {
		t.Fatalf("expected wrap to full_name, got %v", f.ID)
	}
}

func TestNextMissingFieldSkipPrecedence(t *testing.T) {
	tmpl := testTemplate()
	answers := models.Answers{}
	skipped := models.NewSkipSet()
	skipped.Add("full_name")

	// Skip exclusion also applies to the wrap-around rescan.
	f, ok := NextMissingField(tmpl, answers, "go_live", skipped)
	if !ok || f.ID != "email" {
		t.Fatalf("expected email (full_name skipped), got %v ok=%v", f.ID, ok)
	}

	answers["email"] = models.TextValue("jane@example.com")
	answers["go_live"] = models.TextValue("2024-02-01")
	if _, ok := NextMissingField(tmpl, answers, "", skipped); ok {
		t.Error("expected terminal condition with only a skipped field left")
	}
}

func TestNextMissingFieldTerminatesAfterExactCount(t *testing.T) {
	tmpl := testTemplate()
	answers := models.Answers{}
	answers["email"] = models.TextValue("pre@example.com")
	skipped := models.NewSkipSet()

	required := tmpl.RequiredFieldCount()
	initiallyAnswered := 1
	current := ""
	calls := 0
	for {
		f, ok := NextMissingField(tmpl, answers, current, skipped)
		if !ok {
			break
		}
		calls++
		if calls > required {
			t.Fatal("traversal did not terminate")
		}
		answers[f.ID] = models.TextValue(fmt.Sprintf("value-%d", calls))
		current = f.ID
	}
	if want := required - initiallyAnswered; calls != want {
		t.Errorf("expected exactly %d calls, got %d", want, calls)
	}
}

func TestNextMissingFieldNeverReturnsAnsweredOrSkipped(t *testing.T) {
	tmpl := testTemplate()
	answers := models.Answers{"full_name": models.TextValue("Jane")}
	skipped := models.NewSkipSet()
	skipped.Add("email")

	for _, current := range []string{"", "full_name", "email", "go_live"} {
		f, ok := NextMissingField(tmpl, answers, current, skipped)
		if !ok {
			continue
		}
		if answers.IsAnswered(f.ID) {
			t.Errorf("current=%q: returned answered field %s", current, f.ID)
		}
		if skipped.Contains(f.ID) {
			t.Errorf("current=%q: returned skipped field %s", current, f.ID)
		}
	}
}
