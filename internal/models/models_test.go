package models

import (
	"encoding/json"
	"testing"
)

func sampleTemplate() FormTemplate {
	return FormTemplate{
		ID:    "onboarding",
		Title: "Onboarding",
		Sections: []Section{
			{
				ID:    "contact",
				Title: "Contact",
				Fields: []Field{
					{ID: "full_name", Label: "Full Name", Type: FieldTypeShortText, Required: true},
					{ID: "email", Label: "Work Email", Type: FieldTypeEmail, Required: true},
				},
			},
			{
				ID:    "details",
				Title: "Details",
				Fields: []Field{
					{ID: "team_size", Label: "Team Size", Type: FieldTypeSingleSelect, Options: []FieldOption{
						{Value: "small", Label: "1-10"},
						{Value: "large", Label: "11+"},
					}},
				},
			},
		},
	}
}

func TestTemplateValidate(t *testing.T) {
	tmpl := sampleTemplate()
	if err := tmpl.Validate(); err != nil {
		t.Fatalf("expected valid template, got %v", err)
	}

	dup := sampleTemplate()
	dup.Sections[1].Fields = append(dup.Sections[1].Fields, Field{ID: "email", Label: "Again", Type: FieldTypeEmail})
	if err := dup.Validate(); err != ErrDuplicateFieldID {
		t.Errorf("expected ErrDuplicateFieldID, got %v", err)
	}

	bad := sampleTemplate()
	bad.Sections[0].Fields[0].Type = "checkbox"
	if err := bad.Validate(); err != ErrInvalidFieldType {
		t.Errorf("expected ErrInvalidFieldType, got %v", err)
	}

	noOpts := sampleTemplate()
	noOpts.Sections[1].Fields[0].Options = nil
	if err := noOpts.Validate(); err != ErrMissingOptions {
		t.Errorf("expected ErrMissingOptions, got %v", err)
	}
}

func TestFlattenedFieldsOrder(t *testing.T) {
	tmpl := sampleTemplate()
	fields := tmpl.FlattenedFields()
	want := []string{"full_name", "email", "team_size"}
	if len(fields) != len(want) {
		t.Fatalf("expected %d fields, got %d", len(want), len(fields))
	}
	for i, id := range want {
		if fields[i].ID != id {
			t.Errorf("position %d: expected %q, got %q", i, id, fields[i].ID)
		}
	}
}

func TestAnswerValueJSONRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		in   AnswerValue
		want string
	}{
		{"text", TextValue("jane@example.com"), `"jane@example.com"`},
		{"list", ListValue([]string{"a", "b"}), `["a","b"]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(tc.in)
			if err != nil {
				t.Fatalf("marshal failed: %v", err)
			}
			if string(data) != tc.want {
				t.Errorf("expected %s, got %s", tc.want, data)
			}
			var out AnswerValue
			if err := json.Unmarshal(data, &out); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
			if out.String() != tc.in.String() {
				t.Errorf("round trip mismatch: expected %q, got %q", tc.in.String(), out.String())
			}
		})
	}
}

func TestAnswersIsAnswered(t *testing.T) {
	a := Answers{}
	if a.IsAnswered("email") {
		t.Error("empty map should report unanswered")
	}
	a["email"] = TextValue("  ")
	if a.IsAnswered("email") {
		t.Error("whitespace-only value should report unanswered")
	}
	a["email"] = TextValue("jane@example.com")
	if !a.IsAnswered("email") {
		t.Error("committed value should report answered")
	}
}

func TestValueForFieldMultiSelect(t *testing.T) {
	f := Field{ID: "channels", Type: FieldTypeMultiSelect}
	v := ValueForField(f, "email, phone,  sms")
	if v.Kind != ValueKindList {
		t.Fatalf("expected list kind, got %s", v.Kind)
	}
	if len(v.List) != 3 || v.List[0] != "email" || v.List[2] != "sms" {
		t.Errorf("unexpected list: %v", v.List)
	}
}

func TestSkipSetJSON(t *testing.T) {
	s := NewSkipSet()
	s.Add("b")
	s.Add("a")
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `["a","b"]` {
		t.Errorf("expected sorted array, got %s", data)
	}
	var out SkipSet
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !out.Contains("a") || !out.Contains("b") {
		t.Errorf("round trip lost members: %v", out)
	}
}
