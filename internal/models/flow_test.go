package models

import "testing"

func TestParseCategory(t *testing.T) {
	cases := map[string]Category{
		"brochure":       CategoryBrochure,
		"booking":        CategoryBooking,
		"explore":        CategoryExplore,
		"question":       CategoryQuestion,
		"other":          CategoryOther,
		"bogus-category": CategoryOther,
		"":               CategoryOther,
		"BROCHURE":       CategoryOther,
	}
	for raw, want := range cases {
		if got := ParseCategory(raw); got != want {
			t.Errorf("ParseCategory(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestParseUserInput(t *testing.T) {
	if got := ParseUserInput("text", "hello"); got.Kind != InputText || got.Text != "hello" {
		t.Errorf("text input parsed as %+v", got)
	}
	if got := ParseUserInput("button", "villa"); got.Kind != InputButton || got.Text != "villa" {
		t.Errorf("button input parsed as %+v", got)
	}

	form := ParseUserInput("form", map[string]any{"budget": "100_200"})
	if form.Kind != InputForm || form.Form["budget"] != "100_200" {
		t.Errorf("form input parsed as %+v", form)
	}

	// A map payload is a form regardless of the declared type.
	mislabeled := ParseUserInput("text", map[string]any{"budget": "100_200"})
	if mislabeled.Kind != InputForm {
		t.Errorf("map payload with text type parsed as %q", mislabeled.Kind)
	}

	// Unknown types degrade to text.
	if got := ParseUserInput("gesture", "wave"); got.Kind != InputText || got.Text != "wave" {
		t.Errorf("unknown input type parsed as %+v", got)
	}

	if got := ParseUserInput("text", nil); got.Kind != InputText || got.Text != "" {
		t.Errorf("nil payload parsed as %+v", got)
	}
}

func TestUIComponentClone(t *testing.T) {
	original := &UIComponent{Type: "buttons", Data: map[string]any{"options": "x"}}
	clone := original.Clone()
	clone.Data["added"] = true

	if _, ok := original.Data["added"]; ok {
		t.Error("mutating a clone leaked into the original")
	}

	var nilComponent *UIComponent
	if nilComponent.Clone() != nil {
		t.Error("cloning nil should return nil")
	}
}

func TestHasContactInfo(t *testing.T) {
	cases := []struct {
		lead *Lead
		want bool
	}{
		{&Lead{}, false},
		{&Lead{Name: "Asha"}, false},
		{&Lead{Email: "a@example.com"}, true},
		{&Lead{Phone: "9876543210"}, true},
		{nil, false},
	}
	for i, tc := range cases {
		if got := tc.lead.HasContactInfo(); got != tc.want {
			t.Errorf("case %d: HasContactInfo() = %v, want %v", i, got, tc.want)
		}
	}
}

func TestLeadUpdateIsEmpty(t *testing.T) {
	if !(LeadUpdate{}).IsEmpty() {
		t.Error("zero update should be empty")
	}
	if (LeadUpdate{Budget: StringPtr("100_200")}).IsEmpty() {
		t.Error("update with a field should not be empty")
	}
	if (LeadUpdate{AppendNotes: StringPtr("note")}).IsEmpty() {
		t.Error("update with notes should not be empty")
	}
}

func TestDisplayString(t *testing.T) {
	if got := DisplayString([]string{"a", "b"}); got != "a, b" {
		t.Errorf("string slice rendered as %q", got)
	}
	if got := DisplayString([]any{"a", "b"}); got != "a, b" {
		t.Errorf("any slice rendered as %q", got)
	}
	if got := DisplayString("plain"); got != "plain" {
		t.Errorf("string rendered as %q", got)
	}
	if got := DisplayString(42); got != "42" {
		t.Errorf("int rendered as %q", got)
	}
}
