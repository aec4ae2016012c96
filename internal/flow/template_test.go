package flow

import "testing"

func TestRenderTemplate(t *testing.T) {
	cases := []struct {
		name     string
		template string
		context  map[string]any
		want     string
	}{
		{
			name:     "substitutes present keys",
			template: "Hi {name}, your email is {email}",
			context:  map[string]any{"name": "Asha", "email": "asha@example.com"},
			want:     "Hi Asha, your email is asha@example.com",
		},
		{
			name:     "missing keys stay unresolved",
			template: "Hi {name}, budget {budget}",
			context:  map[string]any{"name": "Asha"},
			want:     "Hi Asha, budget {budget}",
		},
		{
			name:     "nil context leaves everything unresolved",
			template: "Hi {name}",
			context:  nil,
			want:     "Hi {name}",
		},
		{
			name:     "empty template",
			template: "",
			context:  map[string]any{"name": "Asha"},
			want:     "",
		},
		{
			name:     "string slices join with comma",
			template: "Locations: {location}",
			context:  map[string]any{"location": []string{"Chennai", "Pune"}},
			want:     "Locations: Chennai, Pune",
		},
		{
			name:     "nil values stay unresolved",
			template: "{name}",
			context:  map[string]any{"name": nil},
			want:     "{name}",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := RenderTemplate(tc.template, tc.context); got != tc.want {
				t.Errorf("RenderTemplate(%q) = %q, want %q", tc.template, got, tc.want)
			}
		})
	}
}

func TestRenderTemplateIdempotent(t *testing.T) {
	template := "Hi {name}, budget {budget}"
	context := map[string]any{"name": "Asha"}

	once := RenderTemplate(template, context)
	twice := RenderTemplate(once, context)
	if once != twice {
		t.Errorf("rendering is not idempotent: %q then %q", once, twice)
	}
}
