package flow

import (
	"regexp"

	"github.com/naveenvasou/sales-chatbot-widget/internal/models"
)

// placeholderPattern matches {key} placeholders in state templates.
var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// RenderTemplate substitutes every {key} placeholder in the template with
// the corresponding context value. A placeholder whose key is absent from
// the context is left unresolved rather than causing an error: conversations
// must never hard-fail on missing optional data. Empty templates are
// returned as-is without any formatting attempt.
//
// Substitution is total and idempotent: rendering twice with the same
// context yields the same output.
func RenderTemplate(template string, context map[string]any) string {
	if template == "" {
		return ""
	}
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		key := match[1 : len(match)-1]
		value, ok := context[key]
		if !ok || value == nil {
			return match
		}
		return models.DisplayString(value)
	})
}
