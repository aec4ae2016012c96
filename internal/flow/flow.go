package flow

import (
	"log/slog"
	"strings"

	"github.com/naveenvasou/sales-chatbot-widget/internal/models"
)

// Controller is the conversation flow controller: given a category choice or
// a current state plus user input, it resolves the next state against the
// table, merges the input into the conversation context, performs template
// substitution and emits a DisplayResponse. It is stateless between calls;
// the caller owns the durable state (current state label, lead record,
// stored context) and passes context in explicitly.
type Controller struct {
	table *Table
}

// NewController creates a flow controller over an immutable state table.
func NewController(table *Table) *Controller {
	slog.Debug("flow.NewController: creating controller", "states", len(table.states))
	return &Controller{table: table}
}

// Table exposes the controller's state table for callers that need direct
// lookups (e.g. rendering the lead-capture form).
func (c *Controller) Table() *Table {
	return c.table
}

// StartCategoryFlow maps a category to its track's starting state, resolves
// that state's template against the lead context, and returns the display
// response. Unknown categories have already been folded into CategoryOther
// by models.ParseCategory; the table additionally guards with its own
// default.
func (c *Controller) StartCategoryFlow(category models.Category, leadContext map[string]any) models.DisplayResponse {
	start := c.table.StartState(category)
	slog.Debug("Controller.StartCategoryFlow: starting track", "category", category, "start_state", start)

	context := map[string]any{
		"name":  "there",
		"email": "",
		"phone": "",
	}
	for key, value := range leadContext {
		if s, ok := value.(string); ok && s == "" {
			continue
		}
		context[key] = value
	}

	tmpl, err := c.table.Lookup(start)
	if err != nil {
		// Start states are table-defined; this only fires if the table is
		// broken. Degrade to the greeting rather than crash the conversation.
		slog.Error("Controller.StartCategoryFlow: start state missing from table", "error", err, "state", start)
		tmpl, _ = c.table.Lookup(models.StateGreeting)
		start = models.StateGreeting
	}

	return c.render(start, tmpl, context)
}

// HandleUserInput resolves the current state (falling back to the greeting
// state for unrecognized labels), merges the user input into the context,
// follows the current state's next-state pointer and returns the next
// state's display response together with the merged context, so the caller
// can persist newly collected fields.
func (c *Controller) HandleUserInput(currentState models.FlowState, input models.UserInput, context map[string]any) models.DisplayResponse {
	tmpl, err := c.table.Lookup(currentState)
	if err != nil {
		slog.Warn("Controller.HandleUserInput: unknown state, falling back to greeting", "state", currentState)
		currentState = models.StateGreeting
		tmpl, _ = c.table.Lookup(currentState)
	}

	merged := c.mergeInput(currentState, input, context)

	target := tmpl.NextState
	if target == "" {
		// States without a static transition re-present themselves.
		target = currentState
	}

	nextTmpl, err := c.table.Lookup(target)
	if err != nil {
		slog.Error("Controller.HandleUserInput: next state missing from table", "error", err, "from", currentState, "to", target)
		target = models.StateGreeting
		nextTmpl, _ = c.table.Lookup(target)
	}

	slog.Debug("Controller.HandleUserInput: transition resolved", "from", currentState, "to", target, "input_kind", input.Kind)
	resp := c.render(target, nextTmpl, merged)
	resp.Context = merged
	return resp
}

// GoToMainMenu returns the fixed category-selection response, independent of
// any prior state. It is the escape hatch from any point in any track.
func (c *Controller) GoToMainMenu() models.DisplayResponse {
	slog.Debug("Controller.GoToMainMenu: returning to category selection")
	return models.DisplayResponse{
		Message:      MainMenuMessage,
		CurrentState: string(models.StateCategorySelection),
		UIComponent:  CategoryButtons(),
	}
}

// render resolves a state template into a DisplayResponse, cloning the UI
// component so the table stays immutable.
func (c *Controller) render(state models.FlowState, tmpl StateTemplate, context map[string]any) models.DisplayResponse {
	return models.DisplayResponse{
		Message:        RenderTemplate(tmpl.Message, context),
		CurrentState:   string(state),
		NextState:      string(tmpl.NextState),
		UIComponent:    tmpl.UIComponent.Clone(),
		ShowMenuButton: tmpl.ShowMenuButton,
		RequiresLLM:    tmpl.RequiresLLM,
		Context:        context,
	}
}

// mergeInput applies the context merge policy for one turn: form inputs
// merge key-wise (last write per key wins); text and button inputs are
// stored under the generic "user_response" key plus the current state's
// semantic key when one is defined, with a derived display label for
// property-type choices. Derived summary keys are refreshed after every
// merge so templates downstream can reference them.
func (c *Controller) mergeInput(currentState models.FlowState, input models.UserInput, context map[string]any) map[string]any {
	merged := make(map[string]any, len(context)+4)
	for k, v := range context {
		merged[k] = v
	}

	switch input.Kind {
	case models.InputForm:
		for k, v := range input.Form {
			merged[k] = v
		}
	default:
		merged["user_response"] = input.Text
		if key, ok := c.table.ContextKey(currentState); ok {
			merged[key] = input.Text
			if key == "property_type" {
				merged["property_type_label"] = PropertyTypeLabel(input.Text)
			}
		}
	}

	deriveSummaries(merged)
	return merged
}

// deriveSummaries refreshes the human-readable summary keys templates refer
// to. Summaries are recomputed from semantic keys each turn, so later input
// never leaves a stale summary behind.
func deriveSummaries(context map[string]any) {
	if summary := summarize(context, [][2]string{
		{"budget", "💰 Budget"},
		{"location", "📍 Location"},
		{"property_type", "🏠 Property Type"},
	}); summary != "" {
		context["preferences_summary"] = summary
	}

	if summary := summarize(context, [][2]string{
		{"property_interest", "🏡 Property"},
		{"visit_date", "📅 Date"},
		{"visit_time", "🕐 Time"},
		{"special_requests", "📝 Requests"},
	}); summary != "" {
		context["booking_summary"] = summary
	}

	if summary := summarize(context, [][2]string{
		{"property_type_label", "🏠 Type"},
		{"budget", "💰 Budget"},
		{"location", "📍 Location"},
		{"timeline", "⏰ Timeline"},
	}); summary != "" {
		context["search_summary"] = summary
	}
}

// summarize renders "label: value" lines for every present key, in order.
func summarize(context map[string]any, fields [][2]string) string {
	var lines []string
	for _, field := range fields {
		value, ok := context[field[0]]
		if !ok {
			continue
		}
		text := models.DisplayString(value)
		if text == "" {
			continue
		}
		lines = append(lines, field[1]+": "+text)
	}
	return strings.Join(lines, "\n")
}
