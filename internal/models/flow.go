// Package models defines the data types shared across the chat widget service.
package models

// FlowState identifies a node in the conversation state table.
// The set is closed and known at build time; the raw string value is what
// travels over the wire in ChatResponse.CurrentState / NextState.
type FlowState string

const (
	// Common states
	StateGreeting          FlowState = "greeting"
	StateCategorySelection FlowState = "category_selection"
	StateLeadCapture       FlowState = "lead_capture"

	// Brochure track
	StateBrochureStart                 FlowState = "brochure_start"
	StateBrochurePreferences           FlowState = "brochure_preferences"
	StateBrochurePreferencesCollected  FlowState = "brochure_preferences_collected"
	StateBrochureConfirmation          FlowState = "brochure_confirmation"
	StateBrochureComplete              FlowState = "brochure_complete"

	// Booking track
	StateBookingStart            FlowState = "booking_start"
	StateBookingPropertyInterest FlowState = "booking_property_interest"
	StateBookingDatePreference   FlowState = "booking_date_preference"
	StateBookingTimePreference   FlowState = "booking_time_preference"
	StateBookingSpecialRequests  FlowState = "booking_special_requests"
	StateBookingConfirmation     FlowState = "booking_confirmation"
	StateBookingComplete         FlowState = "booking_complete"

	// Explore track
	StateExploreStart       FlowState = "explore_start"
	StateExplorePreferences FlowState = "explore_preferences"
	StateExploreResults     FlowState = "explore_results"
	StateExploreFollowup    FlowState = "explore_followup"
	StateExploreComplete    FlowState = "explore_complete"

	// FAQ track
	StateFAQStart          FlowState = "faq_start"
	StateFAQCategorySelect FlowState = "faq_category_select"
	StateFAQHandle         FlowState = "faq_handle"
	StateFAQFollowup       FlowState = "faq_followup"
	StateFAQComplete       FlowState = "faq_complete"

	// Other-queries track
	StateOtherStart    FlowState = "other_start"
	StateOtherInput    FlowState = "other_input"
	StateOtherHandled  FlowState = "other_handled"
	StateOtherComplete FlowState = "other_complete"

	// Terminal states
	StateHandoff FlowState = "handoff"
	StateEnded   FlowState = "ended"
)

// Category identifies one of the fixed conversational tracks a visitor can
// choose from the main menu.
type Category string

const (
	CategoryBrochure Category = "brochure"
	CategoryBooking  Category = "booking"
	CategoryExplore  Category = "explore"
	CategoryQuestion Category = "question"
	CategoryOther    Category = "other"
)

// ParseCategory maps a raw category string onto the closed category set.
// Unrecognized values map to CategoryOther by policy, never an error.
func ParseCategory(s string) Category {
	switch Category(s) {
	case CategoryBrochure, CategoryBooking, CategoryExplore, CategoryQuestion, CategoryOther:
		return Category(s)
	default:
		return CategoryOther
	}
}

// UIComponent describes a widget the frontend should render alongside a
// message, e.g. category buttons, a preference form or property cards.
type UIComponent struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// Clone returns a copy of the component with a shallow-copied data map, so
// callers can attach per-response data without mutating the state table.
func (c *UIComponent) Clone() *UIComponent {
	if c == nil {
		return nil
	}
	data := make(map[string]any, len(c.Data))
	for k, v := range c.Data {
		data[k] = v
	}
	return &UIComponent{Type: c.Type, Data: data}
}

// DisplayResponse is the flow controller's output contract, consumed by the
// API layer and ultimately the chat widget.
type DisplayResponse struct {
	Message        string         `json:"message"`
	CurrentState   string         `json:"current_state"`
	NextState      string         `json:"next_state,omitempty"`
	UIComponent    *UIComponent   `json:"ui_component,omitempty"`
	ShowMenuButton bool           `json:"show_menu_button"`
	RequiresLLM    bool           `json:"requires_llm"`
	Context        map[string]any `json:"collected_context,omitempty"`
}

// InputKind discriminates the user-input variants the controller accepts.
type InputKind string

const (
	InputText   InputKind = "text"
	InputButton InputKind = "button"
	InputForm   InputKind = "form"
)

// UserInput is a tagged variant for a single user action: free text, a
// button value, or a submitted form. Exactly one payload field is meaningful
// for a given kind.
type UserInput struct {
	Kind InputKind
	Text string         // InputText and InputButton
	Form map[string]any // InputForm
}

// TextInput wraps free text typed by the visitor.
func TextInput(s string) UserInput {
	return UserInput{Kind: InputText, Text: s}
}

// ButtonInput wraps the value of a clicked button.
func ButtonInput(s string) UserInput {
	return UserInput{Kind: InputButton, Text: s}
}

// FormInput wraps a submitted multi-field form payload.
func FormInput(fields map[string]any) UserInput {
	return UserInput{Kind: InputForm, Form: fields}
}

// ParseUserInput converts the wire representation (input_type + untyped
// input_data) into a tagged UserInput. Unknown types and scalar payloads
// degrade to text; a map payload is always treated as a form.
func ParseUserInput(inputType string, data any) UserInput {
	if m, ok := data.(map[string]any); ok {
		return FormInput(m)
	}
	text := ""
	if s, ok := data.(string); ok {
		text = s
	} else if data != nil {
		text = toDisplayString(data)
	}
	switch inputType {
	case "button":
		return ButtonInput(text)
	default:
		return TextInput(text)
	}
}
