// Package flow implements the conversation flow controller and its state
// table: a static mapping from flow state to display template, transition
// target and flags.
package flow

import (
	"errors"
	"fmt"

	"github.com/naveenvasou/sales-chatbot-widget/internal/models"
)

// ErrStateNotFound is returned by Table.Lookup for an unrecognized state.
// Callers must treat it as recoverable and fall back to a default state.
var ErrStateNotFound = errors.New("flow state not found")

// StateTemplate is the display template for one flow state: message text
// with {key} placeholders, an optional UI descriptor, a designated next
// state (empty for states whose transition is driven by a dedicated
// endpoint, and for the terminal state), and presentation flags.
type StateTemplate struct {
	Message        string
	UIComponent    *models.UIComponent
	NextState      models.FlowState
	ShowMenuButton bool
	// RequiresLLM marks states whose message is produced by the AI
	// responder before being shown; their Message is empty by design.
	RequiresLLM bool
}

// Table is the immutable, build-once state lookup table. Construct it with
// NewTable and inject it into the Controller; it holds no mutable state and
// is safe for concurrent use.
type Table struct {
	states map[models.FlowState]StateTemplate
	starts map[models.Category]models.FlowState
	// contextKeys names the semantic context key a free-text or button
	// input fills when it arrives at the given state.
	contextKeys map[models.FlowState]string
}

// Lookup returns the template for a state, or ErrStateNotFound.
func (t *Table) Lookup(state models.FlowState) (StateTemplate, error) {
	tmpl, ok := t.states[state]
	if !ok {
		return StateTemplate{}, fmt.Errorf("%w: %q", ErrStateNotFound, state)
	}
	return tmpl, nil
}

// StartState resolves a category to its track's starting state.
func (t *Table) StartState(category models.Category) models.FlowState {
	if start, ok := t.starts[category]; ok {
		return start
	}
	return t.starts[models.CategoryOther]
}

// ContextKey returns the semantic context key for scalar input at the given
// state, if one is defined.
func (t *Table) ContextKey(state models.FlowState) (string, bool) {
	key, ok := t.contextKeys[state]
	return key, ok
}

// States returns the set of defined state labels. Used by tests to verify
// table closure.
func (t *Table) States() []models.FlowState {
	out := make([]models.FlowState, 0, len(t.states))
	for s := range t.states {
		out = append(out, s)
	}
	return out
}

// propertyTypeLabels maps a property-type button value to its display label.
var propertyTypeLabels = map[string]string{
	"apartment":  "Apartments",
	"villa":      "Villas",
	"plot":       "Residential Plots",
	"commercial": "Commercial Spaces",
}

// PropertyTypeLabel derives the human-readable label for a property-type
// choice, with a generic default for unrecognized values.
func PropertyTypeLabel(value string) string {
	if label, ok := propertyTypeLabels[value]; ok {
		return label
	}
	return "Properties"
}

// Greeting and lead-capture copy shared between the table and the API layer.
const (
	GreetingMessage    = "Welcome to Vivid Realty - Chennai's leading Real Estate developer. How can I assist you today?"
	LeadCaptureMessage = "To help you further, please provide your contact details. It'll just take a moment! 📝"
	MainMenuMessage    = "What else can I help you with? 🏠"
)

// CategoryButtons returns the main-menu category selector component.
func CategoryButtons() *models.UIComponent {
	return &models.UIComponent{
		Type: "category_buttons",
		Data: map[string]any{
			"categories": []map[string]any{
				{"id": "brochure", "label": "Get Property Brochure", "emoji": "📋"},
				{"id": "booking", "label": "Book an Appointment", "emoji": "📅"},
				{"id": "explore", "label": "Explore Properties / Pricing", "emoji": "💰"},
				{"id": "question", "label": "Ask a Question / Talk to Agent", "emoji": "💬"},
				{"id": "other", "label": "Other Queries", "emoji": "❓"},
			},
		},
	}
}

// LeadFormComponent returns the contact-details form component.
func LeadFormComponent() *models.UIComponent {
	return &models.UIComponent{
		Type: "lead_form",
		Data: map[string]any{
			"fields": []map[string]any{
				{"name": "name", "label": "Full Name", "type": "text", "required": true},
				{"name": "email", "label": "Email Address", "type": "email", "required": true},
				{"name": "phone", "label": "Phone / WhatsApp", "type": "tel", "required": true},
			},
		},
	}
}

func budgetOptions() []map[string]any {
	return []map[string]any{
		{"value": "under_50", "label": "Under ₹50 Lakhs"},
		{"value": "50_100", "label": "₹50L - ₹1 Crore"},
		{"value": "100_200", "label": "₹1 Cr - ₹2 Crore"},
		{"value": "200_plus", "label": "₹2 Crore+"},
		{"value": "flexible", "label": "Flexible"},
	}
}

func propertyTypeOptions() []map[string]any {
	return []map[string]any{
		{"value": "apartment", "label": "🏢 Apartment"},
		{"value": "villa", "label": "🏡 Villa"},
		{"value": "plot", "label": "📐 Plot"},
		{"value": "commercial", "label": "🏪 Commercial"},
	}
}

func locationOptions() []string {
	return []string{"Mumbai", "Chennai", "Bangalore", "Pune", "Hyderabad", "Delhi NCR"}
}

// NewTable builds the authoritative state table. The table is pure data;
// the only behavior is lookup.
func NewTable() *Table {
	states := map[models.FlowState]StateTemplate{
		// ====== COMMON ======
		models.StateGreeting: {
			Message:     GreetingMessage,
			UIComponent: CategoryButtons(),
			NextState:   models.StateCategorySelection,
		},
		models.StateCategorySelection: {
			Message:     MainMenuMessage,
			UIComponent: CategoryButtons(),
			// Transition out of category selection is driven by the
			// select-category endpoint, not the table.
		},
		models.StateLeadCapture: {
			Message:        LeadCaptureMessage,
			UIComponent:    LeadFormComponent(),
			ShowMenuButton: true,
		},

		// ====== BROCHURE TRACK ======
		models.StateBrochureStart: {
			Message:        "✅ Perfect, {name}! Your property brochure is on its way to your email.\n\nLet's find properties that match your needs! 🏡",
			NextState:      models.StateBrochurePreferences,
			ShowMenuButton: true,
		},
		models.StateBrochurePreferences: {
			Message: "Please share your preferences:",
			UIComponent: &models.UIComponent{
				Type: "preference_form",
				Data: map[string]any{
					"fields": []map[string]any{
						{"name": "budget", "label": "💰 Budget Range", "type": "dropdown", "options": budgetOptions(), "required": true},
						{"name": "location", "label": "📍 Preferred Location", "type": "multiselect_chips", "options": locationOptions(), "required": true},
						{"name": "property_type", "label": "🏠 Property Type", "type": "buttons", "options": propertyTypeOptions(), "required": true},
					},
					"submit_label": "Find Properties",
				},
			},
			NextState:      models.StateBrochurePreferencesCollected,
			ShowMenuButton: true,
		},
		models.StateBrochurePreferencesCollected: {
			Message:        "Excellent! Based on your preferences:\n\n{preferences_summary}\n\nYou'll receive:\n✅ General property brochure\n✅ Personalized recommendations matching your criteria\n\nBoth will be sent to your email within the next few minutes!",
			NextState:      models.StateBrochureConfirmation,
			ShowMenuButton: true,
		},
		models.StateBrochureConfirmation: {
			Message: "Is there anything specific you'd like to know about our properties?",
			UIComponent: &models.UIComponent{
				Type: "buttons",
				Data: map[string]any{
					"options": []map[string]any{
						{"value": "amenities", "label": "🏊 Amenities"},
						{"value": "payment", "label": "💳 Payment Plans"},
						{"value": "possession", "label": "🔑 Possession Timeline"},
						{"value": "nothing", "label": "Nothing, I'm good!"},
					},
				},
			},
			NextState:      models.StateBrochureComplete,
			ShowMenuButton: true,
		},
		models.StateBrochureComplete: {
			Message: "Perfect! Our team will reach out to you soon with detailed information.\n\nThank you for your interest! 🙏",
			UIComponent: &models.UIComponent{
				Type: "buttons",
				Data: map[string]any{
					"options": []map[string]any{
						{"value": "menu", "label": "🏠 Back to Main Menu"},
						{"value": "end", "label": "👋 End Chat"},
					},
				},
			},
			NextState: models.StateHandoff,
		},

		// ====== BOOKING TRACK ======
		models.StateBookingStart: {
			Message: "✅ Great! Let's schedule your site visit! 📅\n\nAre you interested in visiting a specific property?",
			UIComponent: &models.UIComponent{
				Type: "buttons",
				Data: map[string]any{
					"options": []map[string]any{
						{"value": "specific", "label": "Yes, specific property"},
						{"value": "any", "label": "Show me options"},
						{"value": "not_sure", "label": "Not sure yet"},
					},
				},
			},
			NextState:      models.StateBookingPropertyInterest,
			ShowMenuButton: true,
		},
		models.StateBookingPropertyInterest: {
			Message: "When would you prefer to visit?",
			UIComponent: &models.UIComponent{
				Type: "buttons",
				Data: map[string]any{
					"options": []map[string]any{
						{"value": "this_week", "label": "📅 This Week"},
						{"value": "next_week", "label": "📅 Next Week"},
						{"value": "flexible", "label": "🤷 Flexible"},
					},
				},
			},
			NextState:      models.StateBookingDatePreference,
			ShowMenuButton: true,
		},
		models.StateBookingDatePreference: {
			Message: "What time works best for you?",
			UIComponent: &models.UIComponent{
				Type: "buttons",
				Data: map[string]any{
					"options": []map[string]any{
						{"value": "morning", "label": "🌅 Morning (9 AM - 12 PM)"},
						{"value": "afternoon", "label": "☀️ Afternoon (12 PM - 4 PM)"},
						{"value": "evening", "label": "🌆 Evening (4 PM - 7 PM)"},
					},
				},
			},
			NextState:      models.StateBookingTimePreference,
			ShowMenuButton: true,
		},
		models.StateBookingTimePreference: {
			Message: "Any special requests or requirements for the visit? (Optional)",
			UIComponent: &models.UIComponent{
				Type: "text_input",
				Data: map[string]any{
					"placeholder": "E.g., Need wheelchair access, want to see specific floor plans...",
					"optional":    true,
					"skip_label":  "No special requests",
				},
			},
			NextState:      models.StateBookingSpecialRequests,
			ShowMenuButton: true,
		},
		models.StateBookingSpecialRequests: {
			Message:        "✅ Perfect! Your site visit has been scheduled!\n\n📋 Summary:\n{booking_summary}\n\nOur agent will call you at {phone} to confirm the exact date and time.\n\nLooking forward to showing you our properties! 🏡",
			NextState:      models.StateBookingConfirmation,
			ShowMenuButton: true,
		},
		models.StateBookingConfirmation: {
			Message: "Would you like to do anything else?",
			UIComponent: &models.UIComponent{
				Type: "buttons",
				Data: map[string]any{
					"options": []map[string]any{
						{"value": "brochure", "label": "📋 Get Brochure"},
						{"value": "menu", "label": "🏠 Main Menu"},
						{"value": "end", "label": "👋 End Chat"},
					},
				},
			},
			NextState: models.StateBookingComplete,
		},
		models.StateBookingComplete: {
			Message:   "Thank you! We'll be in touch soon! 🙏",
			NextState: models.StateHandoff,
		},

		// ====== EXPLORE TRACK ======
		models.StateExploreStart: {
			Message: "Let's find the perfect property for you! 🔍\n\nWhat type of property are you interested in?",
			UIComponent: &models.UIComponent{
				Type: "buttons",
				Data: map[string]any{"options": propertyTypeOptions()},
			},
			NextState:      models.StateExplorePreferences,
			ShowMenuButton: true,
		},
		models.StateExplorePreferences: {
			Message: "Great choice! Please share your preferences:",
			UIComponent: &models.UIComponent{
				Type: "preference_form",
				Data: map[string]any{
					"fields": []map[string]any{
						{"name": "budget", "label": "💰 Budget Range", "type": "dropdown", "options": budgetOptions(), "required": true},
						{"name": "location", "label": "📍 Preferred Location(s)", "type": "multiselect_chips", "options": locationOptions(), "required": true},
					},
					"submit_label": "Show Properties",
				},
			},
			NextState:      models.StateExploreResults,
			ShowMenuButton: true,
		},
		models.StateExploreResults: {
			Message: "Here are {property_type_label} matching your criteria:\n\n{search_summary}\n\nOur agent will send detailed listings with photos, floor plans and pricing to your email: {email}",
			UIComponent: &models.UIComponent{
				Type: "buttons",
				Data: map[string]any{
					"options": []map[string]any{
						{"value": "callback", "label": "📞 Request Callback"},
						{"value": "visit", "label": "📅 Schedule Visit"},
						{"value": "menu", "label": "🏠 Main Menu"},
					},
				},
			},
			NextState: models.StateExploreFollowup,
		},
		models.StateExploreFollowup: {
			Message:   "Perfect! We'll be in touch with detailed information soon! 🙏",
			NextState: models.StateExploreComplete,
		},
		models.StateExploreComplete: {
			Message:   "Thank you for your interest!",
			NextState: models.StateHandoff,
		},

		// ====== FAQ TRACK ======
		models.StateFAQStart: {
			Message: "I'm here to answer your questions! 💬\n\nWhat would you like to know about?",
			UIComponent: &models.UIComponent{
				Type: "buttons",
				Data: map[string]any{
					"options": []map[string]any{
						{"value": "loan", "label": "💰 Loans & Finance"},
						{"value": "amenities", "label": "🏊 Amenities"},
						{"value": "documentation", "label": "📄 Documentation"},
						{"value": "possession", "label": "🔑 Possession Timeline"},
						{"value": "custom", "label": "❓ Other Question"},
					},
				},
			},
			NextState:      models.StateFAQCategorySelect,
			ShowMenuButton: true,
		},
		models.StateFAQCategorySelect: {
			// Message is produced by the AI responder.
			Message:        "",
			NextState:      models.StateFAQHandle,
			ShowMenuButton: true,
			RequiresLLM:    true,
		},
		models.StateFAQHandle: {
			Message: "Is there anything else I can help you with?",
			UIComponent: &models.UIComponent{
				Type: "buttons",
				Data: map[string]any{
					"options": []map[string]any{
						{"value": "another", "label": "❓ Ask Another Question"},
						{"value": "agent", "label": "💬 Talk to Agent"},
						{"value": "menu", "label": "🏠 Main Menu"},
					},
				},
			},
			NextState: models.StateFAQFollowup,
		},
		models.StateFAQFollowup: {
			Message:   "Thank you! Our team is here to help! 🙏",
			NextState: models.StateFAQComplete,
		},
		models.StateFAQComplete: {
			Message:   "",
			NextState: models.StateHandoff,
		},

		// ====== OTHER QUERIES ======
		models.StateOtherStart: {
			Message: "Please tell me what you're looking for, and I'll do my best to help! 💬",
			UIComponent: &models.UIComponent{
				Type: "text_input",
				Data: map[string]any{"placeholder": "Type your question or query..."},
			},
			NextState:      models.StateOtherInput,
			ShowMenuButton: true,
		},
		models.StateOtherInput: {
			Message: "Thank you for your query. Our agent will contact you shortly to assist with: \"{query}\"",
			UIComponent: &models.UIComponent{
				Type: "buttons",
				Data: map[string]any{
					"options": []map[string]any{
						{"value": "menu", "label": "🏠 Main Menu"},
						{"value": "end", "label": "👋 End Chat"},
					},
				},
			},
			NextState: models.StateOtherHandled,
		},
		models.StateOtherHandled: {
			Message:   "We'll be in touch soon! 🙏",
			NextState: models.StateOtherComplete,
		},
		models.StateOtherComplete: {
			Message:   "",
			NextState: models.StateHandoff,
		},

		// ====== TERMINAL ======
		models.StateHandoff: {
			Message: "Thank you for chatting with us! Our team will be in touch soon. Have a great day! 🙏✨",
			UIComponent: &models.UIComponent{
				Type: "buttons",
				Data: map[string]any{
					"options": []map[string]any{
						{"value": "restart", "label": "🔄 Start Over"},
						{"value": "end", "label": "👋 Close Chat"},
					},
				},
			},
			NextState: models.StateEnded,
		},
		models.StateEnded: {
			Message: "",
			// No outgoing edge: reaching "ended" concludes the track.
		},
	}

	starts := map[models.Category]models.FlowState{
		models.CategoryBrochure: models.StateBrochureStart,
		models.CategoryBooking:  models.StateBookingStart,
		models.CategoryExplore:  models.StateExploreStart,
		models.CategoryQuestion: models.StateFAQStart,
		models.CategoryOther:    models.StateOtherStart,
	}

	contextKeys := map[models.FlowState]string{
		models.StateExploreStart:            "property_type",
		models.StateBookingStart:            "property_interest",
		models.StateBookingPropertyInterest: "visit_date",
		models.StateBookingDatePreference:   "visit_time",
		models.StateBookingTimePreference:   "special_requests",
		models.StateOtherStart:              "query",
		models.StateFAQStart:                "faq_topic",
	}

	return &Table{states: states, starts: starts, contextKeys: contextKeys}
}
