package models

import (
	"fmt"
	"strings"
)

// API Response types for consistent JSON responses

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates a successful operation.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates a failed operation.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string `json:"status"`            // status of the API response
	Message string `json:"message,omitempty"` // optional message for error responses or additional info
	Result  any    `json:"result,omitempty"`  // optional result data for successful responses
}

// Success creates a successful API response with optional result data.
func Success(result any) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result any) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}

// Chat endpoint request/response shapes

// InitChatRequest starts a new chat session. The body is currently empty
// but kept as a struct so fields (locale, referrer) can be added without a
// wire break.
type InitChatRequest struct{}

// CategorySelectRequest records the visitor's category choice.
type CategorySelectRequest struct {
	SessionID string `json:"session_id"`
	Category  string `json:"category"`
}

// Validate checks required fields on a category selection.
func (r *CategorySelectRequest) Validate() error {
	if strings.TrimSpace(r.SessionID) == "" {
		return fmt.Errorf("missing required field: session_id")
	}
	if strings.TrimSpace(r.Category) == "" {
		return fmt.Errorf("missing required field: category")
	}
	return nil
}

// LeadCaptureRequest carries the visitor's contact form submission.
type LeadCaptureRequest struct {
	SessionID string `json:"session_id"`
	Category  string `json:"category"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// Validate checks required fields on a lead submission. Field-format
// validation (email shape, phone length) happens in the flow package and is
// reported per-field, not as a request error.
func (r *LeadCaptureRequest) Validate() error {
	if strings.TrimSpace(r.SessionID) == "" {
		return fmt.Errorf("missing required field: session_id")
	}
	return nil
}

// UserInputRequest carries one turn of user input: a button click, a form
// submission, or free text.
type UserInputRequest struct {
	SessionID    string `json:"session_id"`
	InputType    string `json:"input_type"` // "button", "form", "text"
	InputData    any    `json:"input_data"`
	CurrentState string `json:"current_state"`
}

// Validate checks required fields on a user-input turn.
func (r *UserInputRequest) Validate() error {
	if strings.TrimSpace(r.SessionID) == "" {
		return fmt.Errorf("missing required field: session_id")
	}
	if strings.TrimSpace(r.CurrentState) == "" {
		return fmt.Errorf("missing required field: current_state")
	}
	return nil
}

// MenuRequest asks to return to the main menu from any point in any track.
type MenuRequest struct {
	SessionID string `json:"session_id"`
}

// Validate checks required fields on a menu request.
func (r *MenuRequest) Validate() error {
	if strings.TrimSpace(r.SessionID) == "" {
		return fmt.Errorf("missing required field: session_id")
	}
	return nil
}

// EndChatRequest ends the session.
type EndChatRequest struct {
	SessionID string `json:"session_id"`
}

// Validate checks required fields on an end-chat request.
func (r *EndChatRequest) Validate() error {
	if strings.TrimSpace(r.SessionID) == "" {
		return fmt.Errorf("missing required field: session_id")
	}
	return nil
}

// ChatResponse is the standard chat envelope returned by every conversation
// endpoint.
type ChatResponse struct {
	SessionID      string         `json:"session_id"`
	Message        string         `json:"message"`
	CurrentState   string         `json:"current_state"`
	NextState      string         `json:"next_state,omitempty"`
	UIComponent    *UIComponent   `json:"ui_component,omitempty"`
	ShowMenuButton bool           `json:"show_menu_button"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}
