package models

import (
	"fmt"
	"strings"
	"time"
)

// Lead is the durable record of a qualified (or qualifying) visitor, keyed
// by session ID. Created on the first contact-field write, updated on every
// later capture, never deleted.
type Lead struct {
	ID        int64  `json:"id"`
	SessionID string `json:"session_id"`

	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`

	Purpose          string `json:"purpose,omitempty"`
	SelectedCategory string `json:"selected_category,omitempty"`
	Location         string `json:"location,omitempty"`
	Budget           string `json:"budget,omitempty"`
	Timeline         string `json:"timeline,omitempty"`
	PropertyType     string `json:"property_type,omitempty"`

	LeadStatus  string `json:"lead_status"`
	LeadScore   int    `json:"lead_score"`
	IsQualified bool   `json:"is_qualified"`

	Notes string `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasContactInfo reports whether the lead carries a way to reach the
// visitor. The new-lead notification fires on the transition from false to
// true for a session.
func (l *Lead) HasContactInfo() bool {
	return l != nil && (l.Email != "" || l.Phone != "")
}

// LeadUpdate carries a partial lead update; nil fields are left untouched.
type LeadUpdate struct {
	Name             *string
	Email            *string
	Phone            *string
	Purpose          *string
	SelectedCategory *string
	Location         *string
	Budget           *string
	Timeline         *string
	PropertyType     *string
	LeadStatus       *string
	LeadScore        *int
	IsQualified      *bool
	// AppendNotes is appended to the existing notes ("; "-separated) rather
	// than replacing them.
	AppendNotes *string
}

// IsEmpty reports whether the update would change nothing.
func (u LeadUpdate) IsEmpty() bool {
	return u.Name == nil && u.Email == nil && u.Phone == nil &&
		u.Purpose == nil && u.SelectedCategory == nil && u.Location == nil &&
		u.Budget == nil && u.Timeline == nil && u.PropertyType == nil &&
		u.LeadStatus == nil && u.LeadScore == nil && u.IsQualified == nil &&
		u.AppendNotes == nil
}

// ChatMessage is one append-only transcript entry for a session.
type ChatMessage struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"` // "user" or "assistant"
	Message   string    `json:"message"`
	Intent    string    `json:"intent,omitempty"` // state label or action tag
	Timestamp time.Time `json:"timestamp"`
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatSession tracks one conversation's lifecycle.
type ChatSession struct {
	ID        int64  `json:"id"`
	SessionID string `json:"session_id"`

	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	IsActive  bool       `json:"is_active"`

	MessageCount int  `json:"message_count"`
	LeadCaptured bool `json:"lead_captured"`

	UserIP    string `json:"user_ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// StringPtr returns a pointer to s; convenience for building LeadUpdates.
func StringPtr(s string) *string { return &s }

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool { return &b }

// toDisplayString renders an arbitrary context value for human display:
// string slices join with ", ", everything else falls back to fmt.Sprint.
func toDisplayString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []string:
		return strings.Join(val, ", ")
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, toDisplayString(item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(v)
	}
}

// DisplayString is the exported form of toDisplayString for other packages
// that render context values (template substitution, lead persistence).
func DisplayString(v any) string { return toDisplayString(v) }
