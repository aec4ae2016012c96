package store

import (
	"database/sql"
	"fmt"

	"github.com/naveenvasou/sales-chatbot-widget/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// leadColumns is the column list every lead query selects, in scanLead order.
const leadColumns = `id, session_id, name, email, phone, purpose, selected_category, location, budget, timeline, property_type, lead_status, lead_score, is_qualified, notes, created_at, updated_at`

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanLead scans a Lead row with nullable text columns.
func scanLead(row scanner) (models.Lead, error) {
	var l models.Lead
	var name, email, phone, purpose, category, location, budget, timeline, propertyType, notes sql.NullString
	err := row.Scan(
		&l.ID, &l.SessionID, &name, &email, &phone, &purpose, &category,
		&location, &budget, &timeline, &propertyType, &l.LeadStatus,
		&l.LeadScore, &l.IsQualified, &notes, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return l, fmt.Errorf("scan lead failed: %w", err)
	}
	l.Name = name.String
	l.Email = email.String
	l.Phone = phone.String
	l.Purpose = purpose.String
	l.SelectedCategory = category.String
	l.Location = location.String
	l.Budget = budget.String
	l.Timeline = timeline.String
	l.PropertyType = propertyType.String
	l.Notes = notes.String
	return l, nil
}

// scanSession scans a ChatSession row with nullable columns.
func scanSession(row scanner) (models.ChatSession, error) {
	var s models.ChatSession
	var endedAt sql.NullTime
	var userIP, userAgent sql.NullString
	err := row.Scan(
		&s.ID, &s.SessionID, &s.StartedAt, &endedAt, &s.IsActive,
		&s.MessageCount, &s.LeadCaptured, &userIP, &userAgent,
	)
	if err != nil {
		return s, fmt.Errorf("scan session failed: %w", err)
	}
	if endedAt.Valid {
		s.EndedAt = &endedAt.Time
	}
	s.UserIP = userIP.String
	s.UserAgent = userAgent.String
	return s, nil
}

// scanMessage scans a ChatMessage row.
func scanMessage(rows *sql.Rows) (models.ChatMessage, error) {
	var m models.ChatMessage
	var intent sql.NullString
	err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Message, &intent, &m.Timestamp)
	if err != nil {
		return m, fmt.Errorf("scan message failed: %w", err)
	}
	m.Intent = intent.String
	return m, nil
}

// reverseMessages flips a newest-first result set into oldest-first order.
func reverseMessages(msgs []models.ChatMessage) []models.ChatMessage {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs
}
