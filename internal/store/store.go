// Package store provides storage backends for the chat widget service.
//
// It includes SQLite (default) and PostgreSQL implementations behind a
// single Store interface, plus an in-memory store for tests.
package store

import (
	"strings"
	"time"

	"github.com/naveenvasou/sales-chatbot-widget/internal/models"
)

// Store is the persistence collaborator the API layer depends on. The flow
// controller never touches storage directly; it is stateless between calls
// and relies on the caller to reconstruct context from here.
type Store interface {
	// CreateSession creates a new chat session and returns its session ID.
	CreateSession(userIP, userAgent string) (string, error)
	// GetSession retrieves a session, or nil when unknown.
	GetSession(sessionID string) (*models.ChatSession, error)
	// SaveMessage appends a transcript entry and increments the session's
	// message count.
	SaveMessage(msg models.ChatMessage) error
	// GetHistory returns up to limit messages for a session, oldest first.
	GetHistory(sessionID string, limit int) ([]models.ChatMessage, error)
	// UpsertLead creates or updates the lead for a session in one
	// transaction. The returned flag reports whether this write was the
	// transition from "no contact info" to "has contact info"; it is the
	// atomic trigger for the new-lead notification.
	UpsertLead(sessionID string, update models.LeadUpdate) (*models.Lead, bool, error)
	// GetLeadBySession retrieves the lead for a session, or nil.
	GetLeadBySession(sessionID string) (*models.Lead, error)
	// ListLeads returns leads newest-first for the admin dashboard.
	ListLeads(offset, limit int) ([]models.Lead, error)
	// SaveSessionContext merges the given keys into the session's stored
	// conversation context.
	SaveSessionContext(sessionID string, context map[string]any) error
	// GetSessionContext returns the session's stored conversation context;
	// never nil for an existing session.
	GetSessionContext(sessionID string) (map[string]any, error)
	// EndSession marks a session inactive and stamps its end time.
	EndSession(sessionID string) error
	// Close releases the underlying resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	// DSN is either a SQLite file path or a PostgreSQL connection string.
	DSN string
}

// Option defines a configuration option for store construction.
type Option func(*Opts)

// WithSQLiteDSN configures a SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN configures a PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType reports "postgres" for PostgreSQL-looking DSNs and "sqlite"
// otherwise (file paths).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// Lead status values.
const (
	LeadStatusNew       = "new"
	LeadStatusQualified = "qualified"
)

// applyLeadUpdate applies a partial update to a lead in place and stamps
// UpdatedAt. Shared by every backend so merge semantics cannot drift.
func applyLeadUpdate(lead *models.Lead, update models.LeadUpdate, now time.Time) {
	if update.Name != nil {
		lead.Name = *update.Name
	}
	if update.Email != nil {
		lead.Email = *update.Email
	}
	if update.Phone != nil {
		lead.Phone = *update.Phone
	}
	if update.Purpose != nil {
		lead.Purpose = *update.Purpose
	}
	if update.SelectedCategory != nil {
		lead.SelectedCategory = *update.SelectedCategory
	}
	if update.Location != nil {
		lead.Location = *update.Location
	}
	if update.Budget != nil {
		lead.Budget = *update.Budget
	}
	if update.Timeline != nil {
		lead.Timeline = *update.Timeline
	}
	if update.PropertyType != nil {
		lead.PropertyType = *update.PropertyType
	}
	if update.LeadStatus != nil {
		lead.LeadStatus = *update.LeadStatus
	}
	if update.LeadScore != nil {
		lead.LeadScore = *update.LeadScore
	}
	if update.IsQualified != nil {
		lead.IsQualified = *update.IsQualified
	}
	if update.AppendNotes != nil && *update.AppendNotes != "" {
		if lead.Notes != "" {
			lead.Notes = lead.Notes + "; " + *update.AppendNotes
		} else {
			lead.Notes = *update.AppendNotes
		}
	}
	lead.UpdatedAt = now
}
