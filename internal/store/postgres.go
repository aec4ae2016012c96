package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/naveenvasou/sales-chatbot-widget/internal/models"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore is a Store backed by PostgreSQL, for deployments where the
// widget runs behind more than one replica.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open PostgreSQL connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("PostgreSQL ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgreSQL migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// CreateSession creates a new chat session and returns its session ID.
func (s *PostgresStore) CreateSession(userIP, userAgent string) (string, error) {
	sessionID := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO chat_sessions (session_id, started_at, is_active, user_ip, user_agent) VALUES ($1, $2, TRUE, $3, $4)`,
		sessionID, time.Now(), nilIfEmpty(userIP), nilIfEmpty(userAgent),
	)
	if err != nil {
		slog.Error("PostgresStore CreateSession failed", "error", err)
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	slog.Debug("PostgresStore CreateSession succeeded", "sessionID", sessionID)
	return sessionID, nil
}

// GetSession retrieves a session, or nil when unknown.
func (s *PostgresStore) GetSession(sessionID string) (*models.ChatSession, error) {
	row := s.db.QueryRow(
		`SELECT id, session_id, started_at, ended_at, is_active, message_count, lead_captured, user_ip, user_agent
		 FROM chat_sessions WHERE session_id = $1`, sessionID)
	session, err := scanSession(row)
	// Scan errors come back wrapped, so match the sentinel with errors.Is.
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetSession failed", "error", err, "sessionID", sessionID)
		return nil, err
	}
	return &session, nil
}

// SaveMessage appends a transcript entry and bumps the session's message
// count in the same transaction.
func (s *PostgresStore) SaveMessage(msg models.ChatMessage) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err = tx.Exec(
		`INSERT INTO chat_messages (session_id, role, message, intent, timestamp) VALUES ($1, $2, $3, $4, $5)`,
		msg.SessionID, msg.Role, msg.Message, nilIfEmpty(msg.Intent), ts,
	)
	if err != nil {
		slog.Error("PostgresStore SaveMessage insert failed", "error", err, "sessionID", msg.SessionID)
		return fmt.Errorf("failed to insert message: %w", err)
	}

	_, err = tx.Exec(`UPDATE chat_sessions SET message_count = message_count + 1 WHERE session_id = $1`, msg.SessionID)
	if err != nil {
		slog.Error("PostgresStore SaveMessage count update failed", "error", err, "sessionID", msg.SessionID)
		return fmt.Errorf("failed to update message count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit message: %w", err)
	}
	return nil
}

// GetHistory returns up to limit messages for a session, oldest first.
func (s *PostgresStore) GetHistory(sessionID string, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, session_id, role, message, intent, timestamp FROM chat_messages
		 WHERE session_id = $1 ORDER BY timestamp DESC, id DESC LIMIT $2`, sessionID, limit)
	if err != nil {
		slog.Error("PostgresStore GetHistory query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var messages []models.ChatMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			slog.Error("PostgresStore GetHistory scan failed", "error", err)
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history rows: %w", err)
	}
	return reverseMessages(messages), nil
}

// UpsertLead creates or updates the lead for a session. The existing row is
// locked with SELECT ... FOR UPDATE so the contact-capture transition is
// observed by exactly one caller.
func (s *PostgresStore) UpsertLead(sessionID string, update models.LeadUpdate) (*models.Lead, bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	row := tx.QueryRow(`SELECT `+leadColumns+` FROM leads WHERE session_id = $1 FOR UPDATE`, sessionID)
	existing, err := scanLead(row)

	var lead models.Lead
	hadContact := false
	switch {
	case errors.Is(err, sql.ErrNoRows):
		lead = models.Lead{SessionID: sessionID, LeadStatus: LeadStatusNew, CreatedAt: now}
		applyLeadUpdate(&lead, update, now)
		insErr := tx.QueryRow(
			`INSERT INTO leads (session_id, name, email, phone, purpose, selected_category, location, budget, timeline, property_type, lead_status, lead_score, is_qualified, notes, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			 RETURNING id`,
			lead.SessionID, nilIfEmpty(lead.Name), nilIfEmpty(lead.Email), nilIfEmpty(lead.Phone),
			nilIfEmpty(lead.Purpose), nilIfEmpty(lead.SelectedCategory), nilIfEmpty(lead.Location),
			nilIfEmpty(lead.Budget), nilIfEmpty(lead.Timeline), nilIfEmpty(lead.PropertyType),
			lead.LeadStatus, lead.LeadScore, lead.IsQualified, nilIfEmpty(lead.Notes),
			lead.CreatedAt, lead.UpdatedAt,
		).Scan(&lead.ID)
		if insErr != nil {
			slog.Error("PostgresStore UpsertLead insert failed", "error", insErr, "sessionID", sessionID)
			return nil, false, fmt.Errorf("failed to insert lead: %w", insErr)
		}
	case err != nil:
		slog.Error("PostgresStore UpsertLead select failed", "error", err, "sessionID", sessionID)
		return nil, false, err
	default:
		hadContact = existing.HasContactInfo()
		lead = existing
		applyLeadUpdate(&lead, update, now)
		_, updErr := tx.Exec(
			`UPDATE leads SET name = $1, email = $2, phone = $3, purpose = $4, selected_category = $5, location = $6, budget = $7, timeline = $8, property_type = $9, lead_status = $10, lead_score = $11, is_qualified = $12, notes = $13, updated_at = $14
			 WHERE session_id = $15`,
			nilIfEmpty(lead.Name), nilIfEmpty(lead.Email), nilIfEmpty(lead.Phone),
			nilIfEmpty(lead.Purpose), nilIfEmpty(lead.SelectedCategory), nilIfEmpty(lead.Location),
			nilIfEmpty(lead.Budget), nilIfEmpty(lead.Timeline), nilIfEmpty(lead.PropertyType),
			lead.LeadStatus, lead.LeadScore, lead.IsQualified, nilIfEmpty(lead.Notes),
			lead.UpdatedAt, sessionID,
		)
		if updErr != nil {
			slog.Error("PostgresStore UpsertLead update failed", "error", updErr, "sessionID", sessionID)
			return nil, false, fmt.Errorf("failed to update lead: %w", updErr)
		}
	}

	if _, err := tx.Exec(`UPDATE chat_sessions SET lead_captured = TRUE WHERE session_id = $1`, sessionID); err != nil {
		slog.Error("PostgresStore UpsertLead session flag update failed", "error", err, "sessionID", sessionID)
		return nil, false, fmt.Errorf("failed to flag session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit lead upsert: %w", err)
	}

	contactCaptured := !hadContact && lead.HasContactInfo()
	slog.Debug("PostgresStore UpsertLead succeeded", "sessionID", sessionID, "contact_captured", contactCaptured)
	return &lead, contactCaptured, nil
}

// GetLeadBySession retrieves the lead for a session, or nil.
func (s *PostgresStore) GetLeadBySession(sessionID string) (*models.Lead, error) {
	row := s.db.QueryRow(`SELECT `+leadColumns+` FROM leads WHERE session_id = $1`, sessionID)
	lead, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetLeadBySession failed", "error", err, "sessionID", sessionID)
		return nil, err
	}
	return &lead, nil
}

// ListLeads returns leads newest-first.
func (s *PostgresStore) ListLeads(offset, limit int) ([]models.Lead, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`SELECT `+leadColumns+` FROM leads ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		slog.Error("PostgresStore ListLeads query failed", "error", err)
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer rows.Close()

	var leads []models.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			slog.Error("PostgresStore ListLeads scan failed", "error", err)
			return nil, err
		}
		leads = append(leads, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate lead rows: %w", err)
	}
	return leads, nil
}

// SaveSessionContext merges keys into the session's stored context JSON.
func (s *PostgresStore) SaveSessionContext(sessionID string, context map[string]any) error {
	if len(context) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var raw sql.NullString
	err = tx.QueryRow(`SELECT context_data FROM chat_sessions WHERE session_id = $1 FOR UPDATE`, sessionID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("session not found: %s", sessionID)
	}
	if err != nil {
		slog.Error("PostgresStore SaveSessionContext select failed", "error", err, "sessionID", sessionID)
		return err
	}

	merged := make(map[string]any)
	if raw.Valid && raw.String != "" {
		if err := json.Unmarshal([]byte(raw.String), &merged); err != nil {
			slog.Warn("PostgresStore SaveSessionContext discarding malformed stored context", "error", err, "sessionID", sessionID)
			merged = make(map[string]any)
		}
	}
	for k, v := range context {
		merged[k] = v
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("failed to marshal session context: %w", err)
	}
	if _, err := tx.Exec(`UPDATE chat_sessions SET context_data = $1 WHERE session_id = $2`, string(data), sessionID); err != nil {
		slog.Error("PostgresStore SaveSessionContext update failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to update session context: %w", err)
	}
	return tx.Commit()
}

// GetSessionContext returns the session's stored conversation context.
func (s *PostgresStore) GetSessionContext(sessionID string) (map[string]any, error) {
	var raw sql.NullString
	err := s.db.QueryRow(`SELECT context_data FROM chat_sessions WHERE session_id = $1`, sessionID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return map[string]any{}, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetSessionContext failed", "error", err, "sessionID", sessionID)
		return nil, err
	}
	context := make(map[string]any)
	if raw.Valid && raw.String != "" {
		if err := json.Unmarshal([]byte(raw.String), &context); err != nil {
			slog.Warn("PostgresStore GetSessionContext malformed stored context", "error", err, "sessionID", sessionID)
			return map[string]any{}, nil
		}
	}
	return context, nil
}

// EndSession marks a session inactive and stamps its end time.
func (s *PostgresStore) EndSession(sessionID string) error {
	_, err := s.db.Exec(`UPDATE chat_sessions SET is_active = FALSE, ended_at = $1 WHERE session_id = $2`, time.Now(), sessionID)
	if err != nil {
		slog.Error("PostgresStore EndSession failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to end session: %w", err)
	}
	return nil
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing PostgreSQL database connection")
	return s.db.Close()
}
