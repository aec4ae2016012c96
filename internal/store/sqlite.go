// Package store provides storage backends for the chat widget service.
//
// This file implements the SQLite-backed store, the default for single-node
// deployments.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "embed"

	"github.com/google/uuid"
	"github.com/naveenvasou/sales-chatbot-widget/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore is a Store backed by a local SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN is a file path to the SQLite database file; its directory is
// created if missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Write transactions take the lock up front and queue behind a busy
	// timeout, so concurrent upserts for one session wait instead of
	// failing with SQLITE_BUSY.
	connStr := dsn
	if strings.Contains(connStr, "?") {
		connStr += "&_txlock=immediate&_busy_timeout=5000"
	} else {
		connStr += "?_txlock=immediate&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// CreateSession creates a new chat session and returns its session ID.
func (s *SQLiteStore) CreateSession(userIP, userAgent string) (string, error) {
	sessionID := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO chat_sessions (session_id, started_at, is_active, user_ip, user_agent) VALUES (?, ?, 1, ?, ?)`,
		sessionID, time.Now(), nilIfEmpty(userIP), nilIfEmpty(userAgent),
	)
	if err != nil {
		slog.Error("SQLiteStore CreateSession failed", "error", err)
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	slog.Debug("SQLiteStore CreateSession succeeded", "sessionID", sessionID)
	return sessionID, nil
}

// GetSession retrieves a session, or nil when unknown.
func (s *SQLiteStore) GetSession(sessionID string) (*models.ChatSession, error) {
	row := s.db.QueryRow(
		`SELECT id, session_id, started_at, ended_at, is_active, message_count, lead_captured, user_ip, user_agent
		 FROM chat_sessions WHERE session_id = ?`, sessionID)
	session, err := scanSession(row)
	// Scan errors come back wrapped, so match the sentinel with errors.Is.
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetSession failed", "error", err, "sessionID", sessionID)
		return nil, err
	}
	return &session, nil
}

// SaveMessage appends a transcript entry and bumps the session's message
// count in the same transaction.
func (s *SQLiteStore) SaveMessage(msg models.ChatMessage) error {
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
		`INSERT INTO chat_messages (session_id, role, message, intent, timestamp) VALUES (?, ?, ?, ?, ?)`,
		msg.SessionID, msg.Role, msg.Message, nilIfEmpty(msg.Intent), ts,
	)
	if err != nil {
		slog.Error("SQLiteStore SaveMessage insert failed", "error", err, "sessionID", msg.SessionID)
		return fmt.Errorf("failed to insert message: %w", err)
	}

	_, err = tx.Exec(`UPDATE chat_sessions SET message_count = message_count + 1 WHERE session_id = ?`, msg.SessionID)
	if err != nil {
		slog.Error("SQLiteStore SaveMessage count update failed", "error", err, "sessionID", msg.SessionID)
		return fmt.Errorf("failed to update message count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit message: %w", err)
	}
	slog.Debug("SQLiteStore SaveMessage succeeded", "sessionID", msg.SessionID, "role", msg.Role)
	return nil
}

// GetHistory returns up to limit messages for a session, oldest first.
func (s *SQLiteStore) GetHistory(sessionID string, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, session_id, role, message, intent, timestamp FROM chat_messages
		 WHERE session_id = ? ORDER BY timestamp DESC, id DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		slog.Error("SQLiteStore GetHistory query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var messages []models.ChatMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			slog.Error("SQLiteStore GetHistory scan failed", "error", err)
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history rows: %w", err)
	}
	slog.Debug("SQLiteStore GetHistory succeeded", "sessionID", sessionID, "count", len(messages))
	return reverseMessages(messages), nil
}

// UpsertLead creates or updates the lead for a session. The contact-capture
// check runs inside the same transaction as the write, so concurrent
// submits for one session observe exactly one false→true transition.
func (s *SQLiteStore) UpsertLead(sessionID string, update models.LeadUpdate) (*models.Lead, bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	row := tx.QueryRow(`SELECT `+leadColumns+` FROM leads WHERE session_id = ?`, sessionID)
	existing, err := scanLead(row)

	var lead models.Lead
	hadContact := false
	switch {
	case errors.Is(err, sql.ErrNoRows):
		lead = models.Lead{SessionID: sessionID, LeadStatus: LeadStatusNew, CreatedAt: now}
		applyLeadUpdate(&lead, update, now)
		res, insErr := tx.Exec(
			`INSERT INTO leads (session_id, name, email, phone, purpose, selected_category, location, budget, timeline, property_type, lead_status, lead_score, is_qualified, notes, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			lead.SessionID, nilIfEmpty(lead.Name), nilIfEmpty(lead.Email), nilIfEmpty(lead.Phone),
			nilIfEmpty(lead.Purpose), nilIfEmpty(lead.SelectedCategory), nilIfEmpty(lead.Location),
			nilIfEmpty(lead.Budget), nilIfEmpty(lead.Timeline), nilIfEmpty(lead.PropertyType),
			lead.LeadStatus, lead.LeadScore, lead.IsQualified, nilIfEmpty(lead.Notes),
			lead.CreatedAt, lead.UpdatedAt,
		)
		if insErr != nil {
			slog.Error("SQLiteStore UpsertLead insert failed", "error", insErr, "sessionID", sessionID)
			return nil, false, fmt.Errorf("failed to insert lead: %w", insErr)
		}
		if id, idErr := res.LastInsertId(); idErr == nil {
			lead.ID = id
		}
	case err != nil:
		slog.Error("SQLiteStore UpsertLead select failed", "error", err, "sessionID", sessionID)
		return nil, false, err
	default:
		hadContact = existing.HasContactInfo()
		lead = existing
		applyLeadUpdate(&lead, update, now)
		_, updErr := tx.Exec(
			`UPDATE leads SET name = ?, email = ?, phone = ?, purpose = ?, selected_category = ?, location = ?, budget = ?, timeline = ?, property_type = ?, lead_status = ?, lead_score = ?, is_qualified = ?, notes = ?, updated_at = ?
			 WHERE session_id = ?`,
			nilIfEmpty(lead.Name), nilIfEmpty(lead.Email), nilIfEmpty(lead.Phone),
			nilIfEmpty(lead.Purpose), nilIfEmpty(lead.SelectedCategory), nilIfEmpty(lead.Location),
			nilIfEmpty(lead.Budget), nilIfEmpty(lead.Timeline), nilIfEmpty(lead.PropertyType),
			lead.LeadStatus, lead.LeadScore, lead.IsQualified, nilIfEmpty(lead.Notes),
			lead.UpdatedAt, sessionID,
		)
		if updErr != nil {
			slog.Error("SQLiteStore UpsertLead update failed", "error", updErr, "sessionID", sessionID)
			return nil, false, fmt.Errorf("failed to update lead: %w", updErr)
		}
	}

	if _, err := tx.Exec(`UPDATE chat_sessions SET lead_captured = 1 WHERE session_id = ?`, sessionID); err != nil {
		slog.Error("SQLiteStore UpsertLead session flag update failed", "error", err, "sessionID", sessionID)
		return nil, false, fmt.Errorf("failed to flag session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit lead upsert: %w", err)
	}

	contactCaptured := !hadContact && lead.HasContactInfo()
	slog.Debug("SQLiteStore UpsertLead succeeded", "sessionID", sessionID, "contact_captured", contactCaptured)
	return &lead, contactCaptured, nil
}

// GetLeadBySession retrieves the lead for a session, or nil.
func (s *SQLiteStore) GetLeadBySession(sessionID string) (*models.Lead, error) {
	row := s.db.QueryRow(`SELECT `+leadColumns+` FROM leads WHERE session_id = ?`, sessionID)
	lead, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetLeadBySession failed", "error", err, "sessionID", sessionID)
		return nil, err
	}
	return &lead, nil
}

// ListLeads returns leads newest-first for the admin dashboard.
func (s *SQLiteStore) ListLeads(offset, limit int) ([]models.Lead, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`SELECT `+leadColumns+` FROM leads ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		slog.Error("SQLiteStore ListLeads query failed", "error", err)
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer rows.Close()

	var leads []models.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			slog.Error("SQLiteStore ListLeads scan failed", "error", err)
			return nil, err
		}
		leads = append(leads, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate lead rows: %w", err)
	}
	slog.Debug("SQLiteStore ListLeads succeeded", "count", len(leads))
	return leads, nil
}

// SaveSessionContext merges keys into the session's stored context JSON.
func (s *SQLiteStore) SaveSessionContext(sessionID string, context map[string]any) error {
	if len(context) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var raw sql.NullString
	err = tx.QueryRow(`SELECT context_data FROM chat_sessions WHERE session_id = ?`, sessionID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("session not found: %s", sessionID)
	}
	if err != nil {
		slog.Error("SQLiteStore SaveSessionContext select failed", "error", err, "sessionID", sessionID)
		return err
	}

	merged := make(map[string]any)
	if raw.Valid && raw.String != "" {
		if err := json.Unmarshal([]byte(raw.String), &merged); err != nil {
			slog.Warn("SQLiteStore SaveSessionContext discarding malformed stored context", "error", err, "sessionID", sessionID)
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
	if _, err := tx.Exec(`UPDATE chat_sessions SET context_data = ? WHERE session_id = ?`, string(data), sessionID); err != nil {
		slog.Error("SQLiteStore SaveSessionContext update failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to update session context: %w", err)
	}
	return tx.Commit()
}

// GetSessionContext returns the session's stored conversation context.
func (s *SQLiteStore) GetSessionContext(sessionID string) (map[string]any, error) {
	var raw sql.NullString
	err := s.db.QueryRow(`SELECT context_data FROM chat_sessions WHERE session_id = ?`, sessionID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return map[string]any{}, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetSessionContext failed", "error", err, "sessionID", sessionID)
		return nil, err
	}
	context := make(map[string]any)
	if raw.Valid && raw.String != "" {
		if err := json.Unmarshal([]byte(raw.String), &context); err != nil {
			slog.Warn("SQLiteStore GetSessionContext malformed stored context", "error", err, "sessionID", sessionID)
			return map[string]any{}, nil
		}
	}
	return context, nil
}

// EndSession marks a session inactive and stamps its end time.
func (s *SQLiteStore) EndSession(sessionID string) error {
	_, err := s.db.Exec(`UPDATE chat_sessions SET is_active = 0, ended_at = ? WHERE session_id = ?`, time.Now(), sessionID)
	if err != nil {
		slog.Error("SQLiteStore EndSession failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to end session: %w", err)
	}
	slog.Debug("SQLiteStore EndSession succeeded", "sessionID", sessionID)
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}
