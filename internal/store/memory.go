package store

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/naveenvasou/sales-chatbot-widget/internal/models"
)

// InMemoryStore is an in-memory implementation of Store for testing and
// ephemeral deployments. Safe for concurrent use.
type InMemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*models.ChatSession
	messages map[string][]models.ChatMessage
	leads    map[string]*models.Lead
	contexts map[string]map[string]any
	nextID   int64
}

// NewInMemoryStore creates a new in-memory store.
func NewInMemoryStore() *InMemoryStore {
	slog.Debug("Creating new InMemoryStore")
	return &InMemoryStore{
		sessions: make(map[string]*models.ChatSession),
		messages: make(map[string][]models.ChatMessage),
		leads:    make(map[string]*models.Lead),
		contexts: make(map[string]map[string]any),
	}
}

// CreateSession creates a new chat session and returns its session ID.
func (s *InMemoryStore) CreateSession(userIP, userAgent string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sessionID := uuid.NewString()
	s.nextID++
	s.sessions[sessionID] = &models.ChatSession{
		ID:        s.nextID,
		SessionID: sessionID,
		StartedAt: time.Now(),
		IsActive:  true,
		UserIP:    userIP,
		UserAgent: userAgent,
	}
	slog.Debug("InMemoryStore CreateSession succeeded", "sessionID", sessionID)
	return sessionID, nil
}

// GetSession retrieves a session, or nil when unknown.
func (s *InMemoryStore) GetSession(sessionID string) (*models.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

// SaveMessage appends a transcript entry and bumps the message count.
func (s *InMemoryStore) SaveMessage(msg models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[msg.SessionID]
	if !ok {
		return fmt.Errorf("session not found: %s", msg.SessionID)
	}
	s.nextID++
	msg.ID = s.nextID
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	s.messages[msg.SessionID] = append(s.messages[msg.SessionID], msg)
	session.MessageCount++
	return nil
}

// GetHistory returns up to limit messages for a session, oldest first.
func (s *InMemoryStore) GetHistory(sessionID string, limit int) ([]models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 20
	}
	all := s.messages[sessionID]
	start := len(all) - limit
	if start < 0 {
		start = 0
	}
	out := make([]models.ChatMessage, len(all)-start)
	copy(out, all[start:])
	return out, nil
}

// UpsertLead creates or updates the lead for a session. The returned bool
// reports whether this call captured contact info for the first time.
func (s *InMemoryStore) UpsertLead(sessionID string, update models.LeadUpdate) (*models.Lead, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	lead, ok := s.leads[sessionID]
	hadContact := false
	if !ok {
		s.nextID++
		lead = &models.Lead{
			ID:         s.nextID,
			SessionID:  sessionID,
			LeadStatus: LeadStatusNew,
			CreatedAt:  now,
		}
		s.leads[sessionID] = lead
	} else {
		hadContact = lead.HasContactInfo()
	}
	applyLeadUpdate(lead, update, now)

	if session, ok := s.sessions[sessionID]; ok {
		session.LeadCaptured = true
	}

	contactCaptured := !hadContact && lead.HasContactInfo()
	copied := *lead
	slog.Debug("InMemoryStore UpsertLead succeeded", "sessionID", sessionID, "contact_captured", contactCaptured)
	return &copied, contactCaptured, nil
}

// GetLeadBySession retrieves the lead for a session, or nil.
func (s *InMemoryStore) GetLeadBySession(sessionID string) (*models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[sessionID]
	if !ok {
		return nil, nil
	}
	copied := *lead
	return &copied, nil
}

// ListLeads returns leads newest-first.
func (s *InMemoryStore) ListLeads(offset, limit int) ([]models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	all := make([]models.Lead, 0, len(s.leads))
	for _, lead := range s.leads {
		all = append(all, *lead)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// SaveSessionContext merges keys into the session's stored context.
func (s *InMemoryStore) SaveSessionContext(sessionID string, context map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return fmt.Errorf("session not found: %s", sessionID)
	}
	stored, ok := s.contexts[sessionID]
	if !ok {
		stored = make(map[string]any)
		s.contexts[sessionID] = stored
	}
	for k, v := range context {
		stored[k] = v
	}
	return nil
}

// GetSessionContext returns the session's stored conversation context.
func (s *InMemoryStore) GetSessionContext(sessionID string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.contexts[sessionID]))
	for k, v := range s.contexts[sessionID] {
		out[k] = v
	}
	return out, nil
}

// EndSession marks a session inactive and stamps its end time.
func (s *InMemoryStore) EndSession(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session not found: %s", sessionID)
	}
	now := time.Now()
	session.IsActive = false
	session.EndedAt = &now
	return nil
}

// Close releases all stored state.
func (s *InMemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]*models.ChatSession)
	s.messages = make(map[string][]models.ChatMessage)
	s.leads = make(map[string]*models.Lead)
	s.contexts = make(map[string]map[string]any)
	return nil
}
