package store

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/naveenvasou/sales-chatbot-widget/internal/models"
)

// storesUnderTest runs each test against both the in-memory and SQLite
// backends.
func storesUnderTest(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := NewSQLiteStore(WithSQLiteDSN(filepath.Join(t.TempDir(), "leadchat.db")))
	if err != nil {
		t.Fatalf("failed to create SQLite store: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	memory := NewInMemoryStore()
	t.Cleanup(func() { memory.Close() })

	return map[string]Store{"memory": memory, "sqlite": sqlite}
}

func TestCreateAndGetSession(t *testing.T) {
	for name, st := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			sessionID, err := st.CreateSession("203.0.113.9", "widget/1.0")
			if err != nil {
				t.Fatalf("CreateSession failed: %v", err)
			}
			if sessionID == "" {
				t.Fatal("expected non-empty session ID")
			}

			session, err := st.GetSession(sessionID)
			if err != nil {
				t.Fatalf("GetSession failed: %v", err)
			}
			if session == nil {
				t.Fatal("expected session, got nil")
			}
			if !session.IsActive {
				t.Error("new session should be active")
			}
			if session.MessageCount != 0 {
				t.Errorf("new session message count = %d", session.MessageCount)
			}

			missing, err := st.GetSession("nope")
			if err != nil {
				t.Fatalf("GetSession for unknown ID failed: %v", err)
			}
			if missing != nil {
				t.Error("expected nil for unknown session")
			}
		})
	}
}

func TestSaveMessageAndHistory(t *testing.T) {
	for name, st := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			sessionID, err := st.CreateSession("", "")
			if err != nil {
				t.Fatalf("CreateSession failed: %v", err)
			}

			for i := 0; i < 5; i++ {
				role := models.RoleUser
				if i%2 == 1 {
					role = models.RoleAssistant
				}
				if err := st.SaveMessage(models.ChatMessage{
					SessionID: sessionID,
					Role:      role,
					Message:   fmt.Sprintf("message %d", i),
				}); err != nil {
					t.Fatalf("SaveMessage %d failed: %v", i, err)
				}
			}

			history, err := st.GetHistory(sessionID, 3)
			if err != nil {
				t.Fatalf("GetHistory failed: %v", err)
			}
			if len(history) != 3 {
				t.Fatalf("expected 3 messages, got %d", len(history))
			}
			// Oldest first within the window: the window is the newest 3.
			want := []string{"message 2", "message 3", "message 4"}
			for i, msg := range history {
				if msg.Message != want[i] {
					t.Errorf("history[%d] = %q, want %q", i, msg.Message, want[i])
				}
			}

			session, err := st.GetSession(sessionID)
			if err != nil {
				t.Fatalf("GetSession failed: %v", err)
			}
			if session.MessageCount != 5 {
				t.Errorf("message count = %d, want 5", session.MessageCount)
			}
		})
	}
}

func TestUpsertLeadContactCapturedOnce(t *testing.T) {
	for name, st := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			sessionID, err := st.CreateSession("", "")
			if err != nil {
				t.Fatalf("CreateSession failed: %v", err)
			}

			// First write has no contact info.
			lead, captured, err := st.UpsertLead(sessionID, models.LeadUpdate{
				SelectedCategory: models.StringPtr("explore"),
			})
			if err != nil {
				t.Fatalf("first upsert failed: %v", err)
			}
			if captured {
				t.Error("category-only upsert should not capture contact")
			}
			if lead.SelectedCategory != "explore" {
				t.Errorf("selected category = %q", lead.SelectedCategory)
			}
			if lead.LeadStatus != LeadStatusNew {
				t.Errorf("new lead status = %q, want %q", lead.LeadStatus, LeadStatusNew)
			}

			// Contact info arrives: exactly this write reports the capture.
			lead, captured, err = st.UpsertLead(sessionID, models.LeadUpdate{
				Name:        models.StringPtr("Asha"),
				Email:       models.StringPtr("asha@example.com"),
				Phone:       models.StringPtr("9876543210"),
				LeadStatus:  models.StringPtr(LeadStatusQualified),
				IsQualified: models.BoolPtr(true),
			})
			if err != nil {
				t.Fatalf("contact upsert failed: %v", err)
			}
			if !captured {
				t.Error("expected contact capture on first contact write")
			}
			if !lead.IsQualified {
				t.Error("expected lead qualified")
			}

			// A later unrelated update does not re-report the capture.
			_, captured, err = st.UpsertLead(sessionID, models.LeadUpdate{
				Budget: models.StringPtr("100_200"),
			})
			if err != nil {
				t.Fatalf("budget upsert failed: %v", err)
			}
			if captured {
				t.Error("unrelated update must not re-report contact capture")
			}

			stored, err := st.GetLeadBySession(sessionID)
			if err != nil {
				t.Fatalf("GetLeadBySession failed: %v", err)
			}
			if stored.Name != "Asha" || stored.Budget != "100_200" {
				t.Errorf("lead fields lost across upserts: %+v", stored)
			}

			session, err := st.GetSession(sessionID)
			if err != nil {
				t.Fatalf("GetSession failed: %v", err)
			}
			if !session.LeadCaptured {
				t.Error("session should be flagged lead_captured")
			}
		})
	}
}

func TestUpsertLeadAppendsNotes(t *testing.T) {
	for name, st := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			sessionID, _ := st.CreateSession("", "")

			if _, _, err := st.UpsertLead(sessionID, models.LeadUpdate{
				AppendNotes: models.StringPtr("visit_date: this_week"),
			}); err != nil {
				t.Fatalf("first notes upsert failed: %v", err)
			}
			if _, _, err := st.UpsertLead(sessionID, models.LeadUpdate{
				AppendNotes: models.StringPtr("visit_time: morning"),
			}); err != nil {
				t.Fatalf("second notes upsert failed: %v", err)
			}

			lead, err := st.GetLeadBySession(sessionID)
			if err != nil {
				t.Fatalf("GetLeadBySession failed: %v", err)
			}
			want := "visit_date: this_week; visit_time: morning"
			if lead.Notes != want {
				t.Errorf("notes = %q, want %q", lead.Notes, want)
			}
		})
	}
}

func TestScanHelpersKeepNoRowsSentinel(t *testing.T) {
	st, err := NewSQLiteStore(WithSQLiteDSN(filepath.Join(t.TempDir(), "leadchat.db")))
	if err != nil {
		t.Fatalf("failed to create SQLite store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	// The scan helpers wrap their errors; callers match the missing-row
	// sentinel with errors.Is, so the wrap must preserve it.
	_, err = scanLead(st.db.QueryRow(`SELECT ` + leadColumns + ` FROM leads WHERE session_id = 'nope'`))
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("scanLead miss = %v, want sql.ErrNoRows in chain", err)
	}
	_, err = scanSession(st.db.QueryRow(
		`SELECT id, session_id, started_at, ended_at, is_active, message_count, lead_captured, user_ip, user_agent
		 FROM chat_sessions WHERE session_id = 'nope'`))
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("scanSession miss = %v, want sql.ErrNoRows in chain", err)
	}
}

func TestConcurrentUpsertsQueueOnSQLite(t *testing.T) {
	st, err := NewSQLiteStore(WithSQLiteDSN(filepath.Join(t.TempDir(), "leadchat.db")))
	if err != nil {
		t.Fatalf("failed to create SQLite store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	sessionID, err := st.CreateSession("", "")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	const writers = 8
	captured := make(chan bool, writers)
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, got, err := st.UpsertLead(sessionID, models.LeadUpdate{
				Name:  models.StringPtr("Asha"),
				Email: models.StringPtr("asha@example.com"),
				Phone: models.StringPtr("9876543210"),
			})
			if err != nil {
				errs <- err
				return
			}
			captured <- got
		}()
	}
	wg.Wait()
	close(captured)
	close(errs)

	for err := range errs {
		t.Errorf("concurrent upsert failed: %v", err)
	}
	captures := 0
	for got := range captured {
		if got {
			captures++
		}
	}
	if captures != 1 {
		t.Errorf("contact captured %d times, want exactly 1", captures)
	}
}

func TestGetLeadBySessionUnknown(t *testing.T) {
	for name, st := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			lead, err := st.GetLeadBySession("nope")
			if err != nil {
				t.Fatalf("GetLeadBySession failed: %v", err)
			}
			if lead != nil {
				t.Errorf("expected nil lead, got %+v", lead)
			}
		})
	}
}

func TestSessionContextMerges(t *testing.T) {
	for name, st := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			sessionID, _ := st.CreateSession("", "")

			if err := st.SaveSessionContext(sessionID, map[string]any{"property_type": "villa"}); err != nil {
				t.Fatalf("first save failed: %v", err)
			}
			if err := st.SaveSessionContext(sessionID, map[string]any{"budget": "100_200"}); err != nil {
				t.Fatalf("second save failed: %v", err)
			}

			context, err := st.GetSessionContext(sessionID)
			if err != nil {
				t.Fatalf("GetSessionContext failed: %v", err)
			}
			if context["property_type"] != "villa" {
				t.Errorf("property_type = %v", context["property_type"])
			}
			if context["budget"] != "100_200" {
				t.Errorf("budget = %v", context["budget"])
			}
		})
	}
}

func TestSessionContextUnknownSession(t *testing.T) {
	for name, st := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			if err := st.SaveSessionContext("nope", map[string]any{"k": "v"}); err == nil {
				t.Error("expected error for unknown session")
			}
			context, err := st.GetSessionContext("nope")
			if err != nil {
				t.Fatalf("GetSessionContext failed: %v", err)
			}
			if len(context) != 0 {
				t.Errorf("expected empty context, got %v", context)
			}
		})
	}
}

func TestEndSession(t *testing.T) {
	for name, st := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			sessionID, _ := st.CreateSession("", "")
			if err := st.EndSession(sessionID); err != nil {
				t.Fatalf("EndSession failed: %v", err)
			}

			session, err := st.GetSession(sessionID)
			if err != nil {
				t.Fatalf("GetSession failed: %v", err)
			}
			if session.IsActive {
				t.Error("ended session should be inactive")
			}
			if session.EndedAt == nil {
				t.Error("ended session should carry an end timestamp")
			}
		})
	}
}

func TestListLeads(t *testing.T) {
	for name, st := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 3; i++ {
				sessionID, _ := st.CreateSession("", "")
				if _, _, err := st.UpsertLead(sessionID, models.LeadUpdate{
					Name: models.StringPtr(fmt.Sprintf("Lead %d", i)),
				}); err != nil {
					t.Fatalf("upsert %d failed: %v", i, err)
				}
			}

			leads, err := st.ListLeads(0, 10)
			if err != nil {
				t.Fatalf("ListLeads failed: %v", err)
			}
			if len(leads) != 3 {
				t.Errorf("expected 3 leads, got %d", len(leads))
			}

			page, err := st.ListLeads(2, 10)
			if err != nil {
				t.Fatalf("ListLeads with offset failed: %v", err)
			}
			if len(page) != 1 {
				t.Errorf("expected 1 lead at offset 2, got %d", len(page))
			}
		})
	}
}
