package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/naveenvasou/sales-chatbot-widget/internal/catalog"
	"github.com/naveenvasou/sales-chatbot-widget/internal/flow"
	"github.com/naveenvasou/sales-chatbot-widget/internal/genai"
	"github.com/naveenvasou/sales-chatbot-widget/internal/models"
	"github.com/naveenvasou/sales-chatbot-widget/internal/notify"
	"github.com/naveenvasou/sales-chatbot-widget/internal/store"
)

// stubAI returns a canned reply without touching the network.
type stubAI struct {
	reply string
	err   error
}

func (s *stubAI) Complete(ctx context.Context, systemPrompt, userPrompt string, history []models.ChatMessage) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

type testEnv struct {
	server *httptest.Server
	store  store.Store
	mock   *notify.MockNotifier
}

func newTestEnv(t *testing.T, ai *stubAI) *testEnv {
	t.Helper()
	st := store.NewInMemoryStore()
	t.Cleanup(func() { st.Close() })

	cat, err := catalog.NewService()
	if err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}

	mock := notify.NewMockNotifier()
	var client genai.ClientInterface
	if ai != nil {
		client = ai
	}

	srv := NewServer(st, flow.NewController(flow.NewTable()), client, notify.NewDispatcher(mock), cat, "")
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return &testEnv{server: ts, store: st, mock: mock}
}

func (e *testEnv) postJSON(t *testing.T, path string, body any) (*http.Response, models.ChatResponse) {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}
	resp, err := http.Post(e.server.URL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST %s failed: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var out models.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response from %s: %v", path, err)
	}
	return resp, out
}

func (e *testEnv) initSession(t *testing.T) string {
	t.Helper()
	resp, chat := e.postJSON(t, "/api/v1/chat/init", map[string]any{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("init status = %d", resp.StatusCode)
	}
	if chat.SessionID == "" {
		t.Fatal("expected session ID")
	}
	return chat.SessionID
}

// qualifySession walks a session through category selection and a valid
// contact form submission.
func (e *testEnv) qualifySession(t *testing.T, sessionID, category string) models.ChatResponse {
	t.Helper()
	resp, _ := e.postJSON(t, "/api/v1/chat/select-category", map[string]any{
		"session_id": sessionID,
		"category":   category,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("select-category status = %d", resp.StatusCode)
	}
	resp, chat := e.postJSON(t, "/api/v1/chat/submit-lead", map[string]any{
		"session_id": sessionID,
		"category":   category,
		"name":       "Asha",
		"email":      "asha@example.com",
		"phone":      "9876543210",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit-lead status = %d", resp.StatusCode)
	}
	return chat
}

// waitForAlerts polls the mock notifier until the expected number of alerts
// arrives; delivery runs on a background goroutine.
func (e *testEnv) waitForAlerts(t *testing.T, want int) []models.Lead {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		leads := e.mock.Leads()
		if len(leads) >= want {
			return leads
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d alerts, got %d", want, len(leads))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestInitChat(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, chat := env.postJSON(t, "/api/v1/chat/init", map[string]any{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if chat.Message != flow.GreetingMessage {
		t.Errorf("message = %q", chat.Message)
	}
	if chat.CurrentState != "greeting" || chat.NextState != "category_selection" {
		t.Errorf("states = %q -> %q", chat.CurrentState, chat.NextState)
	}
	if chat.UIComponent == nil || chat.UIComponent.Type != "category_buttons" {
		t.Error("expected category buttons component")
	}

	session, err := env.store.GetSession(chat.SessionID)
	if err != nil || session == nil {
		t.Fatalf("session not persisted: %v", err)
	}
	if session.MessageCount != 1 {
		t.Errorf("greeting not recorded, message count = %d", session.MessageCount)
	}
}

func TestSelectCategory(t *testing.T) {
	env := newTestEnv(t, nil)
	sessionID := env.initSession(t)

	resp, chat := env.postJSON(t, "/api/v1/chat/select-category", map[string]any{
		"session_id": sessionID,
		"category":   "explore",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if chat.CurrentState != "lead_capture" {
		t.Errorf("current state = %q", chat.CurrentState)
	}
	if chat.UIComponent == nil || chat.UIComponent.Type != "lead_form" {
		t.Error("expected lead form component")
	}
	if !chat.ShowMenuButton {
		t.Error("expected menu button")
	}

	lead, err := env.store.GetLeadBySession(sessionID)
	if err != nil {
		t.Fatalf("GetLeadBySession failed: %v", err)
	}
	if lead == nil || lead.SelectedCategory != "explore" {
		t.Errorf("category not recorded on lead: %+v", lead)
	}
	if len(env.mock.Leads()) != 0 {
		t.Error("category selection must not trigger an alert")
	}
}

func TestSelectCategoryValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, err := http.Post(env.server.URL+"/api/v1/chat/select-category", "application/json",
		bytes.NewReader([]byte(`{"category":"explore"}`)))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSubmitLeadInvalidFormRepresented(t *testing.T) {
	env := newTestEnv(t, nil)
	sessionID := env.initSession(t)
	env.postJSON(t, "/api/v1/chat/select-category", map[string]any{
		"session_id": sessionID, "category": "brochure",
	})

	resp, chat := env.postJSON(t, "/api/v1/chat/submit-lead", map[string]any{
		"session_id": sessionID,
		"category":   "brochure",
		"name":       "A",
		"email":      "not-an-email",
		"phone":      "123",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if chat.CurrentState != "lead_capture" || chat.NextState != "lead_capture" {
		t.Errorf("invalid form must not advance, states = %q -> %q", chat.CurrentState, chat.NextState)
	}
	if chat.UIComponent == nil || chat.UIComponent.Type != "lead_form" {
		t.Fatal("expected the form back")
	}
	if _, ok := chat.UIComponent.Data["errors"]; !ok {
		t.Error("expected field errors on the form")
	}

	if len(env.mock.Leads()) != 0 {
		t.Error("rejected form must not trigger an alert")
	}
	lead, _ := env.store.GetLeadBySession(sessionID)
	if lead != nil && lead.Name != "" {
		t.Errorf("rejected contact details were stored: %+v", lead)
	}
}

func TestSubmitLeadStartsTrackAndAlertsOnce(t *testing.T) {
	env := newTestEnv(t, nil)
	sessionID := env.initSession(t)

	chat := env.qualifySession(t, sessionID, "brochure")
	if chat.CurrentState != "brochure_start" {
		t.Errorf("current state = %q", chat.CurrentState)
	}
	if chat.Metadata["lead_captured"] != true {
		t.Errorf("metadata = %v", chat.Metadata)
	}

	alerts := env.waitForAlerts(t, 1)
	if alerts[0].Name != "Asha" || alerts[0].Email != "asha@example.com" {
		t.Errorf("alert lead = %+v", alerts[0])
	}

	// Resubmitting the same contact details does not alert again.
	env.postJSON(t, "/api/v1/chat/submit-lead", map[string]any{
		"session_id": sessionID,
		"category":   "brochure",
		"name":       "Asha",
		"email":      "asha@example.com",
		"phone":      "9876543210",
	})
	time.Sleep(100 * time.Millisecond)
	if got := len(env.mock.Leads()); got != 1 {
		t.Errorf("expected exactly one alert, got %d", got)
	}

	lead, _ := env.store.GetLeadBySession(sessionID)
	if lead == nil || !lead.IsQualified {
		t.Errorf("lead not qualified: %+v", lead)
	}
}

func TestUserInputWithoutLead(t *testing.T) {
	env := newTestEnv(t, nil)
	sessionID := env.initSession(t)

	resp, err := http.Post(env.server.URL+"/api/v1/chat/input", "application/json",
		bytes.NewReader([]byte(`{"session_id":"`+sessionID+`","input_type":"text","input_data":"hi","current_state":"explore_start"}`)))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	var out models.APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if out.Message != "Lead information not found. Please start over." {
		t.Errorf("message = %q", out.Message)
	}
}

func TestExploreTurnsProducePropertyCards(t *testing.T) {
	env := newTestEnv(t, nil)
	sessionID := env.initSession(t)
	env.qualifySession(t, sessionID, "explore")

	// Choose a property type.
	resp, chat := env.postJSON(t, "/api/v1/chat/input", map[string]any{
		"session_id":    sessionID,
		"input_type":    "button",
		"input_data":    "villa",
		"current_state": "explore_start",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if chat.CurrentState != "explore_preferences" {
		t.Errorf("current state = %q", chat.CurrentState)
	}

	// Submit preferences; the resulting state carries catalog cards.
	resp, chat = env.postJSON(t, "/api/v1/chat/input", map[string]any{
		"session_id":    sessionID,
		"input_type":    "form",
		"input_data":    map[string]any{"budget": "100_200", "location": []string{"Chennai"}},
		"current_state": "explore_preferences",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if chat.CurrentState != "explore_results" {
		t.Errorf("current state = %q", chat.CurrentState)
	}
	if chat.Metadata == nil || chat.Metadata["properties"] == nil {
		t.Fatal("expected property cards in metadata")
	}

	// Collected preferences land on the lead record.
	lead, err := env.store.GetLeadBySession(sessionID)
	if err != nil {
		t.Fatalf("GetLeadBySession failed: %v", err)
	}
	if lead.PropertyType != "villa" {
		t.Errorf("property type = %q", lead.PropertyType)
	}
	if lead.Budget != "100_200" {
		t.Errorf("budget = %q", lead.Budget)
	}
	time.Sleep(100 * time.Millisecond)
	if got := len(env.mock.Leads()); got != 1 {
		t.Errorf("turn updates must not re-alert, got %d alerts", got)
	}
}

func TestFAQTurnUsesAssistant(t *testing.T) {
	env := newTestEnv(t, &stubAI{reply: "Home loans start at 8.5% with our banking partners."})
	sessionID := env.initSession(t)
	env.qualifySession(t, sessionID, "question")

	resp, chat := env.postJSON(t, "/api/v1/chat/input", map[string]any{
		"session_id":    sessionID,
		"input_type":    "button",
		"input_data":    "loan",
		"current_state": "faq_start",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if chat.CurrentState != "faq_category_select" {
		t.Errorf("current state = %q", chat.CurrentState)
	}
	if chat.Message != "Home loans start at 8.5% with our banking partners." {
		t.Errorf("message = %q", chat.Message)
	}
}

func TestAssistantFailureFallsBack(t *testing.T) {
	env := newTestEnv(t, &stubAI{err: context.DeadlineExceeded})
	sessionID := env.initSession(t)
	env.qualifySession(t, sessionID, "question")

	_, chat := env.postJSON(t, "/api/v1/chat/input", map[string]any{
		"session_id":    sessionID,
		"input_type":    "text",
		"input_data":    "what about amenities?",
		"current_state": "faq_start",
	})
	if chat.Message != flow.FallbackAssistantMessage {
		t.Errorf("message = %q, want fallback", chat.Message)
	}
}

func TestMenuHandler(t *testing.T) {
	env := newTestEnv(t, nil)
	sessionID := env.initSession(t)
	env.qualifySession(t, sessionID, "other")

	resp, chat := env.postJSON(t, "/api/v1/chat/menu", map[string]any{
		"session_id": sessionID,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if chat.CurrentState != "category_selection" {
		t.Errorf("current state = %q", chat.CurrentState)
	}
	if chat.UIComponent == nil || chat.UIComponent.Type != "category_buttons" {
		t.Error("expected category buttons")
	}
}

func TestEndChat(t *testing.T) {
	env := newTestEnv(t, nil)
	sessionID := env.initSession(t)
	env.qualifySession(t, sessionID, "brochure")

	payload, _ := json.Marshal(map[string]any{"session_id": sessionID})
	resp, err := http.Post(env.server.URL+"/api/v1/chat/end", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var out models.APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	result, ok := out.Result.(map[string]any)
	if !ok {
		t.Fatalf("result = %T", out.Result)
	}
	if result["session_ended"] != true {
		t.Errorf("result = %v", result)
	}
	message, _ := result["message"].(string)
	if message != flow.HandoffMessage("Asha") {
		t.Errorf("handoff = %q", message)
	}

	session, _ := env.store.GetSession(sessionID)
	if session.IsActive {
		t.Error("session still active after end")
	}
}

func TestHistoryEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	sessionID := env.initSession(t)
	env.qualifySession(t, sessionID, "brochure")

	resp, err := http.Get(env.server.URL + "/api/v1/chat/" + sessionID + "/history")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var out struct {
		Status string               `json:"status"`
		Result []models.ChatMessage `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(out.Result) < 3 {
		t.Fatalf("expected a transcript, got %d messages", len(out.Result))
	}
	if out.Result[0].Message != flow.GreetingMessage {
		t.Errorf("first message = %q, want greeting", out.Result[0].Message)
	}
}

func TestHistoryUnknownSession(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, err := http.Get(env.server.URL + "/api/v1/chat/nope/history")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestLeadsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	sessionID := env.initSession(t)
	env.qualifySession(t, sessionID, "explore")

	resp, err := http.Get(env.server.URL + "/api/v1/leads")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var out struct {
		Status string        `json:"status"`
		Result []models.Lead `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(out.Result) != 1 {
		t.Fatalf("expected 1 lead, got %d", len(out.Result))
	}
	if out.Result[0].Name != "Asha" {
		t.Errorf("lead name = %q", out.Result[0].Name)
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, err := http.Get(env.server.URL + "/health")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if out["status"] != "healthy" {
		t.Errorf("status field = %v", out["status"])
	}
}
