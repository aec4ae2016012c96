// Package api provides HTTP handlers for the chat widget endpoints.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/naveenvasou/sales-chatbot-widget/internal/catalog"
	"github.com/naveenvasou/sales-chatbot-widget/internal/flow"
	"github.com/naveenvasou/sales-chatbot-widget/internal/genai"
	"github.com/naveenvasou/sales-chatbot-widget/internal/models"
	"github.com/naveenvasou/sales-chatbot-widget/internal/store"
)

// notifyTimeout bounds a background lead-alert delivery.
const notifyTimeout = 30 * time.Second

// initChatHandler creates a session and returns the greeting with category
// buttons (POST /api/v1/chat/init).
func (s *Server) initChatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.initChatHandler: processing init request", "remote", r.RemoteAddr)

	sessionID, err := s.st.CreateSession(r.RemoteAddr, r.UserAgent())
	if err != nil {
		slog.Error("Server.initChatHandler: failed to create session", "error", err)
		writeTroubleResponse(w)
		return
	}

	if err := s.st.SaveMessage(models.ChatMessage{
		SessionID: sessionID,
		Role:      models.RoleAssistant,
		Message:   flow.GreetingMessage,
		Intent:    "GREETING",
	}); err != nil {
		slog.Error("Server.initChatHandler: failed to save greeting", "error", err, "sessionID", sessionID)
		writeTroubleResponse(w)
		return
	}

	slog.Info("Server.initChatHandler: session created", "sessionID", sessionID)
	writeJSONResponse(w, http.StatusOK, models.ChatResponse{
		SessionID:    sessionID,
		Message:      flow.GreetingMessage,
		CurrentState: string(models.StateGreeting),
		NextState:    string(models.StateCategorySelection),
		UIComponent:  flow.CategoryButtons(),
	})
}

// selectCategoryHandler records the visitor's category choice and returns
// the lead-capture form (POST /api/v1/chat/select-category).
func (s *Server) selectCategoryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	var req models.CategorySelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.selectCategoryHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.selectCategoryHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	category := models.ParseCategory(req.Category)
	slog.Debug("Server.selectCategoryHandler: category selected", "sessionID", req.SessionID, "category", category)

	if err := s.st.SaveMessage(models.ChatMessage{
		SessionID: req.SessionID,
		Role:      models.RoleUser,
		Message:   fmt.Sprintf("Selected category: %s", category),
		Intent:    "CATEGORY_SELECTION",
	}); err != nil {
		slog.Error("Server.selectCategoryHandler: failed to save selection", "error", err, "sessionID", req.SessionID)
		writeTroubleResponse(w)
		return
	}

	if _, _, err := s.st.UpsertLead(req.SessionID, models.LeadUpdate{
		SelectedCategory: models.StringPtr(string(category)),
	}); err != nil {
		slog.Error("Server.selectCategoryHandler: failed to record category on lead", "error", err, "sessionID", req.SessionID)
		writeTroubleResponse(w)
		return
	}

	if err := s.st.SaveMessage(models.ChatMessage{
		SessionID: req.SessionID,
		Role:      models.RoleAssistant,
		Message:   flow.LeadCaptureMessage,
		Intent:    "LEAD_CAPTURE",
	}); err != nil {
		slog.Error("Server.selectCategoryHandler: failed to save form prompt", "error", err, "sessionID", req.SessionID)
		writeTroubleResponse(w)
		return
	}

	writeJSONResponse(w, http.StatusOK, models.ChatResponse{
		SessionID:      req.SessionID,
		Message:        flow.LeadCaptureMessage,
		CurrentState:   string(models.StateLeadCapture),
		UIComponent:    flow.LeadFormComponent(),
		ShowMenuButton: true,
	})
}

// submitLeadHandler validates the contact form. On failure the same form is
// re-presented with field errors; on success the lead is stored, a single
// new-lead alert fires on the first contact capture, and the chosen track
// starts (POST /api/v1/chat/submit-lead).
func (s *Server) submitLeadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	var req models.LeadCaptureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.submitLeadHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.submitLeadHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	validation := flow.ValidateLeadForm(req.Name, req.Email, req.Phone)
	if !validation.Valid {
		slog.Debug("Server.submitLeadHandler: form rejected", "sessionID", req.SessionID, "errors", len(validation.Errors))
		form := flow.LeadFormComponent()
		form.Data["errors"] = validation.Errors
		writeJSONResponse(w, http.StatusOK, models.ChatResponse{
			SessionID:      req.SessionID,
			Message:        validation.Messages(),
			CurrentState:   string(models.StateLeadCapture),
			NextState:      string(models.StateLeadCapture),
			UIComponent:    form,
			ShowMenuButton: true,
		})
		return
	}

	category := models.ParseCategory(req.Category)
	lead, contactCaptured, err := s.st.UpsertLead(req.SessionID, models.LeadUpdate{
		Name:             models.StringPtr(validation.Name),
		Email:            models.StringPtr(validation.Email),
		Phone:            models.StringPtr(validation.Phone),
		SelectedCategory: models.StringPtr(string(category)),
		Purpose:          models.StringPtr(string(category)),
		LeadStatus:       models.StringPtr(store.LeadStatusQualified),
		IsQualified:      models.BoolPtr(true),
	})
	if err != nil {
		slog.Error("Server.submitLeadHandler: failed to upsert lead", "error", err, "sessionID", req.SessionID)
		writeTroubleResponse(w)
		return
	}

	if err := s.st.SaveMessage(models.ChatMessage{
		SessionID: req.SessionID,
		Role:      models.RoleUser,
		Message:   fmt.Sprintf("Submitted: %s, %s, %s", validation.Name, validation.Email, validation.Phone),
		Intent:    "LEAD_SUBMITTED",
	}); err != nil {
		slog.Error("Server.submitLeadHandler: failed to save submission", "error", err, "sessionID", req.SessionID)
		writeTroubleResponse(w)
		return
	}

	if contactCaptured {
		slog.Info("Server.submitLeadHandler: new lead captured", "sessionID", req.SessionID, "category", category)
		go func(lead models.Lead) {
			ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
			defer cancel()
			s.notifier.NotifyNewLead(ctx, &lead)
		}(*lead)
	}

	resp := s.flow.StartCategoryFlow(category, map[string]any{
		"name":  lead.Name,
		"email": lead.Email,
		"phone": lead.Phone,
	})

	if err := s.st.SaveMessage(models.ChatMessage{
		SessionID: req.SessionID,
		Role:      models.RoleAssistant,
		Message:   resp.Message,
		Intent:    resp.CurrentState,
	}); err != nil {
		slog.Error("Server.submitLeadHandler: failed to save track start", "error", err, "sessionID", req.SessionID)
		writeTroubleResponse(w)
		return
	}

	out := chatResponseFrom(req.SessionID, resp)
	out.Metadata = map[string]any{"lead_captured": true}
	writeJSONResponse(w, http.StatusOK, out)
}

// userInputHandler processes one turn of user input under the per-session
// lock (POST /api/v1/chat/input).
func (s *Server) userInputHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	var req models.UserInputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.userInputHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.userInputHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	// handleTurn writes its own response; the lock callback has no error
	// to propagate.
	_ = s.sessions.WithLock(req.SessionID, func() error {
		s.handleTurn(w, r, req)
		return nil
	})
}

// handleTurn runs one serialized conversation turn.
func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request, req models.UserInputRequest) {
	lead, err := s.st.GetLeadBySession(req.SessionID)
	if err != nil {
		slog.Error("Server.handleTurn: failed to load lead", "error", err, "sessionID", req.SessionID)
		writeTroubleResponse(w)
		return
	}
	if lead == nil || lead.Name == "" {
		slog.Warn("Server.handleTurn: no lead on session", "sessionID", req.SessionID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Lead information not found. Please start over."))
		return
	}

	stored, err := s.st.GetSessionContext(req.SessionID)
	if err != nil {
		slog.Error("Server.handleTurn: failed to load session context", "error", err, "sessionID", req.SessionID)
		writeTroubleResponse(w)
		return
	}
	stored["name"] = lead.Name
	stored["email"] = lead.Email
	stored["phone"] = lead.Phone

	input := models.ParseUserInput(req.InputType, req.InputData)
	currentState := models.FlowState(req.CurrentState)

	if err := s.st.SaveMessage(models.ChatMessage{
		SessionID: req.SessionID,
		Role:      models.RoleUser,
		Message:   formatUserInput(input),
		Intent:    req.CurrentState,
	}); err != nil {
		slog.Error("Server.handleTurn: failed to save user input", "error", err, "sessionID", req.SessionID)
		writeTroubleResponse(w)
		return
	}

	resp := s.flow.HandleUserInput(currentState, input, stored)

	if resp.RequiresLLM {
		resp.Message = s.assistantReply(r.Context(), req.SessionID, lead, input, resp.Context)
	}

	out := chatResponseFrom(req.SessionID, resp)
	if resp.CurrentState == string(models.StateExploreResults) && s.catalog != nil {
		if cards := s.propertyCards(resp.Context); len(cards) > 0 {
			out.Metadata = map[string]any{"properties": cards}
		}
	}

	if err := s.st.SaveSessionContext(req.SessionID, resp.Context); err != nil {
		slog.Error("Server.handleTurn: failed to persist context", "error", err, "sessionID", req.SessionID)
		writeTroubleResponse(w)
		return
	}

	if update := leadUpdateForTurn(s.flow, currentState, input); !update.IsEmpty() {
		if _, _, err := s.st.UpsertLead(req.SessionID, update); err != nil {
			slog.Error("Server.handleTurn: failed to update lead", "error", err, "sessionID", req.SessionID)
			writeTroubleResponse(w)
			return
		}
	}

	if err := s.st.SaveMessage(models.ChatMessage{
		SessionID: req.SessionID,
		Role:      models.RoleAssistant,
		Message:   resp.Message,
		Intent:    resp.CurrentState,
	}); err != nil {
		slog.Error("Server.handleTurn: failed to save reply", "error", err, "sessionID", req.SessionID)
		writeTroubleResponse(w)
		return
	}

	slog.Debug("Server.handleTurn: turn completed", "sessionID", req.SessionID, "from", req.CurrentState, "to", resp.CurrentState)
	writeJSONResponse(w, http.StatusOK, out)
}

// assistantReply produces the AI-authored message for states that require
// it, degrading to the apology fallback on any failure.
func (s *Server) assistantReply(ctx context.Context, sessionID string, lead *models.Lead, input models.UserInput, context map[string]any) string {
	if s.ai == nil {
		slog.Warn("Server.assistantReply: AI client not configured", "sessionID", sessionID)
		return flow.FallbackAssistantMessage
	}

	promptContext := make(map[string]any, len(context)+1)
	for k, v := range context {
		promptContext[k] = v
	}
	if s.catalog != nil {
		promptContext["property_context"] = s.catalog.RelevantContext(input.Text)
	}

	category := models.ParseCategory(lead.SelectedCategory)
	systemPrompt := flow.AssistantPrompt(category, promptContext)

	history, err := s.st.GetHistory(sessionID, genai.DefaultHistoryLimit)
	if err != nil {
		slog.Warn("Server.assistantReply: failed to load history, proceeding without it", "error", err, "sessionID", sessionID)
		history = nil
	}

	reply, err := s.ai.Complete(ctx, systemPrompt, input.Text, history)
	if err != nil {
		slog.Error("Server.assistantReply: completion failed", "error", err, "sessionID", sessionID)
		return flow.FallbackAssistantMessage
	}
	return reply
}

// propertyCards filters the catalog by the context's property type and
// locations and converts the matches into card metadata.
func (s *Server) propertyCards(context map[string]any) []map[string]any {
	propertyType := ""
	if v := contextValue(context, "property_type"); v != nil {
		propertyType = models.DisplayString(v)
	}
	locations := contextStrings(context, "location")
	matches := s.catalog.Filter(propertyType, locations, catalog.DefaultCardLimit)
	return catalog.Cards(matches)
}

// menuHandler returns the visitor to category selection from any state
// (POST /api/v1/chat/menu).
func (s *Server) menuHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	var req models.MenuRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.menuHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	if err := s.st.SaveMessage(models.ChatMessage{
		SessionID: req.SessionID,
		Role:      models.RoleUser,
		Message:   "Back to main menu",
		Intent:    "MENU_REQUEST",
	}); err != nil {
		slog.Error("Server.menuHandler: failed to save request", "error", err, "sessionID", req.SessionID)
		writeTroubleResponse(w)
		return
	}

	resp := s.flow.GoToMainMenu()

	if err := s.st.SaveMessage(models.ChatMessage{
		SessionID: req.SessionID,
		Role:      models.RoleAssistant,
		Message:   resp.Message,
		Intent:    "MENU",
	}); err != nil {
		slog.Error("Server.menuHandler: failed to save menu", "error", err, "sessionID", req.SessionID)
		writeTroubleResponse(w)
		return
	}

	writeJSONResponse(w, http.StatusOK, chatResponseFrom(req.SessionID, resp))
}

// endChatHandler closes the session with a personalized handoff message
// (POST /api/v1/chat/end).
func (s *Server) endChatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	var req models.EndChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.endChatHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	name := ""
	if lead, err := s.st.GetLeadBySession(req.SessionID); err == nil && lead != nil {
		name = lead.Name
	}
	handoff := flow.HandoffMessage(name)

	if err := s.st.SaveMessage(models.ChatMessage{
		SessionID: req.SessionID,
		Role:      models.RoleAssistant,
		Message:   handoff,
		Intent:    "HANDOFF",
	}); err != nil {
		slog.Error("Server.endChatHandler: failed to save handoff", "error", err, "sessionID", req.SessionID)
		writeTroubleResponse(w)
		return
	}

	if err := s.st.EndSession(req.SessionID); err != nil {
		slog.Error("Server.endChatHandler: failed to end session", "error", err, "sessionID", req.SessionID)
		writeTroubleResponse(w)
		return
	}

	slog.Info("Server.endChatHandler: session ended", "sessionID", req.SessionID)
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]any{
		"message":       handoff,
		"session_ended": true,
	}))
}

// historyHandler returns the transcript oldest-first
// (GET /api/v1/chat/{sessionID}/history).
func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	session, err := s.st.GetSession(sessionID)
	if err != nil {
		slog.Error("Server.historyHandler: failed to load session", "error", err, "sessionID", sessionID)
		writeTroubleResponse(w)
		return
	}
	if session == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}

	messages, err := s.st.GetHistory(sessionID, limit)
	if err != nil {
		slog.Error("Server.historyHandler: failed to load history", "error", err, "sessionID", sessionID)
		writeTroubleResponse(w)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(messages))
}

// leadsHandler lists captured leads newest-first (GET /api/v1/leads).
func (s *Server) leadsHandler(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	leads, err := s.st.ListLeads(offset, limit)
	if err != nil {
		slog.Error("Server.leadsHandler: failed to list leads", "error", err)
		writeTroubleResponse(w)
		return
	}
	slog.Debug("Server.leadsHandler: leads fetched", "count", len(leads))
	writeJSONResponse(w, http.StatusOK, models.Success(leads))
}

// healthHandler provides a liveness endpoint for monitoring (GET /health).
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// formatUserInput renders a turn's input for the transcript.
func formatUserInput(input models.UserInput) string {
	switch input.Kind {
	case models.InputButton:
		return fmt.Sprintf("Selected: %s", input.Text)
	case models.InputForm:
		keys := make([]string, 0, len(input.Form))
		for k := range input.Form {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		items := make([]string, 0, len(keys))
		for _, k := range keys {
			items = append(items, fmt.Sprintf("%s: %s", k, models.DisplayString(input.Form[k])))
		}
		return "Submitted form: " + strings.Join(items, ", ")
	default:
		return input.Text
	}
}

// leadUpdateForTurn maps this turn's newly collected fields onto the lead
// record. Known preference fields map to columns; everything else is
// appended to notes. Contact fields never change here.
func leadUpdateForTurn(controller *flow.Controller, currentState models.FlowState, input models.UserInput) models.LeadUpdate {
	collected := map[string]any{}
	switch input.Kind {
	case models.InputForm:
		collected = input.Form
	default:
		if key, ok := controller.Table().ContextKey(currentState); ok && input.Text != "" {
			collected[key] = input.Text
		}
	}

	var update models.LeadUpdate
	var notes []string
	for key, value := range collected {
		text := models.DisplayString(value)
		if text == "" {
			continue
		}
		switch key {
		case "budget":
			update.Budget = models.StringPtr(text)
		case "location":
			update.Location = models.StringPtr(text)
		case "property_type":
			update.PropertyType = models.StringPtr(text)
		case "timeline":
			update.Timeline = models.StringPtr(text)
		case "name", "email", "phone":
			// contact fields only change through submit-lead
		default:
			notes = append(notes, key+": "+text)
		}
	}
	if len(notes) > 0 {
		sort.Strings(notes)
		update.AppendNotes = models.StringPtr(strings.Join(notes, "; "))
	}
	return update
}

// contextValue returns a context key's value, or nil.
func contextValue(context map[string]any, key string) any {
	if context == nil {
		return nil
	}
	return context[key]
}

// contextStrings coerces a context value into a string slice: scalars
// become a one-element slice, list values are flattened element-wise.
func contextStrings(context map[string]any, key string) []string {
	switch v := contextValue(context, key).(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s := models.DisplayString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		if s := models.DisplayString(v); s != "" {
			return []string{s}
		}
		return nil
	}
}
