package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/naveenvasou/sales-chatbot-widget/internal/models"
)

// genericTroubleMessage is returned when a collaborator (storage, AI)
// fails mid-turn. Conversation state is left unchanged so retrying is safe.
const genericTroubleMessage = "We're having trouble processing your request right now. Please try again."

// Pre-marshaled fallback response to avoid runtime JSON encoding failures
var fallbackErrorResponse []byte

func init() {
	var err error
	fallbackErrorResponse, err = json.Marshal(models.Error("Internal server error"))
	if err != nil {
		panic(fmt.Sprintf("Failed to marshal fallback error response at startup: %v", err))
	}
}

// writeJSONResponse writes a JSON response with the given status code. The
// payload is marshaled before any header is written so an encoding error
// can still downgrade to the fallback.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	jsonData, err := json.Marshal(response)
	if err != nil {
		slog.Error("Server.writeJSONResponse: failed to marshal JSON response", "error", err)
		jsonData = fallbackErrorResponse
		statusCode = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, writeErr := w.Write(jsonData); writeErr != nil {
		slog.Error("Server.writeJSONResponse: failed to write JSON response", "error", writeErr)
	}
}

// chatResponseFrom converts a flow DisplayResponse into the wire envelope.
// The collected context stays server-side; only presentation fields travel.
func chatResponseFrom(sessionID string, resp models.DisplayResponse) models.ChatResponse {
	return models.ChatResponse{
		SessionID:      sessionID,
		Message:        resp.Message,
		CurrentState:   resp.CurrentState,
		NextState:      resp.NextState,
		UIComponent:    resp.UIComponent,
		ShowMenuButton: resp.ShowMenuButton,
	}
}

// writeTroubleResponse surfaces a collaborator failure as the generic
// retryable error.
func writeTroubleResponse(w http.ResponseWriter) {
	writeJSONResponse(w, http.StatusInternalServerError, models.Error(genericTroubleMessage))
}
