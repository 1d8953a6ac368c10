package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"outreachai/internal/service"
)

// UnsubscribeHandler serves the public suppression-list endpoints. No identity
// headers are required; the unsubscribe page is reachable without signing in.
type UnsubscribeHandler struct {
	suppressions *service.SuppressionService
}

// NewUnsubscribeHandler creates a new unsubscribe handler
func NewUnsubscribeHandler(suppressions *service.SuppressionService) *UnsubscribeHandler {
	return &UnsubscribeHandler{suppressions: suppressions}
}

// UnsubscribeRequest is the POST /unsubscribe payload
type UnsubscribeRequest struct {
	Email  string `json:"email"`
	Source string `json:"source,omitempty"`
}

// Unsubscribe handles POST /unsubscribe - records an opt-out
func (h *UnsubscribeHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req UnsubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}

	entry, err := h.suppressions.Unsubscribe(r.Context(), req.Email, req.Source)
	if err != nil {
		HandleServiceError(w, err)
		return
	}

	WriteCreated(w, entry)
}

// Check handles GET /unsubscribe/{email} - the engine's pre-dispatch lookup
func (h *UnsubscribeHandler) Check(w http.ResponseWriter, r *http.Request) {
	email := mux.Vars(r)["email"]

	suppressed, err := h.suppressions.IsSuppressed(r.Context(), email)
	if err != nil {
		HandleServiceError(w, err)
		return
	}

	WriteOK(w, map[string]interface{}{
		"email":        email,
		"unsubscribed": suppressed,
	})
}
