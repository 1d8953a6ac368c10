package handler

import (
	"encoding/json"
	"net/http"

	"outreachai/internal/models"
	"outreachai/internal/service"
)

// CallbackHandler receives the automation engine's asynchronous write-backs.
// These endpoints are the engine's only path into the document store.
type CallbackHandler struct {
	callbacks *service.EngineCallbacks
}

// NewCallbackHandler creates a new callback handler
func NewCallbackHandler(callbacks *service.EngineCallbacks) *CallbackHandler {
	return &CallbackHandler{callbacks: callbacks}
}

// DraftsCallbackRequest is the engine's drafts-generated payload
type DraftsCallbackRequest struct {
	CampaignID string         `json:"campaignId"`
	Drafts     []models.Draft `json:"drafts"`
}

// Drafts handles POST /callbacks/drafts
func (h *CallbackHandler) Drafts(w http.ResponseWriter, r *http.Request) {
	var req DraftsCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}
	if req.CampaignID == "" {
		WriteValidationError(w, "campaignId is required")
		return
	}

	if err := h.callbacks.ApplyDrafts(r.Context(), req.CampaignID, req.Drafts); err != nil {
		HandleServiceError(w, err)
		return
	}

	WriteOK(w, map[string]string{"campaignId": req.CampaignID, "status": string(models.CampaignStatusDraftsReady)})
}

// ProgressCallbackRequest is the engine's dispatch-progress payload
type ProgressCallbackRequest struct {
	CampaignID string `json:"campaignId"`
	service.Progress
}

// Progress handles POST /callbacks/progress
func (h *CallbackHandler) Progress(w http.ResponseWriter, r *http.Request) {
	var req ProgressCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}
	if req.CampaignID == "" {
		WriteValidationError(w, "campaignId is required")
		return
	}

	if err := h.callbacks.ApplyProgress(r.Context(), req.CampaignID, req.Progress); err != nil {
		HandleServiceError(w, err)
		return
	}

	WriteOK(w, map[string]string{"campaignId": req.CampaignID})
}
