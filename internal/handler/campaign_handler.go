package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"outreachai/internal/models"
	"outreachai/internal/service"
)

// CampaignHandler handles HTTP requests for campaign operations. The caller
// identity arrives in X-User-ID / X-User-Email headers; authenticating them
// is the fronting layer's job.
type CampaignHandler struct {
	sessions *service.SessionManager
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(sessions *service.SessionManager) *CampaignHandler {
	return &CampaignHandler{sessions: sessions}
}

// controllerFor resolves the request's session controller, writing an error
// response and returning nil when the identity headers are missing
func (h *CampaignHandler) controllerFor(w http.ResponseWriter, r *http.Request) *service.Controller {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		WriteError(w, http.StatusUnauthorized, "MISSING_IDENTITY", "X-User-ID header is required")
		return nil
	}

	controller, err := h.sessions.GetOrStart(service.Session{
		UserID: userID,
		Email:  r.Header.Get("X-User-Email"),
	})
	if err != nil {
		HandleServiceError(w, err)
		return nil
	}
	return controller
}

// LaunchCampaignRequest is the POST /campaigns payload
type LaunchCampaignRequest struct {
	Name    string            `json:"campaignName"`
	Sender  models.SenderInfo `json:"sender"`
	CSVData string            `json:"csvData"`
}

// LaunchCampaignResponse is returned once the campaign record is committed
type LaunchCampaignResponse struct {
	CampaignID string                `json:"campaignId"`
	Status     models.CampaignStatus `json:"status"`
}

// Launch handles POST /campaigns - launches a new campaign
func (h *CampaignHandler) Launch(w http.ResponseWriter, r *http.Request) {
	controller := h.controllerFor(w, r)
	if controller == nil {
		return
	}

	var req LaunchCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err == io.EOF {
			WriteError(w, http.StatusBadRequest, "INVALID_JSON", "Request body is empty")
			return
		}
		WriteError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}

	campaignID, err := controller.LaunchCampaign(r.Context(), req.Name, req.Sender, req.CSVData)
	if err != nil {
		// A transport failure after the store commit still produced a
		// campaign; it sits in generating until remediated.
		var transportErr *service.TransportError
		if errors.As(err, &transportErr) && campaignID != "" {
			WriteError(w, http.StatusBadGateway, "ENGINE_UNREACHABLE", transportErr.Error()+" (campaign "+campaignID+" left in generating)")
			return
		}
		HandleServiceError(w, err)
		return
	}

	WriteCreated(w, LaunchCampaignResponse{
		CampaignID: campaignID,
		Status:     models.CampaignStatusGenerating,
	})
}

// List handles GET /campaigns - the user's campaigns, newest first, with
// status and progress counters
func (h *CampaignHandler) List(w http.ResponseWriter, r *http.Request) {
	controller := h.controllerFor(w, r)
	if controller == nil {
		return
	}

	campaigns, err := controller.ListCampaigns(r.Context())
	if err != nil {
		HandleServiceError(w, err)
		return
	}
	if campaigns == nil {
		campaigns = []*models.Campaign{}
	}
	WriteOK(w, map[string]interface{}{"campaigns": campaigns})
}

// Detail handles GET /campaigns/{id} - one campaign's full record
func (h *CampaignHandler) Detail(w http.ResponseWriter, r *http.Request) {
	controller := h.controllerFor(w, r)
	if controller == nil {
		return
	}

	campaign, err := controller.GetCampaign(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		HandleServiceError(w, err)
		return
	}
	WriteOK(w, campaign)
}

// DraftsReady handles GET /campaigns/drafts-ready - the current editable set
func (h *CampaignHandler) DraftsReady(w http.ResponseWriter, r *http.Request) {
	controller := h.controllerFor(w, r)
	if controller == nil {
		return
	}

	campaigns := controller.DraftsReadySnapshot()
	if campaigns == nil {
		campaigns = []*models.Campaign{}
	}
	WriteOK(w, map[string]interface{}{"campaigns": campaigns})
}

// EditDraftRequest is the PATCH drafts payload
type EditDraftRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// EditDraft handles PATCH /campaigns/{id}/drafts/{index}. Edits apply to the
// in-memory copy only and are silently dropped when the target is gone, so a
// well-formed request always answers 204.
func (h *CampaignHandler) EditDraft(w http.ResponseWriter, r *http.Request) {
	controller := h.controllerFor(w, r)
	if controller == nil {
		return
	}

	vars := mux.Vars(r)
	campaignID := vars["id"]

	index, err := strconv.Atoi(vars["index"])
	if err != nil || index < 0 {
		WriteValidationError(w, "invalid draft index")
		return
	}

	var req EditDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}

	controller.EditDraft(campaignID, index, req.Subject, req.Body)
	WriteNoContent(w)
}

// Send handles POST /campaigns/{id}/send - commits drafts and dispatches
func (h *CampaignHandler) Send(w http.ResponseWriter, r *http.Request) {
	controller := h.controllerFor(w, r)
	if controller == nil {
		return
	}

	campaignID := mux.Vars(r)["id"]
	if err := controller.SendCampaign(r.Context(), campaignID); err != nil {
		HandleServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"campaignId": campaignID,
		"status":     models.CampaignStatusProcessing,
	})
}

// CheckReplies handles POST /campaigns/{id}/check-replies
func (h *CampaignHandler) CheckReplies(w http.ResponseWriter, r *http.Request) {
	controller := h.controllerFor(w, r)
	if controller == nil {
		return
	}

	campaignID := mux.Vars(r)["id"]
	result, err := controller.CheckReplies(r.Context(), campaignID)
	if err != nil {
		HandleServiceError(w, err)
		return
	}

	WriteOK(w, result)
}

// Stats handles GET /campaigns/stats - dashboard aggregates
func (h *CampaignHandler) Stats(w http.ResponseWriter, r *http.Request) {
	controller := h.controllerFor(w, r)
	if controller == nil {
		return
	}

	stats, err := controller.DashboardStats(r.Context())
	if err != nil {
		HandleServiceError(w, err)
		return
	}

	WriteOK(w, stats)
}

// Pending handles GET /campaigns/pending - handoffs awaiting engine confirmation
func (h *CampaignHandler) Pending(w http.ResponseWriter, r *http.Request) {
	controller := h.controllerFor(w, r)
	if controller == nil {
		return
	}

	WriteOK(w, map[string]interface{}{"pending": controller.PendingHandoffs()})
}

// Logout handles POST /logout - ends the session and cancels subscriptions
func (h *CampaignHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		WriteError(w, http.StatusUnauthorized, "MISSING_IDENTITY", "X-User-ID header is required")
		return
	}

	h.sessions.Logout(userID)
	WriteNoContent(w)
}
