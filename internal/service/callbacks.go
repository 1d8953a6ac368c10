package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"outreachai/internal/models"
	"outreachai/internal/store"
)

// EngineCallbacks applies the automation engine's asynchronous write-backs.
// The engine owns the generating -> drafts_ready and processing -> terminal
// transitions; everything it reports lands in the store as a merge patch and
// reaches live subscriptions through the change feed.
type EngineCallbacks struct {
	campaigns store.CampaignStore
	users     store.UserStore
}

// NewEngineCallbacks creates the engine write-back service
func NewEngineCallbacks(campaigns store.CampaignStore, users store.UserStore) *EngineCallbacks {
	return &EngineCallbacks{campaigns: campaigns, users: users}
}

// ApplyDrafts records generated drafts and moves the campaign to
// drafts_ready. Redelivery of the same callback is idempotent: a campaign
// already in drafts_ready just gets its drafts overwritten.
func (e *EngineCallbacks) ApplyDrafts(ctx context.Context, campaignID string, drafts []models.Draft) error {
	campaign, err := e.campaigns.Get(ctx, campaignID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &NotFoundError{Resource: "campaign", ID: campaignID}
		}
		return fmt.Errorf("failed to load campaign: %w", err)
	}

	if len(drafts) == 0 {
		return &ValidationError{Message: "drafts payload is empty"}
	}

	if campaign.Status != models.CampaignStatusDraftsReady &&
		!models.CanTransition(campaign.Status, models.CampaignStatusDraftsReady) {
		return &ValidationError{Message: fmt.Sprintf("cannot accept drafts in status %s", campaign.Status)}
	}

	if len(drafts) != len(campaign.Contacts) {
		// Documented integrity condition: tolerated, never fatal.
		log.Printf("Warning: campaign %s received %d drafts for %d contacts", campaignID, len(drafts), len(campaign.Contacts))
	}

	// The engine sometimes omits recipient names; fill them in from the
	// contact list so the editor always has something to display.
	contactsByEmail := make(map[string]*models.Contact, len(campaign.Contacts))
	for i := range campaign.Contacts {
		contactsByEmail[campaign.Contacts[i].Email] = &campaign.Contacts[i]
	}
	for i := range drafts {
		if drafts[i].RecipientName != "" {
			continue
		}
		if contact, ok := contactsByEmail[drafts[i].RecipientEmail]; ok {
			drafts[i].RecipientName = contact.DisplayName()
		}
	}

	status := models.CampaignStatusDraftsReady
	patch := store.CampaignPatch{
		Status: &status,
		Drafts: &drafts,
	}
	if err := e.campaigns.Update(ctx, campaignID, patch); err != nil {
		return fmt.Errorf("failed to store drafts: %w", err)
	}

	log.Printf("Campaign %s drafts ready (%d drafts)", campaignID, len(drafts))
	return nil
}

// Progress is the engine's send-progress report. FinalStatus is empty while
// sending is still underway, or completed/failed on the terminal report.
type Progress struct {
	EmailsSent   int                   `json:"emailsSent"`
	SuccessCount int                   `json:"successCount"`
	FailureCount int                   `json:"failureCount"`
	FinalStatus  models.CampaignStatus `json:"finalStatus,omitempty"`
}

// ApplyProgress records dispatch counters and, on the terminal report, the
// final status. Counters never move backwards once sending begins.
func (e *EngineCallbacks) ApplyProgress(ctx context.Context, campaignID string, progress Progress) error {
	campaign, err := e.campaigns.Get(ctx, campaignID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &NotFoundError{Resource: "campaign", ID: campaignID}
		}
		return fmt.Errorf("failed to load campaign: %w", err)
	}

	if progress.EmailsSent < campaign.EmailsSent ||
		progress.SuccessCount < campaign.SuccessCount ||
		progress.FailureCount < campaign.FailureCount {
		return &ValidationError{Message: "progress counters cannot decrease"}
	}

	patch := store.CampaignPatch{
		EmailsSent:   &progress.EmailsSent,
		SuccessCount: &progress.SuccessCount,
		FailureCount: &progress.FailureCount,
	}

	if progress.FinalStatus != "" {
		if !models.CanTransition(campaign.Status, progress.FinalStatus) {
			return &ValidationError{Message: fmt.Sprintf("illegal transition %s -> %s", campaign.Status, progress.FinalStatus)}
		}
		if progress.FinalStatus != models.CampaignStatusCompleted && progress.FinalStatus != models.CampaignStatusFailed {
			return &ValidationError{Message: fmt.Sprintf("engine may only report terminal statuses, got %s", progress.FinalStatus)}
		}
		patch.Status = &progress.FinalStatus
	}

	if err := e.campaigns.Update(ctx, campaignID, patch); err != nil {
		return fmt.Errorf("failed to store progress: %w", err)
	}

	if delta := progress.EmailsSent - campaign.EmailsSent; delta > 0 {
		if err := e.users.AddEmailsSent(ctx, campaign.OwnerUserID, delta); err != nil {
			log.Printf("Warning: failed to update sent counter for %s: %v", campaign.OwnerUserID, err)
		}
	}

	return nil
}
