package models

import (
	"fmt"
	"time"
)

// CampaignStatus represents valid campaign statuses
type CampaignStatus string

const (
	CampaignStatusGenerating  CampaignStatus = "generating"
	CampaignStatusDraftsReady CampaignStatus = "drafts_ready"
	CampaignStatusProcessing  CampaignStatus = "processing"
	CampaignStatusCompleted   CampaignStatus = "completed"
	CampaignStatusFailed      CampaignStatus = "failed"
	// CampaignStatusPaused is part of the status vocabulary but no operation
	// currently produces it. It is accepted as a legal value everywhere a
	// status is validated.
	CampaignStatusPaused CampaignStatus = "paused"
)

// ValidStatus reports whether s is a known campaign status
func ValidStatus(s CampaignStatus) bool {
	switch s {
	case CampaignStatusGenerating, CampaignStatusDraftsReady, CampaignStatusProcessing,
		CampaignStatusCompleted, CampaignStatusFailed, CampaignStatusPaused:
		return true
	}
	return false
}

// CanTransition reports whether a campaign may move from one status to another.
// Transitions are one-directional: generating -> drafts_ready -> processing ->
// completed/failed. Pause is reachable from any non-terminal state; resuming
// returns to the state the campaign would otherwise be in.
func CanTransition(from, to CampaignStatus) bool {
	if from == to {
		return false
	}
	switch to {
	case CampaignStatusDraftsReady:
		return from == CampaignStatusGenerating || from == CampaignStatusPaused
	case CampaignStatusProcessing:
		return from == CampaignStatusDraftsReady || from == CampaignStatusPaused
	case CampaignStatusCompleted, CampaignStatusFailed:
		return from == CampaignStatusProcessing
	case CampaignStatusPaused:
		return from != CampaignStatusCompleted && from != CampaignStatusFailed
	}
	return false
}

// SenderInfo identifies the sending identity configured for a campaign
type SenderInfo struct {
	SenderName  string `json:"senderName"`
	SenderEmail string `json:"senderEmail"`
}

// Campaign represents an outreach campaign in the system
type Campaign struct {
	CampaignID   string         `json:"campaignId"`
	OwnerUserID  string         `json:"ownerUserId"`
	Name         string         `json:"campaignName"`
	Status       CampaignStatus `json:"status"`
	Contacts     []Contact      `json:"contacts"`
	Drafts       []Draft        `json:"drafts,omitempty"`
	EmailsTotal  int            `json:"emailsTotal"`
	EmailsSent   int            `json:"emailsSent"`
	SuccessCount int            `json:"successCount"`
	FailureCount int            `json:"failureCount"`
	Sender       SenderInfo     `json:"sender"`
	CSVData      string         `json:"csvData,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// Validate checks if the campaign fields are valid
func (c *Campaign) Validate() error {
	if c.CampaignID == "" {
		return fmt.Errorf("campaign id is required")
	}
	if c.OwnerUserID == "" {
		return fmt.Errorf("owner user id is required")
	}
	if c.Name == "" {
		return fmt.Errorf("campaign name is required")
	}
	if !ValidStatus(c.Status) {
		return fmt.Errorf("invalid status: %s", c.Status)
	}
	if c.EmailsSent > c.EmailsTotal {
		return fmt.Errorf("emailsSent (%d) exceeds emailsTotal (%d)", c.EmailsSent, c.EmailsTotal)
	}
	return nil
}

// HasDrafts reports whether the engine has written any drafts yet
func (c *Campaign) HasDrafts() bool {
	return len(c.Drafts) > 0
}

// DraftsComplete reports whether there is one draft per contact. The engine
// occasionally delivers partial draft lists; callers log the mismatch and
// carry on rather than rejecting the record.
func (c *Campaign) DraftsComplete() bool {
	return len(c.Drafts) == len(c.Contacts)
}

// Progress returns the percentage of emails sent, 0-100
func (c *Campaign) Progress() int {
	if c.EmailsTotal == 0 {
		return 0
	}
	return c.EmailsSent * 100 / c.EmailsTotal
}

// IsTerminal reports whether the campaign has reached a final state
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignStatusCompleted || c.Status == CampaignStatusFailed
}

// Clone returns a deep copy of the campaign. The controller hands copies to
// callers so local draft edits never alias subscription state.
func (c *Campaign) Clone() *Campaign {
	out := *c
	if c.Contacts != nil {
		out.Contacts = make([]Contact, len(c.Contacts))
		copy(out.Contacts, c.Contacts)
	}
	if c.Drafts != nil {
		out.Drafts = make([]Draft, len(c.Drafts))
		copy(out.Drafts, c.Drafts)
	}
	return &out
}

// CampaignStats represents derived aggregate statistics across campaigns
type CampaignStats struct {
	Active      int `json:"active"`
	Completed   int `json:"completed"`
	Failed      int `json:"failed"`
	TotalLeads  int `json:"totalLeads"`
	EmailsSent  int `json:"emailsSent"`
	EmailsTotal int `json:"emailsTotal"`
}

// Aggregate computes summary stats over a set of campaigns
func Aggregate(campaigns []*Campaign) CampaignStats {
	var stats CampaignStats
	for _, c := range campaigns {
		switch c.Status {
		case CampaignStatusCompleted:
			stats.Completed++
		case CampaignStatusFailed:
			stats.Failed++
		default:
			stats.Active++
		}
		stats.TotalLeads += len(c.Contacts)
		stats.EmailsSent += c.EmailsSent
		stats.EmailsTotal += c.EmailsTotal
	}
	return stats
}
