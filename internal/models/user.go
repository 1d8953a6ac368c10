package models

import "time"

// EmailSettings holds the user's configured sender identity
type EmailSettings struct {
	SenderName  string `json:"senderName,omitempty"`
	SenderEmail string `json:"senderEmail,omitempty"`
}

// User represents an account record in the users collection. The dashboard
// counters are denormalized aggregates maintained as campaigns progress.
type User struct {
	UserID          string        `json:"userId"`
	Email           string        `json:"email"`
	DisplayName     string        `json:"displayName,omitempty"`
	Tokens          int           `json:"tokens"`
	ActiveCampaigns int           `json:"activeCampaigns"`
	TotalLeads      int           `json:"totalLeads"`
	EmailsSent      int           `json:"emailsSent"`
	ResponseRate    int           `json:"responseRate"`
	EmailSettings   EmailSettings `json:"emailSettings"`
	CreatedAt       time.Time     `json:"createdAt"`
}

// SenderInfo returns the user's sender identity, falling back to the
// account email when no explicit settings exist
func (u *User) SenderInfo() SenderInfo {
	info := SenderInfo{
		SenderName:  u.EmailSettings.SenderName,
		SenderEmail: u.EmailSettings.SenderEmail,
	}
	if info.SenderEmail == "" {
		info.SenderEmail = u.Email
	}
	if info.SenderName == "" {
		info.SenderName = u.DisplayName
	}
	return info
}
