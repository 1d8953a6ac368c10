package models

import (
	"fmt"
	"time"
)

// UnsubscribedEmail is a suppression-list entry. Entries are append-only and
// duplicates are allowed; unsubscribing twice is harmless.
type UnsubscribedEmail struct {
	Email          string    `json:"email"`
	Source         string    `json:"source"`
	UnsubscribedAt time.Time `json:"unsubscribedAt"`
}

// Validate checks the entry before persistence
func (u *UnsubscribedEmail) Validate() error {
	if u.Email == "" {
		return fmt.Errorf("email is required")
	}
	if u.Source == "" {
		return fmt.Errorf("source is required")
	}
	return nil
}
