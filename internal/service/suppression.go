package service

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"outreachai/internal/models"
	"outreachai/internal/store"
)

// DefaultUnsubscribeSource marks entries created through the public form
const DefaultUnsubscribeSource = "manual"

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// SuppressionService maintains the unsubscribed_emails list. Launch and send
// never consult it locally; the engine checks it before dispatching.
type SuppressionService struct {
	suppressions store.SuppressionStore
}

// NewSuppressionService creates the suppression service
func NewSuppressionService(suppressions store.SuppressionStore) *SuppressionService {
	return &SuppressionService{suppressions: suppressions}
}

// Unsubscribe records an opt-out for the address. Addresses are normalized to
// lower case; repeated unsubscribes append further entries and all succeed.
func (s *SuppressionService) Unsubscribe(ctx context.Context, email, source string) (*models.UnsubscribedEmail, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !emailPattern.MatchString(email) {
		return nil, &ValidationError{Message: "a valid email address is required"}
	}
	if source == "" {
		source = DefaultUnsubscribeSource
	}

	entry := &models.UnsubscribedEmail{
		Email:          email,
		Source:         source,
		UnsubscribedAt: time.Now().UTC(),
	}
	if err := s.suppressions.Add(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record unsubscribe: %w", err)
	}

	log.Printf("Email unsubscribed: %s (source %s)", email, source)
	return entry, nil
}

// IsSuppressed answers whether the address opted out. The engine calls this
// before dispatching to a lead.
func (s *SuppressionService) IsSuppressed(ctx context.Context, email string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false, &ValidationError{Message: "email is required"}
	}

	suppressed, err := s.suppressions.IsSuppressed(ctx, email)
	if err != nil {
		return false, fmt.Errorf("failed to check suppression list: %w", err)
	}
	return suppressed, nil
}
