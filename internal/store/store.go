package store

import (
	"context"
	"errors"

	"outreachai/internal/models"
)

// ErrNotFound is returned when a document does not exist
var ErrNotFound = errors.New("document not found")

// Query selects campaigns by equality filters. Results are always ordered by
// creation time descending and capped at Limit (a default applies when zero).
type Query struct {
	OwnerUserID string
	Status      models.CampaignStatus
	Limit       int
}

// DefaultQueryLimit caps subscription result sets
const DefaultQueryLimit = 10

// CampaignPatch is a partial campaign update. Nil fields are left untouched;
// set fields overwrite whatever is stored (last-write-wins per field).
type CampaignPatch struct {
	Status       *models.CampaignStatus
	Drafts       *[]models.Draft
	EmailsSent   *int
	SuccessCount *int
	FailureCount *int
}

// IsEmpty reports whether the patch changes nothing
func (p *CampaignPatch) IsEmpty() bool {
	return p.Status == nil && p.Drafts == nil &&
		p.EmailsSent == nil && p.SuccessCount == nil && p.FailureCount == nil
}

// Apply merges the patch into a campaign record
func (p *CampaignPatch) Apply(c *models.Campaign) {
	if p.Status != nil {
		c.Status = *p.Status
	}
	if p.Drafts != nil {
		c.Drafts = *p.Drafts
	}
	if p.EmailsSent != nil {
		c.EmailsSent = *p.EmailsSent
	}
	if p.SuccessCount != nil {
		c.SuccessCount = *p.SuccessCount
	}
	if p.FailureCount != nil {
		c.FailureCount = *p.FailureCount
	}
}

// Subscription is a cancelable push stream of query results. Every committed
// write that may affect the query triggers a wholesale re-emission of the
// full result set; consumers re-render from each emission rather than
// applying diffs. Slow consumers observe the latest state, intermediate
// emissions may be coalesced.
type Subscription interface {
	Updates() <-chan []*models.Campaign
	Cancel()
}

// CampaignStore defines document access for the campaigns collection
type CampaignStore interface {
	Create(ctx context.Context, campaign *models.Campaign) error
	Update(ctx context.Context, id string, patch CampaignPatch) error
	Get(ctx context.Context, id string) (*models.Campaign, error)
	List(ctx context.Context, q Query) ([]*models.Campaign, error)
	Subscribe(ctx context.Context, q Query) (Subscription, error)
}

// UserStore defines document access for the users collection
type UserStore interface {
	Get(ctx context.Context, userID string) (*models.User, error)
	Ensure(ctx context.Context, user *models.User) error
	RecordLaunch(ctx context.Context, userID string, leads int) error
	AddEmailsSent(ctx context.Context, userID string, sent int) error
}

// SuppressionStore defines access to the unsubscribed_emails collection.
// Add is append-only; the same address may appear more than once.
type SuppressionStore interface {
	Add(ctx context.Context, entry *models.UnsubscribedEmail) error
	IsSuppressed(ctx context.Context, email string) (bool, error)
}
