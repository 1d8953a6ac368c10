package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"outreachai/internal/models"
)

// MemoryCampaignStore is an in-process CampaignStore. It serves local
// development without Postgres/RabbitMQ and lets tests synthesize engine
// writes: any Update made here reaches subscribers exactly as a real push
// would.
type MemoryCampaignStore struct {
	mu        sync.Mutex
	campaigns map[string]*models.Campaign
	feed      ChangeFeed
}

// NewMemoryCampaignStore creates an empty in-memory campaign store
func NewMemoryCampaignStore(feed ChangeFeed) *MemoryCampaignStore {
	if feed == nil {
		feed = NewMemoryFeed()
	}
	return &MemoryCampaignStore{
		campaigns: make(map[string]*models.Campaign),
		feed:      feed,
	}
}

// Create inserts a new campaign document
func (s *MemoryCampaignStore) Create(ctx context.Context, campaign *models.Campaign) error {
	now := time.Now().UTC()
	campaign.CreatedAt = now
	campaign.UpdatedAt = now

	if err := campaign.Validate(); err != nil {
		return fmt.Errorf("invalid campaign: %w", err)
	}

	s.mu.Lock()
	if _, exists := s.campaigns[campaign.CampaignID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("campaign %s already exists", campaign.CampaignID)
	}
	s.campaigns[campaign.CampaignID] = campaign.Clone()
	s.mu.Unlock()

	return s.feed.Publish(Change{
		CampaignID:  campaign.CampaignID,
		OwnerUserID: campaign.OwnerUserID,
		Status:      campaign.Status,
	})
}

// Get retrieves a campaign document by id
func (s *MemoryCampaignStore) Get(ctx context.Context, id string) (*models.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	campaign, ok := s.campaigns[id]
	if !ok {
		return nil, ErrNotFound
	}
	return campaign.Clone(), nil
}

// Update applies a merge patch to a campaign document
func (s *MemoryCampaignStore) Update(ctx context.Context, id string, patch CampaignPatch) error {
	if patch.IsEmpty() {
		return nil
	}

	s.mu.Lock()
	campaign, ok := s.campaigns[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}

	updated := campaign.Clone()
	patch.Apply(updated)
	updated.UpdatedAt = time.Now().UTC()

	if err := updated.Validate(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("invalid campaign after update: %w", err)
	}

	s.campaigns[id] = updated
	s.mu.Unlock()

	return s.feed.Publish(Change{
		CampaignID:  updated.CampaignID,
		OwnerUserID: updated.OwnerUserID,
		Status:      updated.Status,
	})
}

// List retrieves campaigns matching the query, newest first
func (s *MemoryCampaignStore) List(ctx context.Context, q Query) ([]*models.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := []*models.Campaign{}
	for _, c := range s.campaigns {
		if q.OwnerUserID != "" && c.OwnerUserID != q.OwnerUserID {
			continue
		}
		if q.Status != "" && c.Status != q.Status {
			continue
		}
		results = append(results, c.Clone())
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	if len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// Subscribe opens a push stream of campaigns matching the query
func (s *MemoryCampaignStore) Subscribe(ctx context.Context, q Query) (Subscription, error) {
	return newQuerySubscription(ctx, q, s.List, s.feed)
}

// MemoryUserStore is an in-process UserStore
type MemoryUserStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

// NewMemoryUserStore creates an empty in-memory user store
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]*models.User)}
}

// Get retrieves a user document by id
func (s *MemoryUserStore) Get(ctx context.Context, userID string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *user
	return &out, nil
}

// Ensure inserts the user document if it does not exist yet
func (s *MemoryUserStore) Ensure(ctx context.Context, user *models.User) error {
	if user.UserID == "" {
		return fmt.Errorf("user id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.UserID]; exists {
		return nil
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	stored := *user
	s.users[user.UserID] = &stored
	return nil
}

// RecordLaunch bumps the dashboard counters after a campaign launch
func (s *MemoryUserStore) RecordLaunch(ctx context.Context, userID string, leads int) error {
	return s.mutate(userID, func(u *models.User) {
		u.ActiveCampaigns++
		u.TotalLeads += leads
	})
}

// AddEmailsSent adds to the lifetime sent counter
func (s *MemoryUserStore) AddEmailsSent(ctx context.Context, userID string, sent int) error {
	return s.mutate(userID, func(u *models.User) {
		u.EmailsSent += sent
	})
}

func (s *MemoryUserStore) mutate(userID string, fn func(*models.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	fn(user)
	return nil
}

// MemorySuppressionStore is an in-process SuppressionStore
type MemorySuppressionStore struct {
	mu      sync.Mutex
	entries []models.UnsubscribedEmail
}

// NewMemorySuppressionStore creates an empty in-memory suppression list
func NewMemorySuppressionStore() *MemorySuppressionStore {
	return &MemorySuppressionStore{}
}

// Add appends a suppression entry
func (s *MemorySuppressionStore) Add(ctx context.Context, entry *models.UnsubscribedEmail) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid suppression entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *entry)
	return nil
}

// IsSuppressed reports whether the address has ever unsubscribed
func (s *MemorySuppressionStore) IsSuppressed(ctx context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range s.entries {
		if entry.Email == email {
			return true, nil
		}
	}
	return false, nil
}
