package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"outreachai/internal/models"
)

// PostgresCampaignStore stores campaign documents as JSONB rows. The indexed
// columns (owner, status, created_at) mirror the equality filters and ordering
// the Query type supports; the document itself is authoritative.
type PostgresCampaignStore struct {
	db   *sql.DB
	feed ChangeFeed
}

// NewPostgresCampaignStore creates a campaign store over the given database.
// Committed writes are announced on the change feed.
func NewPostgresCampaignStore(db *sql.DB, feed ChangeFeed) *PostgresCampaignStore {
	return &PostgresCampaignStore{db: db, feed: feed}
}

// Create inserts a new campaign document. CreatedAt is assigned here, once.
func (s *PostgresCampaignStore) Create(ctx context.Context, campaign *models.Campaign) error {
	now := time.Now().UTC()
	campaign.CreatedAt = now
	campaign.UpdatedAt = now

	if err := campaign.Validate(); err != nil {
		return fmt.Errorf("invalid campaign: %w", err)
	}

	data, err := json.Marshal(campaign)
	if err != nil {
		return fmt.Errorf("failed to marshal campaign: %w", err)
	}

	query := `
		INSERT INTO campaigns (campaign_id, owner_user_id, status, name, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = s.db.ExecContext(
		ctx,
		query,
		campaign.CampaignID,
		campaign.OwnerUserID,
		campaign.Status,
		campaign.Name,
		data,
		campaign.CreatedAt,
		campaign.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}

	s.publish(campaign)
	return nil
}

// Get retrieves a campaign document by id
func (s *PostgresCampaignStore) Get(ctx context.Context, id string) (*models.Campaign, error) {
	query := `SELECT data FROM campaigns WHERE campaign_id = $1`

	var data []byte
	err := s.db.QueryRowContext(ctx, query, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	campaign := &models.Campaign{}
	if err := json.Unmarshal(data, campaign); err != nil {
		return nil, fmt.Errorf("failed to unmarshal campaign: %w", err)
	}

	return campaign, nil
}

// Update applies a merge patch to a campaign document. Only the fields set on
// the patch are replaced; the write is last-write-wins per field. The document
// is re-read and re-written inside a transaction so concurrent patches to
// different fields both survive.
func (s *PostgresCampaignStore) Update(ctx context.Context, id string, patch CampaignPatch) error {
	if patch.IsEmpty() {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var data []byte
	err = tx.QueryRowContext(ctx, `SELECT data FROM campaigns WHERE campaign_id = $1 FOR UPDATE`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read campaign for update: %w", err)
	}

	campaign := &models.Campaign{}
	if err := json.Unmarshal(data, campaign); err != nil {
		return fmt.Errorf("failed to unmarshal campaign: %w", err)
	}

	patch.Apply(campaign)
	campaign.UpdatedAt = time.Now().UTC()

	if err := campaign.Validate(); err != nil {
		return fmt.Errorf("invalid campaign after update: %w", err)
	}

	updated, err := json.Marshal(campaign)
	if err != nil {
		return fmt.Errorf("failed to marshal campaign: %w", err)
	}

	_, err = tx.ExecContext(
		ctx,
		`UPDATE campaigns SET status = $1, data = $2, updated_at = $3 WHERE campaign_id = $4`,
		campaign.Status,
		updated,
		campaign.UpdatedAt,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update campaign: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.publish(campaign)
	return nil
}

// List retrieves campaigns matching the query, newest first
func (s *PostgresCampaignStore) List(ctx context.Context, q Query) ([]*models.Campaign, error) {
	queryBuilder := strings.Builder{}
	queryBuilder.WriteString(`SELECT data FROM campaigns WHERE 1=1`)

	args := []interface{}{}
	argPos := 1

	if q.OwnerUserID != "" {
		queryBuilder.WriteString(fmt.Sprintf(" AND owner_user_id = $%d", argPos))
		args = append(args, q.OwnerUserID)
		argPos++
	}

	if q.Status != "" {
		queryBuilder.WriteString(fmt.Sprintf(" AND status = $%d", argPos))
		args = append(args, q.Status)
		argPos++
	}

	queryBuilder.WriteString(" ORDER BY created_at DESC")

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	queryBuilder.WriteString(fmt.Sprintf(" LIMIT $%d", argPos))
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	campaigns := []*models.Campaign{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}

		campaign := &models.Campaign{}
		if err := json.Unmarshal(data, campaign); err != nil {
			return nil, fmt.Errorf("failed to unmarshal campaign: %w", err)
		}
		campaigns = append(campaigns, campaign)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate campaigns: %w", err)
	}

	return campaigns, nil
}

// Subscribe opens a push stream of campaigns matching the query
func (s *PostgresCampaignStore) Subscribe(ctx context.Context, q Query) (Subscription, error) {
	return newQuerySubscription(ctx, q, s.List, s.feed)
}

func (s *PostgresCampaignStore) publish(campaign *models.Campaign) {
	err := s.feed.Publish(Change{
		CampaignID:  campaign.CampaignID,
		OwnerUserID: campaign.OwnerUserID,
		Status:      campaign.Status,
	})
	if err != nil {
		// The write itself committed; subscribers will catch up on the
		// next event for this owner.
		log.Printf("Warning: failed to publish change for %s: %v", campaign.CampaignID, err)
	}
}
