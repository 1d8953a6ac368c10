package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"outreachai/internal/models"
)

// PostgresUserStore stores user documents as JSONB rows
type PostgresUserStore struct {
	db *sql.DB
}

// NewPostgresUserStore creates a user store over the given database
func NewPostgresUserStore(db *sql.DB) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

// Get retrieves a user document by id
func (s *PostgresUserStore) Get(ctx context.Context, userID string) (*models.User, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM users WHERE user_id = $1`, userID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user := &models.User{}
	if err := json.Unmarshal(data, user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	return user, nil
}

// Ensure inserts the user document if it does not exist yet. An existing
// document is left untouched.
func (s *PostgresUserStore) Ensure(ctx context.Context, user *models.User) error {
	if user.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO users (user_id, data, created_at) VALUES ($1, $2, $3) ON CONFLICT (user_id) DO NOTHING`,
		user.UserID,
		data,
		user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to ensure user: %w", err)
	}
	return nil
}

// RecordLaunch bumps the dashboard counters after a campaign launch
func (s *PostgresUserStore) RecordLaunch(ctx context.Context, userID string, leads int) error {
	return s.mutate(ctx, userID, func(u *models.User) {
		u.ActiveCampaigns++
		u.TotalLeads += leads
	})
}

// AddEmailsSent adds to the lifetime sent counter as engine progress arrives
func (s *PostgresUserStore) AddEmailsSent(ctx context.Context, userID string, sent int) error {
	return s.mutate(ctx, userID, func(u *models.User) {
		u.EmailsSent += sent
	})
}

// mutate applies fn to the user document inside a transaction
func (s *PostgresUserStore) mutate(ctx context.Context, userID string, fn func(*models.User)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var data []byte
	err = tx.QueryRowContext(ctx, `SELECT data FROM users WHERE user_id = $1 FOR UPDATE`, userID).Scan(&data)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read user for update: %w", err)
	}

	user := &models.User{}
	if err := json.Unmarshal(data, user); err != nil {
		return fmt.Errorf("failed to unmarshal user: %w", err)
	}

	fn(user)

	updated, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE users SET data = $1 WHERE user_id = $2`, updated, userID); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
