package store

import (
	"context"
	"database/sql"
	"fmt"

	"outreachai/internal/models"
)

// PostgresSuppressionStore stores unsubscribed addresses as append-only rows
type PostgresSuppressionStore struct {
	db *sql.DB
}

// NewPostgresSuppressionStore creates a suppression store over the given database
func NewPostgresSuppressionStore(db *sql.DB) *PostgresSuppressionStore {
	return &PostgresSuppressionStore{db: db}
}

// Add inserts a suppression entry. Duplicate addresses are allowed.
func (s *PostgresSuppressionStore) Add(ctx context.Context, entry *models.UnsubscribedEmail) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid suppression entry: %w", err)
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO unsubscribed_emails (email, source, unsubscribed_at) VALUES ($1, $2, $3)`,
		entry.Email,
		entry.Source,
		entry.UnsubscribedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add suppression entry: %w", err)
	}
	return nil
}

// IsSuppressed reports whether the address has ever unsubscribed
func (s *PostgresSuppressionStore) IsSuppressed(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(
		ctx,
		`SELECT EXISTS (SELECT 1 FROM unsubscribed_emails WHERE email = $1)`,
		email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check suppression list: %w", err)
	}
	return exists, nil
}
