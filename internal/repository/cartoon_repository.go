package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/basel-ax/news2toon/internal/domain"
)

// CartoonRepository defines the interface for cartoon data access
type CartoonRepository interface {
	CreateCartoon(ctx context.Context, cartoon *domain.Cartoon) error
	ListCartoons(ctx context.Context, limit int) ([]domain.Cartoon, error)
	CartoonByID(ctx context.Context, id int64) (*domain.Cartoon, error)
	ListUnpersistedCartoons(ctx context.Context, storagePrefix string, maxAttempts, limit int) ([]domain.Cartoon, error)
	UpdateCartoonImageURL(ctx context.Context, id int64, imageURL string) error
	RecordPersistFailure(ctx context.Context, id int64) error
}

// PostgresCartoonRepository implements CartoonRepository for PostgreSQL
type PostgresCartoonRepository struct {
	db *sql.DB
}

// NewPostgresCartoonRepository creates a new PostgreSQL cartoon repository
func NewPostgresCartoonRepository(db *sql.DB) *PostgresCartoonRepository {
	return &PostgresCartoonRepository{db: db}
}

// CreateCartoon inserts cartoon and fills in its ID and CreatedAt
func (r *PostgresCartoonRepository) CreateCartoon(ctx context.Context, cartoon *domain.Cartoon) error {
	query := `
		INSERT INTO cartoons (title, actual_title, description, image_url)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		cartoon.Title,
		cartoon.ActualTitle,
		cartoon.Description,
		cartoon.ImageURL,
	).Scan(&cartoon.ID, &cartoon.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create cartoon: %w", err)
	}
	return nil
}

// ListCartoons returns the newest cartoons first
func (r *PostgresCartoonRepository) ListCartoons(ctx context.Context, limit int) ([]domain.Cartoon, error) {
	query := `
		SELECT id, title, actual_title, description, image_url, created_at
		FROM cartoons
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list cartoons: %w", err)
	}
	defer rows.Close()

	return scanCartoons(rows)
}

// CartoonByID retrieves a single cartoon
func (r *PostgresCartoonRepository) CartoonByID(ctx context.Context, id int64) (*domain.Cartoon, error) {
	query := `
		SELECT id, title, actual_title, description, image_url, created_at
		FROM cartoons
		WHERE id = $1
	`

	var c domain.Cartoon
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID,
		&c.Title,
		&c.ActualTitle,
		&c.Description,
		&c.ImageURL,
		&c.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cartoon %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cartoon: %w", err)
	}

	return &c, nil
}

// ListUnpersistedCartoons returns cartoons whose image is not yet under storagePrefix.
// Rows that already failed maxAttempts times are left out, and rows that never
// failed come first, oldest first.
func (r *PostgresCartoonRepository) ListUnpersistedCartoons(ctx context.Context, storagePrefix string, maxAttempts, limit int) ([]domain.Cartoon, error) {
	query := `
		SELECT id, title, actual_title, description, image_url, created_at
		FROM cartoons
		WHERE image_url <> ''
		AND left(image_url, length($1)) <> $1
		AND persist_attempts < $2
		ORDER BY persist_attempts ASC, created_at ASC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, storagePrefix, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unpersisted cartoons: %w", err)
	}
	defer rows.Close()

	return scanCartoons(rows)
}

// UpdateCartoonImageURL points a cartoon at a new image
func (r *PostgresCartoonRepository) UpdateCartoonImageURL(ctx context.Context, id int64, imageURL string) error {
	query := `
		UPDATE cartoons
		SET image_url = $1
		WHERE id = $2
	`

	res, err := r.db.ExecContext(ctx, query, imageURL, id)
	if err != nil {
		return fmt.Errorf("failed to update cartoon image: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update cartoon image: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("cartoon %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func scanCartoons(rows *sql.Rows) ([]domain.Cartoon, error) {
	cartoons := []domain.Cartoon{}
	for rows.Next() {
		var c domain.Cartoon
		if err := rows.Scan(&c.ID, &c.Title, &c.ActualTitle, &c.Description, &c.ImageURL, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cartoon: %w", err)
		}
		cartoons = append(cartoons, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cartoons: %w", err)
	}
	return cartoons, nil
}

// RecordPersistFailure counts a failed attempt to move a cartoon image into storage
func (r *PostgresCartoonRepository) RecordPersistFailure(ctx context.Context, id int64) error {
	query := `
		UPDATE cartoons
		SET persist_attempts = persist_attempts + 1,
			persist_failed_at = NOW()
		WHERE id = $1
	`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to record persist failure: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to record persist failure: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("cartoon %d: %w", id, domain.ErrNotFound)
	}

	return nil
}
