package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/basel-ax/news2toon/internal/domain"
)

// PromptRepository defines the interface for prompt template access
type PromptRepository interface {
	PromptByName(ctx context.Context, name string) (*domain.PromptTemplate, error)
}

// PostgresPromptRepository implements PromptRepository for PostgreSQL
type PostgresPromptRepository struct {
	db *sql.DB
}

// NewPostgresPromptRepository creates a new PostgreSQL prompt repository
func NewPostgresPromptRepository(db *sql.DB) *PostgresPromptRepository {
	return &PostgresPromptRepository{db: db}
}

// PromptByName retrieves the newest prompt template with the given name
func (r *PostgresPromptRepository) PromptByName(ctx context.Context, name string) (*domain.PromptTemplate, error) {
	query := `
		SELECT id, name, content, created_at
		FROM prompts
		WHERE name = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	var p domain.PromptTemplate
	err := r.db.QueryRowContext(ctx, query, name).Scan(&p.ID, &p.Name, &p.Content, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("prompt %q: %w", name, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prompt: %w", err)
	}

	return &p, nil
}
