package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/basel-ax/news2toon/internal/domain"
)

// GenerationRepository defines the interface for generation data access
type GenerationRepository interface {
	SaveGeneration(ctx context.Context, gen *domain.Generation) error
	GenerationByID(ctx context.Context, id int64) (*domain.Generation, error)
}

// PostgresGenerationRepository implements GenerationRepository for PostgreSQL
type PostgresGenerationRepository struct {
	db *sql.DB
}

// NewPostgresGenerationRepository creates a new PostgreSQL generation repository
func NewPostgresGenerationRepository(db *sql.DB) *PostgresGenerationRepository {
	return &PostgresGenerationRepository{db: db}
}

// SaveGeneration inserts gen and fills in its ID and CreatedAt
func (r *PostgresGenerationRepository) SaveGeneration(ctx context.Context, gen *domain.Generation) error {
	query := `
		INSERT INTO generations (user_id, input_text, story_prompt, image_url, title, actual_title, is_daily)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		gen.UserID,
		gen.InputText,
		gen.StoryPrompt,
		gen.ImageURL,
		gen.Title,
		gen.ActualTitle,
		gen.IsDaily,
	).Scan(&gen.ID, &gen.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save generation: %w", err)
	}
	return nil
}

// GenerationByID retrieves a single generation
func (r *PostgresGenerationRepository) GenerationByID(ctx context.Context, id int64) (*domain.Generation, error) {
	query := `
		SELECT id, user_id, input_text, story_prompt, image_url, title, actual_title, is_daily, created_at
		FROM generations
		WHERE id = $1
	`

	var gen domain.Generation
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&gen.ID,
		&gen.UserID,
		&gen.InputText,
		&gen.StoryPrompt,
		&gen.ImageURL,
		&gen.Title,
		&gen.ActualTitle,
		&gen.IsDaily,
		&gen.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("generation %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get generation: %w", err)
	}

	return &gen, nil
}
