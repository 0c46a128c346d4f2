package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/fleveque/course-service/internal/model"
)

// SuggestionRepository persists suggestions in arrival order. Identical
// suggestions are stored as separate rows.
type SuggestionRepository interface {
	Create(ctx context.Context, s *model.Suggestion) error
	ListByDocument(ctx context.Context, documentID string) ([]model.Suggestion, error)
}

type sqliteSuggestionRepository struct {
	db *sqlx.DB
}

func NewSuggestionRepository(db *sqlx.DB) SuggestionRepository {
	return &sqliteSuggestionRepository{db: db}
}

func (r *sqliteSuggestionRepository) Create(ctx context.Context, s *model.Suggestion) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO suggestions (id, document_id, original_text, suggested_text, description, is_resolved, created_at)
		VALUES (:id, :document_id, :original_text, :suggested_text, :description, :is_resolved, :created_at)
	`, s)
	if err != nil {
		return fmt.Errorf("creating suggestion: %w", err)
	}
	return nil
}

func (r *sqliteSuggestionRepository) ListByDocument(ctx context.Context, documentID string) ([]model.Suggestion, error) {
	suggestions := []model.Suggestion{}
	// rowid keeps insertion order for rows created in the same instant
	err := r.db.SelectContext(ctx, &suggestions,
		"SELECT * FROM suggestions WHERE document_id = ? ORDER BY created_at ASC, rowid ASC", documentID)
	if err != nil {
		return nil, fmt.Errorf("listing suggestions of %s: %w", documentID, err)
	}
	return suggestions, nil
}
