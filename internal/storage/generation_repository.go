package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fleveque/course-service/internal/model"
)

// GenerationRunRepository tracks model invocations for cost monitoring.
type GenerationRunRepository interface {
	Create(ctx context.Context, run *model.GenerationRun) error
	Count(ctx context.Context) (int64, error)
	CountFailed(ctx context.Context) (int64, error)
	CountByProvider(ctx context.Context) (map[string]int64, error)
}

type sqliteGenerationRunRepository struct {
	db *sqlx.DB
}

func NewGenerationRunRepository(db *sqlx.DB) GenerationRunRepository {
	return &sqliteGenerationRunRepository{db: db}
}

func (r *sqliteGenerationRunRepository) Create(ctx context.Context, run *model.GenerationRun) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	result, err := r.db.NamedExecContext(ctx, `
		INSERT INTO generation_runs (document_id, operation, provider, model, success, duration_ms, error_message, created_at)
		VALUES (:document_id, :operation, :provider, :model, :success, :duration_ms, :error_message, :created_at)
	`, run)
	if err != nil {
		return fmt.Errorf("creating generation run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	run.ID = id
	return nil
}

func (r *sqliteGenerationRunRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM generation_runs")
	return count, err
}

func (r *sqliteGenerationRunRepository) CountFailed(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM generation_runs WHERE success = 0")
	return count, err
}

func (r *sqliteGenerationRunRepository) CountByProvider(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Provider string `db:"provider"`
		N        int64  `db:"n"`
	}
	if err := r.db.SelectContext(ctx, &rows,
		"SELECT provider, COUNT(*) AS n FROM generation_runs GROUP BY provider"); err != nil {
		return nil, fmt.Errorf("counting runs by provider: %w", err)
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Provider] = row.N
	}
	return counts, nil
}
