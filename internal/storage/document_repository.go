package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fleveque/course-service/internal/model"
)

// ErrNotFound is returned when a document, version or suggestion doesn't exist.
// Callers check with errors.Is(err, ErrNotFound).
var ErrNotFound = errors.New("not found")

// DocumentRepository persists documents and their numbered versions.
type DocumentRepository interface {
	Create(ctx context.Context, doc *model.Document) error
	Get(ctx context.Context, id string) (*model.Document, error)
	UpdateMeta(ctx context.Context, id, title string, courseType model.CourseType) error
	// Delete removes the document with its versions and suggestions.
	// Generation runs are kept for the usage counters.
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit int) ([]model.Document, error)
	Count(ctx context.Context) (int64, error)

	// AddVersion stores content as the next version of the document and
	// fills in v.Version.
	AddVersion(ctx context.Context, v *model.Version) error
	LatestVersion(ctx context.Context, documentID string) (*model.Version, error)
	GetVersion(ctx context.Context, documentID string, version int) (*model.Version, error)
	ListVersions(ctx context.Context, documentID string) ([]model.Version, error)
	CountVersions(ctx context.Context) (int64, error)
}

type sqliteDocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository creates a SQLite-backed DocumentRepository.
func NewDocumentRepository(db *sqlx.DB) DocumentRepository {
	return &sqliteDocumentRepository{db: db}
}

func (r *sqliteDocumentRepository) Create(ctx context.Context, doc *model.Document) error {
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	if doc.Kind == "" {
		doc.Kind = model.KindTechnicalCourse
	}

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO documents (id, title, kind, course_type, created_at, updated_at)
		VALUES (:id, :title, :kind, :course_type, :created_at, :updated_at)
	`, doc)
	if err != nil {
		return fmt.Errorf("creating document: %w", err)
	}
	return nil
}

func (r *sqliteDocumentRepository) Get(ctx context.Context, id string) (*model.Document, error) {
	var doc model.Document
	err := r.db.GetContext(ctx, &doc, "SELECT * FROM documents WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting document %s: %w", id, err)
	}
	return &doc, nil
}

func (r *sqliteDocumentRepository) UpdateMeta(ctx context.Context, id, title string, courseType model.CourseType) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE documents SET title = ?, course_type = ?, updated_at = ? WHERE id = ?",
		title, courseType, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating document %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqliteDocumentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqliteDocumentRepository) List(ctx context.Context, limit int) ([]model.Document, error) {
	docs := []model.Document{}
	err := r.db.SelectContext(ctx, &docs, "SELECT * FROM documents ORDER BY updated_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	return docs, nil
}

func (r *sqliteDocumentRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM documents")
	return count, err
}

// AddVersion numbers versions inside a transaction so concurrent writers
// cannot pick the same number.
func (r *sqliteDocumentRepository) AddVersion(ctx context.Context, v *model.Version) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var next int
	if err := tx.GetContext(ctx, &next,
		"SELECT COALESCE(MAX(version), 0) + 1 FROM document_versions WHERE document_id = ?", v.DocumentID); err != nil {
		return fmt.Errorf("numbering version: %w", err)
	}
	v.Version = next
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}

	res, err := tx.NamedExecContext(ctx, `
		INSERT INTO document_versions (document_id, version, content, course_type, created_at)
		VALUES (:document_id, :version, :content, :course_type, :created_at)
	`, v)
	if err != nil {
		return fmt.Errorf("creating version: %w", err)
	}
	if v.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "UPDATE documents SET updated_at = ? WHERE id = ?", v.CreatedAt, v.DocumentID); err != nil {
		return fmt.Errorf("touching document: %w", err)
	}
	return tx.Commit()
}

func (r *sqliteDocumentRepository) LatestVersion(ctx context.Context, documentID string) (*model.Version, error) {
	var v model.Version
	err := r.db.GetContext(ctx, &v,
		"SELECT * FROM document_versions WHERE document_id = ? ORDER BY version DESC LIMIT 1", documentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting latest version of %s: %w", documentID, err)
	}
	return &v, nil
}

func (r *sqliteDocumentRepository) GetVersion(ctx context.Context, documentID string, version int) (*model.Version, error) {
	var v model.Version
	err := r.db.GetContext(ctx, &v,
		"SELECT * FROM document_versions WHERE document_id = ? AND version = ?", documentID, version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting version %d of %s: %w", version, documentID, err)
	}
	return &v, nil
}

func (r *sqliteDocumentRepository) ListVersions(ctx context.Context, documentID string) ([]model.Version, error) {
	versions := []model.Version{}
	err := r.db.SelectContext(ctx, &versions,
		"SELECT * FROM document_versions WHERE document_id = ? ORDER BY version ASC", documentID)
	if err != nil {
		return nil, fmt.Errorf("listing versions of %s: %w", documentID, err)
	}
	return versions, nil
}

func (r *sqliteDocumentRepository) CountVersions(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM document_versions")
	return count, err
}
