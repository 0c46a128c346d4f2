// Package model defines the core data types for the course service.
// Struct tags (`json:"..."` and `db:"..."`) tell encoding/json and sqlx how
// to map fields; the same struct serves the API and the database.
package model

import "time"

// KindTechnicalCourse is the only artifact kind this service produces.
const KindTechnicalCourse = "technical-course"

// CourseType classifies a document as a condensed outline or a complete course.
// Go has no enums, so these are typed string constants.
type CourseType string

const (
	CourseOutline CourseType = "outline"
	CourseFull    CourseType = "full"
)

// ValidCourseType reports whether s names a known course type.
func ValidCourseType(s string) bool {
	return s == string(CourseOutline) || s == string(CourseFull)
}

// DocumentStatus is the streaming state of a document's content.
type DocumentStatus string

const (
	StatusStreaming DocumentStatus = "streaming"
	StatusIdle      DocumentStatus = "idle"
)

// Document is the persisted artifact row. Content lives in versions.
type Document struct {
	ID         string     `db:"id" json:"id"`
	Title      string     `db:"title" json:"title"`
	Kind       string     `db:"kind" json:"kind"`
	CourseType CourseType `db:"course_type" json:"course_type"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// Version is one saved generation result. Versions are numbered from 1 per document.
type Version struct {
	ID         int64      `db:"id" json:"id"`
	DocumentID string     `db:"document_id" json:"document_id"`
	Version    int        `db:"version" json:"version"`
	Content    string     `db:"content" json:"content"`
	CourseType CourseType `db:"course_type" json:"course_type"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// Suggestion is a proposed edit to a document. JSON names follow the
// chat client's suggestion schema so events can be consumed unchanged.
type Suggestion struct {
	ID            string    `db:"id" json:"id"`
	DocumentID    string    `db:"document_id" json:"documentId"`
	OriginalText  string    `db:"original_text" json:"originalText"`
	SuggestedText string    `db:"suggested_text" json:"suggestedText"`
	Description   string    `db:"description" json:"description"`
	IsResolved    bool      `db:"is_resolved" json:"isResolved"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// Operation names the kind of generation cycle.
type Operation string

const (
	OperationCreate  Operation = "create"
	OperationUpdate  Operation = "update"
	OperationSuggest Operation = "suggest"
)

// GenerationRun tracks each model invocation for cost monitoring.
type GenerationRun struct {
	ID           int64     `db:"id" json:"id"`
	DocumentID   string    `db:"document_id" json:"document_id"`
	Operation    Operation `db:"operation" json:"operation"`
	Provider     string    `db:"provider" json:"provider"`
	Model        string    `db:"model" json:"model"`
	Success      bool      `db:"success" json:"success"`
	DurationMs   *int64    `db:"duration_ms" json:"duration_ms,omitempty"`
	ErrorMessage *string   `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
