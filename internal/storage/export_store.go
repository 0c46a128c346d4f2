package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExportStore writes finished course files to disk, one directory per
// document: {baseDir}/{documentID}/v{version}/{filename}
type ExportStore struct {
	baseDir string
}

// NewExportStore creates the store, ensuring the base directory exists.
func NewExportStore(baseDir string) (*ExportStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}
	return &ExportStore{baseDir: baseDir}, nil
}

// Path returns where a file of a document version is stored.
func (s *ExportStore) Path(documentID string, version int, filename string) string {
	return filepath.Join(s.baseDir, filepath.Base(documentID), fmt.Sprintf("v%d", version), filepath.Base(filename))
}

// Write saves data and returns the file path.
func (s *ExportStore) Write(documentID string, version int, filename string, data []byte) (string, error) {
	path := s.Path(documentID, version, filename)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating version directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing export file: %w", err)
	}
	return path, nil
}

// Read returns a previously written file.
func (s *ExportStore) Read(documentID string, version int, filename string) ([]byte, error) {
	data, err := os.ReadFile(s.Path(documentID, version, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("export %s/v%d/%s: %w", documentID, version, filename, ErrNotFound)
		}
		return nil, fmt.Errorf("reading export file: %w", err)
	}
	return data, nil
}

// List returns the files exported for a document version.
func (s *ExportStore) List(documentID string, version int) ([]string, error) {
	dir := filepath.Dir(s.Path(documentID, version, "x"))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("listing exports: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			files = append(files, e.Name())
		}
	}
	return files, nil
}

// DeleteDocument removes every export of a document.
func (s *ExportStore) DeleteDocument(documentID string) error {
	return os.RemoveAll(filepath.Join(s.baseDir, filepath.Base(documentID)))
}
