package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/fleveque/course-service/internal/artifact"
	"github.com/fleveque/course-service/internal/model"
	"github.com/fleveque/course-service/internal/storage"
)

// Stats summarizes stored documents and model usage.
type Stats struct {
	Documents      int64            `json:"documents"`
	Versions       int64            `json:"versions"`
	Runs           int64            `json:"generation_runs"`
	FailedRuns     int64            `json:"failed_runs"`
	RunsByProvider map[string]int64 `json:"runs_by_provider"`
}

// Get returns the current view of a document, including any content still
// streaming.
func (s *CourseService) Get(ctx context.Context, id string) (*artifact.View, error) {
	store, err := s.storeFor(ctx, id)
	if err != nil {
		return nil, err
	}
	return artifact.NewView(store.Snapshot()), nil
}

// Content returns the document's current content.
func (s *CourseService) Content(ctx context.Context, id string) (string, error) {
	store, err := s.storeFor(ctx, id)
	if err != nil {
		return "", err
	}
	return store.Snapshot().Document.Content, nil
}

// ToggleSearchPanel flips the search results panel and returns the metadata.
func (s *CourseService) ToggleSearchPanel(ctx context.Context, id string) (*artifact.Metadata, error) {
	store, err := s.storeFor(ctx, id)
	if err != nil {
		return nil, err
	}
	state := store.ToggleSearchVisible()
	return &state.Metadata, nil
}

// List returns the most recently updated documents.
func (s *CourseService) List(ctx context.Context, limit int) ([]model.Document, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.docRepo.List(ctx, limit)
}

// Versions lists the saved versions of a document, oldest first.
func (s *CourseService) Versions(ctx context.Context, id string) ([]model.Version, error) {
	if _, err := s.docRepo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.docRepo.ListVersions(ctx, id)
}

// Version returns one saved version.
func (s *CourseService) Version(ctx context.Context, id string, version int) (*model.Version, error) {
	return s.docRepo.GetVersion(ctx, id, version)
}

// VersionFile returns the file exported when a version was saved, with its
// name. The title can change between versions, so the stored name is the one
// the file was written under. Versions saved without an export store, or
// whose file has been removed from disk, are served from the database under
// the name the file would have had.
func (s *CourseService) VersionFile(ctx context.Context, id string, version int) (string, []byte, error) {
	v, err := s.docRepo.GetVersion(ctx, id, version)
	if err != nil {
		return "", nil, err
	}

	if s.exports != nil {
		files, err := s.exports.List(id, version)
		if err != nil {
			return "", nil, err
		}
		if len(files) > 0 {
			data, err := s.exports.Read(id, version, files[0])
			switch {
			case err == nil:
				return files[0], data, nil
			case !errors.Is(err, storage.ErrNotFound):
				return "", nil, err
			}
		}
		s.logger.Debug("no export on disk, serving stored content",
			zap.String("document_id", id),
			zap.Int("version", version),
		)
	}
	return artifact.DownloadFilename(v.Content), []byte(v.Content), nil
}

// Delete removes a document with its versions, suggestions and exported
// files. It takes the generation lock, so a document that is still being
// generated cannot be deleted from under the stream.
func (s *CourseService) Delete(ctx context.Context, id string) error {
	return s.withLock(ctx, id, func(ctx context.Context) error {
		if err := s.docRepo.Delete(ctx, id); err != nil {
			return err
		}
		s.stores.Delete(id)

		if s.exports != nil {
			if err := s.exports.DeleteDocument(id); err != nil {
				s.logger.Warn("removing exports", zap.String("document_id", id), zap.Error(err))
			}
		}
		s.logger.Info("document deleted", zap.String("document_id", id))
		return nil
	})
}

// Stats gathers the admin counters.
func (s *CourseService) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	var err error
	if st.Documents, err = s.docRepo.Count(ctx); err != nil {
		return nil, fmt.Errorf("counting documents: %w", err)
	}
	if st.Versions, err = s.docRepo.CountVersions(ctx); err != nil {
		return nil, fmt.Errorf("counting versions: %w", err)
	}
	if st.Runs, err = s.runRepo.Count(ctx); err != nil {
		return nil, fmt.Errorf("counting runs: %w", err)
	}
	if st.FailedRuns, err = s.runRepo.CountFailed(ctx); err != nil {
		return nil, fmt.Errorf("counting failed runs: %w", err)
	}
	if st.RunsByProvider, err = s.runRepo.CountByProvider(ctx); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *CourseService) putStore(id string, store *artifact.Store) {
	s.stores.Set(id, store, cache.DefaultExpiration)
}

// storeFor returns the live state of a document, rebuilding it from the
// latest saved version when it is not in memory.
func (s *CourseService) storeFor(ctx context.Context, id string) (*artifact.Store, error) {
	s.storesMu.Lock()
	defer s.storesMu.Unlock()

	if cached, ok := s.stores.Get(id); ok {
		store := cached.(*artifact.Store)
		s.putStore(id, store) // refresh expiry
		return store, nil
	}

	doc, err := s.docRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	state := artifact.NewState()
	state.Document.ID = doc.ID
	state.Document.Title = doc.Title
	state.Document.Kind = doc.Kind
	state.Metadata.CourseType = doc.CourseType

	latest, err := s.docRepo.LatestVersion(ctx, id)
	switch {
	case err == nil:
		state.Document.Content = latest.Content
		// A saved document has already been shown once.
		state.Document.Visible = latest.Content != ""
	case !errors.Is(err, storage.ErrNotFound):
		return nil, err
	}

	suggestions, err := s.suggestRepo.ListByDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	state.Metadata.Suggestions = suggestions

	store := artifact.NewStore(state)
	s.putStore(id, store)
	return store, nil
}
