// Package service contains the core business logic of the course pipeline.
// CourseService runs one generation cycle per document:
//
//	lock → driver → reducer → persistence
//
// Events from the driver are folded into the document's live state and
// forwarded to the caller in emission order. Only a completed cycle is
// persisted; a failed or cancelled one leaves the last saved version intact.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/fleveque/course-service/internal/artifact"
	"github.com/fleveque/course-service/internal/course"
	"github.com/fleveque/course-service/internal/lock"
	"github.com/fleveque/course-service/internal/model"
	"github.com/fleveque/course-service/internal/storage"
)

var (
	// ErrGenerationInFlight is returned when a document is already being generated.
	ErrGenerationInFlight = errors.New("a generation is already in progress for this document")
	// ErrEmptyDocument is returned when suggestions are requested for a document with no content.
	ErrEmptyDocument = errors.New("document has no content")
	// ErrUnknownAction is returned for a toolbar action outside the known set.
	ErrUnknownAction = errors.New("unknown action")
)

// Live document states are dropped after this long without access and
// rebuilt from the database on the next read.
const storeTTL = time.Hour

// Emit receives each event after it has been applied to the live state.
type Emit = course.Emit

// CourseService is the main entry point for document generation.
type CourseService struct {
	generator   *course.Generator
	docRepo     storage.DocumentRepository
	suggestRepo storage.SuggestionRepository
	runRepo     storage.GenerationRunRepository
	exports     *storage.ExportStore // nil disables file exports
	locker      lock.Locker
	lockTTL     time.Duration
	logger      *zap.Logger

	storesMu sync.Mutex
	stores   *cache.Cache
}

// NewCourseService wires the generation pipeline. exports may be nil.
func NewCourseService(
	generator *course.Generator,
	docRepo storage.DocumentRepository,
	suggestRepo storage.SuggestionRepository,
	runRepo storage.GenerationRunRepository,
	exports *storage.ExportStore,
	locker lock.Locker,
	lockTTL time.Duration,
	logger *zap.Logger,
) *CourseService {
	if lockTTL <= 0 {
		lockTTL = 15 * time.Minute
	}
	return &CourseService{
		generator:   generator,
		docRepo:     docRepo,
		suggestRepo: suggestRepo,
		runRepo:     runRepo,
		exports:     exports,
		locker:      locker,
		lockTTL:     lockTTL,
		logger:      logger,
		stores:      cache.New(storeTTL, 10*time.Minute),
	}
}

// Create starts a new document from a title and streams its generation.
// The document ID is the first thing the caller learns through the id event.
func (s *CourseService) Create(ctx context.Context, title string, emit Emit) (string, error) {
	id := uuid.NewString()
	store := artifact.NewStore(artifact.NewState())
	s.putStore(id, store)

	err := s.withLock(ctx, id, func(ctx context.Context) error {
		forward := s.forwarder(store, emit)
		intro := []model.StreamEvent{
			model.KindSet{Kind: model.KindTechnicalCourse},
			model.DocumentIDSet{ID: id},
			model.TitleSet{Title: title},
			model.Clear{},
		}
		for _, ev := range intro {
			if err := forward(ev); err != nil {
				return err
			}
		}

		started := time.Now()
		result, err := s.generator.Create(ctx, course.CreateRequest{Title: title}, forward)
		s.recordRun(ctx, id, model.OperationCreate, result, started, err)
		if err != nil {
			return s.fail(id, forward, err)
		}

		persist := context.WithoutCancel(ctx)
		doc := &model.Document{ID: id, Title: title, Kind: model.KindTechnicalCourse, CourseType: result.CourseType}
		if err := s.docRepo.Create(persist, doc); err != nil {
			return s.fail(id, forward, err)
		}
		if err := s.saveVersion(persist, id, result.Draft, result.CourseType); err != nil {
			return s.fail(id, forward, err)
		}
		return forward(model.Finish{})
	})
	return id, err
}

// Update rewrites a document according to an instruction.
func (s *CourseService) Update(ctx context.Context, id, instruction string, emit Emit) error {
	store, err := s.storeFor(ctx, id)
	if err != nil {
		return err
	}

	return s.withLock(ctx, id, func(ctx context.Context) error {
		before := store.Snapshot()
		forward := s.forwarder(store, emit)
		if err := forward(model.Clear{}); err != nil {
			return err
		}

		started := time.Now()
		result, err := s.generator.Update(ctx, course.UpdateRequest{
			Content:     before.Document.Content,
			Instruction: instruction,
		}, forward)
		s.recordRun(ctx, id, model.OperationUpdate, result, started, err)
		if err != nil {
			return s.fail(id, forward, err)
		}

		courseType := before.Metadata.CourseType
		if result.CourseType != "" {
			courseType = result.CourseType
		}

		persist := context.WithoutCancel(ctx)
		if err := s.docRepo.UpdateMeta(persist, id, before.Document.Title, courseType); err != nil {
			return s.fail(id, forward, err)
		}
		if err := s.saveVersion(persist, id, result.Draft, courseType); err != nil {
			return s.fail(id, forward, err)
		}
		return forward(model.Finish{})
	})
}

// Suggest streams improvement suggestions for the current content.
func (s *CourseService) Suggest(ctx context.Context, id string, emit Emit) error {
	store, err := s.storeFor(ctx, id)
	if err != nil {
		return err
	}
	return s.withLock(ctx, id, func(ctx context.Context) error {
		content := store.Snapshot().Document.Content
		if content == "" {
			return ErrEmptyDocument
		}
		forward := s.forwarder(store, emit)

		started := time.Now()
		result, err := s.generator.Suggest(ctx, course.SuggestRequest{DocumentID: id, Content: content}, forward)
		s.recordRun(ctx, id, model.OperationSuggest, result, started, err)
		if err != nil {
			return s.fail(id, forward, err)
		}

		persist := context.WithoutCancel(ctx)
		for i := range result.Suggestions {
			if err := s.suggestRepo.Create(persist, &result.Suggestions[i]); err != nil {
				return s.fail(id, forward, err)
			}
		}
		return forward(model.Finish{})
	})
}

// RunAction executes a toolbar shortcut. The returned ID is the document
// the action streamed into; "outline" starts a new one.
func (s *CourseService) RunAction(ctx context.Context, id, action string, emit Emit) (string, error) {
	store, err := s.storeFor(ctx, id)
	if err != nil {
		return "", err
	}

	state := store.Snapshot()
	title := artifact.ExtractTitle(state.Document.Content)
	if title == "" {
		title = course.ExtractTopic(state.Document.Title)
	}

	act, ok := course.ResolveAction(action, title)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	switch act.Operation {
	case model.OperationCreate:
		return s.Create(ctx, act.Text, emit)
	case model.OperationUpdate:
		return id, s.Update(ctx, id, act.Text, emit)
	default:
		return id, s.Suggest(ctx, id, emit)
	}
}

// withLock runs fn while holding the document's generation lock.
//
// The lock has a TTL so a crashed process cannot hold a document forever.
// A long full-course generation can outlive that TTL, though, so a
// background goroutine extends it every third of the TTL until fn returns.
// Missing one extension (a Redis hiccup) still leaves two more chances
// before the lock would expire under a running stream.
//
// Release uses a context detached from the request: a client that
// disconnects cancels ctx, and the lock must still be given back.
func (s *CourseService) withLock(ctx context.Context, id string, fn func(context.Context) error) error {
	ok, err := s.locker.Acquire(ctx, id, s.lockTTL)
	if err != nil {
		return fmt.Errorf("acquiring generation lock: %w", err)
	}
	if !ok {
		return ErrGenerationInFlight
	}

	done := make(chan struct{})
	go s.keepAlive(ctx, id, done)

	defer func() {
		close(done)
		if err := s.locker.Release(context.WithoutCancel(ctx), id); err != nil {
			s.logger.Warn("releasing generation lock", zap.String("document_id", id), zap.Error(err))
		}
	}()

	return fn(ctx)
}

func (s *CourseService) keepAlive(ctx context.Context, id string, done <-chan struct{}) {
	ticker := time.NewTicker(max(s.lockTTL/3, time.Second))
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.locker.Extend(ctx, id, s.lockTTL); err != nil {
				s.logger.Warn("extending generation lock", zap.String("document_id", id), zap.Error(err))
			}
		}
	}
}

// forwarder applies each event to the live state before handing it on.
func (s *CourseService) forwarder(store *artifact.Store, emit Emit) Emit {
	return func(ev model.StreamEvent) error {
		store.Apply(ev)
		return emit(ev)
	}
}

// fail ends a cycle with an error event. The live state is dropped so the
// next read starts again from the last saved version.
func (s *CourseService) fail(id string, forward Emit, err error) error {
	s.logger.Error("generation failed", zap.String("document_id", id), zap.Error(err))
	_ = forward(model.Failure{Message: err.Error()})
	s.stores.Delete(id)
	return err
}

func (s *CourseService) saveVersion(ctx context.Context, id, content string, courseType model.CourseType) error {
	v := &model.Version{DocumentID: id, Content: content, CourseType: courseType}
	if err := s.docRepo.AddVersion(ctx, v); err != nil {
		return err
	}

	if s.exports != nil {
		path, err := s.exports.Write(id, v.Version, artifact.DownloadFilename(content), []byte(content))
		if err != nil {
			// The version is saved; a missing file copy is not worth failing over.
			s.logger.Warn("exporting version", zap.String("document_id", id), zap.Error(err))
		} else {
			s.logger.Debug("version exported", zap.String("path", path))
		}
	}

	s.logger.Info("version saved",
		zap.String("document_id", id),
		zap.Int("version", v.Version),
		zap.String("course_type", string(courseType)),
		zap.Int("chars", len(content)),
	)
	return nil
}

func (s *CourseService) recordRun(ctx context.Context, id string, op model.Operation, result *course.Result, started time.Time, genErr error) {
	provider, modelName := s.generator.ModelInfo()
	if result != nil && result.Usage != nil {
		provider, modelName = result.Usage.Provider, result.Usage.Model
	}

	durationMs := time.Since(started).Milliseconds()
	run := &model.GenerationRun{
		DocumentID: id,
		Operation:  op,
		Provider:   provider,
		Model:      modelName,
		Success:    genErr == nil,
		DurationMs: &durationMs,
	}
	if genErr != nil {
		msg := genErr.Error()
		run.ErrorMessage = &msg
	}

	if err := s.runRepo.Create(context.WithoutCancel(ctx), run); err != nil {
		s.logger.Warn("recording generation run", zap.Error(err))
	}
}
