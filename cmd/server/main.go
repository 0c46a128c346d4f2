// Package main is the entry point for the course-service HTTP server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/course-service/internal/config"
	"github.com/fleveque/course-service/internal/course"
	"github.com/fleveque/course-service/internal/handler"
	"github.com/fleveque/course-service/internal/llm"
	"github.com/fleveque/course-service/internal/lock"
	"github.com/fleveque/course-service/internal/logging"
	"github.com/fleveque/course-service/internal/search"
	"github.com/fleveque/course-service/internal/server"
	"github.com/fleveque/course-service/internal/service"
	"github.com/fleveque/course-service/internal/storage"
)

func main() {
	// run() keeps deferred cleanup working; os.Exit would skip it.
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("COURSE_CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	// Sync commonly fails on stdout/stderr; nothing to do about it.
	defer func() { _ = logger.Sync() }()

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0755); err != nil {
		return fmt.Errorf("creating database directory: %w", err)
	}
	db, err := storage.NewDatabase(cfg.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	exports, err := storage.NewExportStore(cfg.Storage.ExportDir)
	if err != nil {
		return err
	}

	locker, closeLock, err := newLocker(cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer closeLock()

	clients := llm.NewClientsFromConfig(cfg.LLM, logger)
	if len(clients) == 0 {
		logger.Warn("no LLM provider configured; generation requests will fail")
	}
	router := llm.NewRouter(clients, cfg.LLM.RatePerMinute, logger)

	searcher := search.NewTavilyClient(cfg.Search, logger)
	// The direct search endpoint answers 503 without a key.
	var directSearch search.Searcher
	if cfg.Search.TavilyAPIKey == "" {
		logger.Warn("no Tavily API key; the search tool will report failures to the model")
	} else {
		directSearch = searcher
	}

	generator := course.NewGenerator(router, searcher, cfg.Generation.TargetAudience, logger)
	courseService := service.NewCourseService(
		generator,
		storage.NewDocumentRepository(db),
		storage.NewSuggestionRepository(db),
		storage.NewGenerationRunRepository(db),
		exports,
		locker,
		cfg.Generation.LockTTL,
		logger,
	)

	srv := server.New(cfg, server.Deps{
		CourseService: courseService,
		Searcher:      directSearch,
		Health: map[string]handler.Pinger{
			"database": db,
			"lock":     handler.PingFunc(locker.Ping),
		},
	}, logger)

	logger.Info("course service ready",
		zap.String("llm_provider", router.ProviderName()),
		zap.String("llm_model", router.ModelName()),
		zap.Int("llm_providers", len(clients)),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		if err != nil {
			return err
		}
	}

	// Open generation streams get a while to finish before they are cut.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return srv.Shutdown(ctx)
}

// newLocker uses Redis when an address is configured, so several replicas
// share the single-flight guarantee; otherwise an in-process lock.
func newLocker(cfg config.RedisConfig, logger *zap.Logger) (lock.Locker, func(), error) {
	if cfg.Addr == "" {
		logger.Info("using in-memory generation lock")
		return lock.NewMemoryLock(), func() {}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	redisLock, err := lock.NewRedisLockFromConfig(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("using redis generation lock", zap.String("addr", cfg.Addr))
	return redisLock, func() { _ = redisLock.Close() }, nil
}
