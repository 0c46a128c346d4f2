package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/course-service/internal/config"
	"github.com/fleveque/course-service/internal/course"
	"github.com/fleveque/course-service/internal/handler"
	"github.com/fleveque/course-service/internal/llm"
	"github.com/fleveque/course-service/internal/lock"
	"github.com/fleveque/course-service/internal/model"
	"github.com/fleveque/course-service/internal/service"
	"github.com/fleveque/course-service/internal/storage"
)

const courseText = "# Kubernetes Networking\n\n## Day 1\n\nFull Course material."

type staticLLM struct{ text string }

func (s staticLLM) ProviderName() string { return "static" }
func (s staticLLM) ModelName() string    { return "static-1" }

func (s staticLLM) Stream(_ context.Context, _ llm.Request, fn llm.DeltaFunc) (*llm.Usage, error) {
	for _, part := range strings.SplitAfter(s.text, "\n") {
		if err := fn(llm.Delta{Type: llm.DeltaText, Text: part}); err != nil {
			return nil, err
		}
	}
	return &llm.Usage{Provider: "static", Model: "static-1"}, nil
}

func setupServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	db, err := storage.NewDatabase(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("creating test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		Server:    config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Auth:      config.AuthConfig{APIKeys: []string{"user-key"}, AdminKeys: []string{"admin-key"}},
		CORS:      config.CORSConfig{AllowedOrigins: []string{"*"}},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 100, Burst: 100},
		Log:       config.LogConfig{Level: "info"},
	}

	locker := lock.NewMemoryLock()
	svc := service.NewCourseService(
		course.NewGenerator(staticLLM{text: courseText}, nil, "Developers", zap.NewNop()),
		storage.NewDocumentRepository(db),
		storage.NewSuggestionRepository(db),
		storage.NewGenerationRunRepository(db),
		nil,
		locker,
		time.Minute,
		zap.NewNop(),
	)

	srv := New(cfg, Deps{
		CourseService: svc,
		Health: map[string]handler.Pinger{
			"database": db,
			"lock":     handler.PingFunc(locker.Ping),
		},
	}, zap.NewNop())
	gin.SetMode(gin.TestMode)
	return srv
}

func do(srv *Server, method, path, key, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

// sseEvents decodes every data line of an event-stream body.
func sseEvents(t *testing.T, body string) []model.StreamEvent {
	t.Helper()
	var events []model.StreamEvent
	for _, line := range strings.Split(body, "\n") {
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		ev, err := model.DecodeEvent([]byte(strings.TrimSpace(data)))
		if err != nil {
			t.Fatalf("decoding %q: %v", data, err)
		}
		events = append(events, ev)
	}
	return events
}

func TestHealthEndpoints(t *testing.T) {
	srv := setupServer(t)

	if w := do(srv, http.MethodGet, "/healthz", "", ""); w.Code != http.StatusOK {
		t.Errorf("healthz: expected 200, got %d", w.Code)
	}

	w := do(srv, http.MethodGet, "/readyz", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("readyz: expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestDocuments_RequireAPIKey(t *testing.T) {
	srv := setupServer(t)

	if w := do(srv, http.MethodGet, "/api/v1/documents", "", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
	if w := do(srv, http.MethodGet, "/api/v1/admin/stats", "user-key", ""); w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for admin route with user key, got %d", w.Code)
	}
}

func TestCreateStreamThenRead(t *testing.T) {
	srv := setupServer(t)

	w := do(srv, http.MethodPost, "/api/v1/documents", "user-key",
		`{"title":"Create a New Full Technical Course: Kubernetes Networking"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("expected event stream, got %q", ct)
	}

	events := sseEvents(t, w.Body.String())
	if len(events) < 6 {
		t.Fatalf("expected a full event sequence, got %d events", len(events))
	}
	id := events[1].(model.DocumentIDSet).ID
	if ct, ok := events[4].(model.CourseTypeChanged); !ok || ct.CourseType != model.CourseFull {
		t.Errorf("expected course-type=full before content, got %#v", events[4])
	}
	if _, ok := events[len(events)-1].(model.Finish); !ok {
		t.Errorf("expected finish last, got %T", events[len(events)-1])
	}

	w = do(srv, http.MethodGet, "/api/v1/documents/"+id, "user-key", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", w.Code)
	}
	var view struct {
		State struct {
			Document struct {
				Content string `json:"content"`
			} `json:"document"`
		} `json:"state"`
		CourseTypeLabel string `json:"course_type_label"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("decoding view: %v", err)
	}
	if view.State.Document.Content != courseText || view.CourseTypeLabel != "Full Course" {
		t.Errorf("unexpected view: %+v", view)
	}

	w = do(srv, http.MethodGet, "/api/v1/documents/"+id+"/download", "user-key", "")
	if got := w.Header().Get("Content-Disposition"); got != `attachment; filename="Kubernetes Networking.md"` {
		t.Errorf("unexpected content disposition %q", got)
	}
	if w.Body.String() != courseText {
		t.Error("expected download to return the content")
	}

	w = do(srv, http.MethodGet, "/api/v1/documents/"+id+"/print", "user-key", "")
	if !strings.Contains(w.Body.String(), "<h1>Kubernetes Networking</h1>") {
		t.Errorf("expected rendered heading in print page, got %s", w.Body.String())
	}

	w = do(srv, http.MethodGet, "/api/v1/documents/"+id+"/outline", "user-key", "")
	if !strings.Contains(w.Body.String(), `"Day 1"`) {
		t.Errorf("expected outline headings, got %s", w.Body.String())
	}

	w = do(srv, http.MethodGet, "/api/v1/documents/"+id+"/versions/1", "user-key", "")
	if w.Code != http.StatusOK {
		t.Errorf("version 1: expected 200, got %d", w.Code)
	}
	if w := do(srv, http.MethodGet, "/api/v1/documents/"+id+"/versions/abc", "user-key", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad version: expected 400, got %d", w.Code)
	}

	w = do(srv, http.MethodGet, "/api/v1/admin/stats", "admin-key", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"documents":1`) {
		t.Errorf("unexpected stats: %d %s", w.Code, w.Body.String())
	}
}

func TestVersionDownloadAndDelete(t *testing.T) {
	srv := setupServer(t)

	w := do(srv, http.MethodPost, "/api/v1/documents", "user-key", `{"title":"Kubernetes Networking"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("create: expected 200, got %d", w.Code)
	}
	id := sseEvents(t, w.Body.String())[1].(model.DocumentIDSet).ID

	w = do(srv, http.MethodGet, "/api/v1/documents/"+id+"/versions/1/download", "user-key", "")
	if w.Code != http.StatusOK {
		t.Fatalf("version download: expected 200, got %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename="Kubernetes Networking.md"` {
		t.Errorf("unexpected Content-Disposition %q", cd)
	}
	if w.Body.String() != courseText {
		t.Errorf("unexpected body %q", w.Body.String())
	}

	w = do(srv, http.MethodGet, "/api/v1/documents/"+id+"/versions/zero/download", "user-key", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad version: expected 400, got %d", w.Code)
	}

	w = do(srv, http.MethodDelete, "/api/v1/documents/"+id, "user-key", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", w.Code)
	}
	w = do(srv, http.MethodGet, "/api/v1/documents/"+id, "user-key", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete: expected 404, got %d", w.Code)
	}
	w = do(srv, http.MethodDelete, "/api/v1/documents/"+id, "user-key", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", w.Code)
	}
}

func TestCreate_MissingTitle(t *testing.T) {
	srv := setupServer(t)

	w := do(srv, http.MethodPost, "/api/v1/documents", "user-key", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestUnknownDocument(t *testing.T) {
	srv := setupServer(t)

	paths := []struct{ method, path, body string }{
		{http.MethodGet, "/api/v1/documents/missing", ""},
		{http.MethodPost, "/api/v1/documents/missing/update", `{"instruction":"x"}`},
		{http.MethodPost, "/api/v1/documents/missing/search-panel", ""},
		{http.MethodGet, "/api/v1/documents/missing/versions", ""},
	}
	for _, p := range paths {
		if w := do(srv, p.method, p.path, "user-key", p.body); w.Code != http.StatusNotFound {
			t.Errorf("%s %s: expected 404, got %d", p.method, p.path, w.Code)
		}
	}
}

func TestUnknownAction(t *testing.T) {
	srv := setupServer(t)
	w := do(srv, http.MethodPost, "/api/v1/documents", "user-key", `{"title":"Go Outline"}`)
	id := sseEvents(t, w.Body.String())[1].(model.DocumentIDSet).ID

	w = do(srv, http.MethodPost, "/api/v1/documents/"+id+"/actions/translate", "user-key", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestSearch_NotConfigured(t *testing.T) {
	srv := setupServer(t)

	w := do(srv, http.MethodPost, "/api/v1/search", "user-key", `{"query":"kubernetes cni"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without a search backend, got %d", w.Code)
	}
}
