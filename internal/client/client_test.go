package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/fleveque/course-service/internal/artifact"
	"github.com/fleveque/course-service/internal/config"
	"github.com/fleveque/course-service/internal/model"
	"github.com/fleveque/course-service/internal/search"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(config.ClientConfig{ServerURL: srv.URL + "/", APIKey: "user-key"}, zap.NewNop())
}

// writeSSE writes events the way gin's SSEvent does.
func writeSSE(w http.ResponseWriter, events ...model.StreamEvent) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, ev := range events {
		payload, _ := model.EncodeEvent(ev)
		fmt.Fprintf(w, "event:message\ndata:%s\n\n", payload)
	}
}

func TestCreate_DecodesStreamInOrder(t *testing.T) {
	var gotKey, gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		gotPath = r.URL.Path
		writeSSE(w,
			model.KindSet{Kind: model.KindTechnicalCourse},
			model.DocumentIDSet{ID: "doc-1"},
			model.TitleSet{Title: "Go"},
			model.Clear{},
			model.CourseTypeChanged{CourseType: model.CourseOutline},
			model.TextDelta{Text: "# Go\n\n"},
			model.TextDelta{Text: "line one\nline two"},
			model.Finish{},
		)
	})

	store := artifact.NewStore(artifact.NewState())
	err := c.Create(context.Background(), "Go Outline", func(ev model.StreamEvent) error {
		store.Apply(ev)
		return nil
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if gotKey != "user-key" || gotPath != "/api/v1/documents" {
		t.Errorf("unexpected request: key=%q path=%q", gotKey, gotPath)
	}
	state := store.Snapshot()
	if state.Document.ID != "doc-1" || state.Document.Content != "# Go\n\nline one\nline two" {
		t.Errorf("unexpected state: %+v", state.Document)
	}
	if state.Document.Status != model.StatusIdle {
		t.Errorf("expected idle after finish, got %s", state.Document.Status)
	}
}

func TestStream_ErrorEventFailsTheCall(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w, model.Clear{}, model.TextDelta{Text: "partial"}, model.Failure{Message: "upstream closed"})
	})

	var count int
	err := c.Update(context.Background(), "doc-1", "improve", func(model.StreamEvent) error {
		count++
		return nil
	})
	if !errors.Is(err, ErrGenerationFailed) || !strings.Contains(err.Error(), "upstream closed") {
		t.Errorf("expected ErrGenerationFailed with message, got %v", err)
	}
	if count != 3 {
		t.Errorf("expected every event delivered, got %d", count)
	}
}

func TestStream_SkipsUnknownEventTypes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": keep-alive\n\n")
		fmt.Fprint(w, "data: {\"type\":\"reasoning\",\"content\":\"x\"}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"finish\",\"content\":\"\"}")
	})

	var types []model.EventType
	err := c.Suggest(context.Background(), "doc-1", func(ev model.StreamEvent) error {
		types = append(types, ev.Type())
		return nil
	})
	if err != nil {
		t.Fatalf("suggest failed: %v", err)
	}
	if len(types) != 1 || types[0] != model.EventFinish {
		t.Errorf("expected only finish, got %v", types)
	}
}

func TestStream_ConflictIsAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		fmt.Fprint(w, `{"error":"a generation is already in progress for this document"}`)
	})

	err := c.Action(context.Background(), "doc-1", "improve", func(model.StreamEvent) error { return nil })
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 APIError, got %v", err)
	}
	if !strings.Contains(apiErr.Message, "already in progress") {
		t.Errorf("unexpected message %q", apiErr.Message)
	}
}

func TestReadEvents_MultiLineData(t *testing.T) {
	input := "data: first\r\ndata: second\r\n\r\nevent: x\ndata:third\n\n"
	var got []string
	if err := readEvents(strings.NewReader(input), func(d string) error {
		got = append(got, d)
		return nil
	}); err != nil {
		t.Fatalf("reading events: %v", err)
	}
	if len(got) != 2 || got[0] != "first\nsecond" || got[1] != "third" {
		t.Errorf("unexpected events: %q", got)
	}
}

func TestDownload_UsesServerFilename(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="Go Concurrency.md"`)
		fmt.Fprint(w, "# Go Concurrency")
	})

	name, data, err := c.Download(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}
	if name != "Go Concurrency.md" || string(data) != "# Go Concurrency" {
		t.Errorf("unexpected download %q %q", name, data)
	}
}

func TestVersionDownload_Path(t *testing.T) {
	var path string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Disposition", `attachment; filename="Go Basics.md"`)
		fmt.Fprint(w, "# Go Basics")
	})

	name, _, err := c.VersionDownload(context.Background(), "doc-1", 2)
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}
	if path != "/api/v1/documents/doc-1/versions/2/download" || name != "Go Basics.md" {
		t.Errorf("unexpected path %q or name %q", path, name)
	}
}

func TestDelete(t *testing.T) {
	var method string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		w.WriteHeader(http.StatusNoContent)
	})
	if err := c.Delete(context.Background(), "doc-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if method != http.MethodDelete {
		t.Errorf("expected DELETE, got %s", method)
	}

	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"document not found"}`)
	})
	var apiErr *APIError
	if err := c.Delete(context.Background(), "missing"); !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 APIError, got %v", err)
	}
}

func TestSearch_BadGatewayMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, `{"error":"Failed to perform search","message":"search unavailable: status 429"}`)
	})

	_, err := c.Search(context.Background(), search.ToolArgs{Query: "kubernetes"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "Failed to perform search: search unavailable: status 429" {
		t.Errorf("unexpected error %v", err)
	}
}
