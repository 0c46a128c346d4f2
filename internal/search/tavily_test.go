package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/course-service/internal/config"
	"github.com/fleveque/course-service/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, ttl time.Duration) *TavilyClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewTavilyClient(config.SearchConfig{
		TavilyAPIKey: "tvly-test",
		BaseURL:      srv.URL,
		Timeout:      5 * time.Second,
		CacheTTL:     ttl,
	}, zap.NewNop())
}

func TestSearch_SendsDefaultsAndReturnsResults(t *testing.T) {
	var got tavilyRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/search" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tvly-test" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)

		_, _ = w.Write([]byte(`{
			"query": "kubernetes cni",
			"results": [
				{"title": "CNI spec", "url": "https://example.com/cni", "content": "The Container Network Interface", "score": 0.91},
				{"title": "Calico", "url": "https://example.com/calico", "content": "Calico networking", "score": 0.42}
			],
			"images": ["https://example.com/a.png", {"url": "https://example.com/b.png", "description": "diagram"}],
			"response_time": 1.2
		}`))
	}, 0)

	set, err := client.Search(context.Background(), "  kubernetes cni ", Options{Depth: "deep", MaxResults: -1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Query != "kubernetes cni" || got.SearchDepth != model.DepthBasic || got.MaxResults != 5 {
		t.Errorf("expected normalized request, got %+v", got)
	}
	if got.IncludeRawContent || got.IncludeImages {
		t.Errorf("include flags should default to false, got %+v", got)
	}

	if len(set.Results) != 2 || set.Results[0].Title != "CNI spec" || set.Results[1].Score != 0.42 {
		t.Errorf("expected results in backend order, got %+v", set.Results)
	}
	if len(set.Images) != 2 || set.Images[1] != "https://example.com/b.png" {
		t.Errorf("unexpected images %v", set.Images)
	}
	if set.SearchDepth != model.DepthBasic || set.MaxResults != 5 {
		t.Errorf("expected echoed options, got %+v", set)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}, 0)

	_, err := client.Search(context.Background(), "   ", Options{})
	if !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("expected ErrEmptyQuery, got %v", err)
	}
	if calls.Load() != 0 {
		t.Error("no request should be made for an empty query")
	}
}

func TestSearch_MissingKey(t *testing.T) {
	client := NewTavilyClient(config.SearchConfig{BaseURL: "http://127.0.0.1:1"}, zap.NewNop())

	_, err := client.Search(context.Background(), "go generics", Options{})
	if !errors.Is(err, ErrSearchUnavailable) {
		t.Errorf("expected ErrSearchUnavailable, got %v", err)
	}
}

func TestSearch_BackendError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}, 0)

	_, err := client.Search(context.Background(), "go generics", Options{})
	if !errors.Is(err, ErrSearchUnavailable) {
		t.Fatalf("expected ErrSearchUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("expected status in error, got %v", err)
	}
}

func TestSearch_CachesByQueryAndOptions(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"results": []}`))
	}, time.Minute)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := client.Search(ctx, "rust ownership", Options{}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := client.Search(ctx, "rust ownership", Options{Depth: model.DepthAdvanced}); err != nil {
		t.Fatal(err)
	}

	if calls.Load() != 2 {
		t.Errorf("expected 2 backend calls, got %d", calls.Load())
	}
}

func TestParseToolArgs(t *testing.T) {
	args, err := ParseToolArgs(json.RawMessage(`{"query":"istio","searchDepth":"advanced","maxResults":3}`))
	if err != nil {
		t.Fatal(err)
	}
	opts := args.Options().normalize()
	if args.Query != "istio" || opts.Depth != model.DepthAdvanced || opts.MaxResults != 3 {
		t.Errorf("unexpected args %+v / %+v", args, opts)
	}

	if _, err := ParseToolArgs(json.RawMessage(`{"query":`)); err == nil {
		t.Error("expected error for truncated arguments")
	}
}

func TestParseToolArgs_NonIntegerMaxResults(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{`{"query":"cni","maxResults":5.0}`, 5},
		{`{"query":"cni","maxResults":7.5}`, 8},
		{`{"query":"cni","maxResults":1e3}`, 20},
		{`{"query":"cni","maxResults":-2}`, model.DefaultMaxResults},
		{`{"query":"cni"}`, model.DefaultMaxResults},
	}
	for _, tt := range tests {
		args, err := ParseToolArgs(json.RawMessage(tt.raw))
		if err != nil {
			t.Fatalf("%s: %v", tt.raw, err)
		}
		if args.Query != "cni" {
			t.Errorf("%s: query lost, got %q", tt.raw, args.Query)
		}
		if got := args.Options().normalize().MaxResults; got != tt.want {
			t.Errorf("%s: expected %d results, got %d", tt.raw, tt.want, got)
		}
	}

	if _, err := ParseToolArgs(json.RawMessage(`{"query":"cni","maxResults":"five"}`)); err == nil {
		t.Error("expected error for a non-numeric maxResults")
	}
}

func TestFailurePayload(t *testing.T) {
	var payload map[string]string
	if err := json.Unmarshal([]byte(FailurePayload(errors.New("boom"))), &payload); err != nil {
		t.Fatal(err)
	}
	if payload["error"] != "Failed to perform search" || payload["message"] != "boom" {
		t.Errorf("unexpected payload %v", payload)
	}
}
