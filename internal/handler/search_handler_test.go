package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/course-service/internal/model"
	"github.com/fleveque/course-service/internal/search"
)

type stubSearcher struct {
	err  error
	opts search.Options
}

func (s *stubSearcher) Search(_ context.Context, query string, opts search.Options) (*model.SearchResultSet, error) {
	s.opts = opts
	if strings.TrimSpace(query) == "" {
		return nil, search.ErrEmptyQuery
	}
	if s.err != nil {
		return nil, s.err
	}
	return &model.SearchResultSet{Query: query, Results: []model.SearchResult{{Title: "CNI", URL: "https://example.com"}}}, nil
}

func searchRouter(s search.Searcher) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/search", NewSearchHandler(s, zap.NewNop()).Search)
	return r
}

func postSearch(r *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSearch_Success(t *testing.T) {
	stub := &stubSearcher{}
	w := postSearch(searchRouter(stub), `{"query":"kubernetes cni","searchDepth":"advanced","maxResults":3}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"title":"CNI"`) {
		t.Errorf("expected results in body, got %s", w.Body.String())
	}
	if stub.opts.Depth != model.DepthAdvanced || stub.opts.MaxResults != 3 {
		t.Errorf("options not passed through: %+v", stub.opts)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	w := postSearch(searchRouter(&stubSearcher{}), `{"query":"  "}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestSearch_BackendFailure(t *testing.T) {
	stub := &stubSearcher{err: fmt.Errorf("%w: status 429", search.ErrSearchUnavailable)}
	w := postSearch(searchRouter(stub), `{"query":"kubernetes"}`)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"error":"Failed to perform search"`) ||
		!strings.Contains(w.Body.String(), "status 429") {
		t.Errorf("unexpected failure body: %s", w.Body.String())
	}
}

func TestSearch_InvalidBody(t *testing.T) {
	w := postSearch(searchRouter(&stubSearcher{}), `not json`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}
