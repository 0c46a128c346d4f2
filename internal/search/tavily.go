// Package search is the web-search capability the course generator offers the
// model as a tool. The only backend is Tavily's HTTP API.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/fleveque/course-service/internal/config"
	"github.com/fleveque/course-service/internal/model"
)

var (
	// ErrEmptyQuery is returned before any network call when the query is blank.
	ErrEmptyQuery = errors.New("search query is empty")
	// ErrSearchUnavailable wraps every failure to reach or use the backend,
	// including a missing API key.
	ErrSearchUnavailable = errors.New("search unavailable")
)

// Options tune a single search. The zero value means the defaults.
type Options struct {
	Depth             model.SearchDepth
	MaxResults        int
	IncludeRawContent bool
	IncludeImages     bool
}

// normalize applies defaults: basic depth, five results.
func (o Options) normalize() Options {
	if o.Depth != model.DepthAdvanced {
		o.Depth = model.DepthBasic
	}
	if o.MaxResults <= 0 {
		o.MaxResults = model.DefaultMaxResults
	}
	return o
}

// Searcher is what the generator and the HTTP layer depend on.
type Searcher interface {
	Search(ctx context.Context, query string, opts Options) (*model.SearchResultSet, error)
}

// TavilyClient calls POST {base_url}/search. Responses are cached per
// (query, options) for the configured TTL.
type TavilyClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	cache   *cache.Cache
	logger  *zap.Logger
}

// NewTavilyClient builds a client. A zero CacheTTL disables caching.
func NewTavilyClient(cfg config.SearchConfig, logger *zap.Logger) *TavilyClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	t := &TavilyClient{
		apiKey:  cfg.TavilyAPIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
	if cfg.CacheTTL > 0 {
		t.cache = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	return t
}

type tavilyRequest struct {
	Query             string            `json:"query"`
	SearchDepth       model.SearchDepth `json:"search_depth"`
	MaxResults        int               `json:"max_results"`
	IncludeRawContent bool              `json:"include_raw_content"`
	IncludeImages     bool              `json:"include_images"`
}

// tavilyResponse mirrors the fields we use. Images come back either as plain
// URLs or as {url, description} objects depending on account settings.
type tavilyResponse struct {
	Query        string               `json:"query"`
	Results      []model.SearchResult `json:"results"`
	Images       []json.RawMessage    `json:"images"`
	ResponseTime float64              `json:"response_time"`
}

// Search runs one query. Results are returned exactly as ranked by Tavily.
func (t *TavilyClient) Search(ctx context.Context, query string, opts Options) (*model.SearchResultSet, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if t.apiKey == "" {
		return nil, fmt.Errorf("%w: TAVILY_API_KEY is not set", ErrSearchUnavailable)
	}
	opts = opts.normalize()

	key := cacheKey(query, opts)
	if t.cache != nil {
		if cached, ok := t.cache.Get(key); ok {
			t.logger.Debug("search cache hit", zap.String("query", query))
			return cached.(*model.SearchResultSet), nil
		}
	}

	body, err := json.Marshal(tavilyRequest{
		Query:             query,
		SearchDepth:       opts.Depth,
		MaxResults:        opts.MaxResults,
		IncludeRawContent: opts.IncludeRawContent,
		IncludeImages:     opts.IncludeImages,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", ErrSearchUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("User-Agent", "course-service/1.0")

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("%w: tavily returned %d: %s", ErrSearchUnavailable, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var tr tavilyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&tr); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrSearchUnavailable, err)
	}

	set := &model.SearchResultSet{
		Query:             query,
		SearchDepth:       opts.Depth,
		MaxResults:        opts.MaxResults,
		IncludeRawContent: opts.IncludeRawContent,
		IncludeImages:     opts.IncludeImages,
		Results:           tr.Results,
		Images:            imageURLs(tr.Images),
		ResponseTime:      tr.ResponseTime,
	}
	if set.Results == nil {
		set.Results = []model.SearchResult{}
	}

	t.logger.Info("search completed",
		zap.String("query", query),
		zap.String("depth", string(opts.Depth)),
		zap.Int("results", len(set.Results)),
		zap.Duration("duration", time.Since(start)),
	)

	if t.cache != nil {
		t.cache.SetDefault(key, set)
	}
	return set, nil
}

func cacheKey(query string, o Options) string {
	return fmt.Sprintf("%s|%s|%d|%t|%t", strings.ToLower(query), o.Depth, o.MaxResults, o.IncludeRawContent, o.IncludeImages)
}

func imageURLs(raw []json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	urls := make([]string, 0, len(raw))
	for _, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			urls = append(urls, s)
			continue
		}
		var obj struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(r, &obj); err == nil && obj.URL != "" {
			urls = append(urls, obj.URL)
		}
	}
	return urls
}
