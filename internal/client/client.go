// Package client talks to the course service over HTTP. Generation
// endpoints answer with server-sent events which are decoded back into
// protocol events.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/course-service/internal/artifact"
	"github.com/fleveque/course-service/internal/config"
	"github.com/fleveque/course-service/internal/model"
	"github.com/fleveque/course-service/internal/search"
)

// ErrGenerationFailed is returned when the stream ends with an error event.
var ErrGenerationFailed = errors.New("generation failed")

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// EventFunc receives stream events in order. Returning an error stops reading.
type EventFunc func(model.StreamEvent) error

// Client is a course service API client. It is safe for concurrent use:
// the only shared state is the http.Client, which already is.
//
// Generation calls (Create, Update, Suggest, Action) block until the server
// closes the stream, calling fn for each event in between. Everything else
// is a plain JSON request.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

// New creates a client. Requests carry no timeout of their own; generation
// streams are bounded by the caller's context.
func New(cfg config.ClientConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.ServerURL, "/") + "/api/v1",
		apiKey:  cfg.APIKey,
		http:    &http.Client{},
		logger:  logger,
	}
}

// Create streams the generation of a new document.
func (c *Client) Create(ctx context.Context, title string, fn EventFunc) error {
	return c.stream(ctx, "/documents", map[string]string{"title": title}, fn)
}

// Update streams a rewrite of a document.
func (c *Client) Update(ctx context.Context, id, instruction string, fn EventFunc) error {
	return c.stream(ctx, "/documents/"+url.PathEscape(id)+"/update", map[string]string{"instruction": instruction}, fn)
}

// Suggest streams improvement suggestions.
func (c *Client) Suggest(ctx context.Context, id string, fn EventFunc) error {
	return c.stream(ctx, "/documents/"+url.PathEscape(id)+"/suggestions", nil, fn)
}

// Action streams a toolbar action.
func (c *Client) Action(ctx context.Context, id, action string, fn EventFunc) error {
	return c.stream(ctx, "/documents/"+url.PathEscape(id)+"/actions/"+url.PathEscape(action), nil, fn)
}

// Get fetches the live view of a document.
func (c *Client) Get(ctx context.Context, id string) (*artifact.View, error) {
	var view artifact.View
	if err := c.getJSON(ctx, "/documents/"+url.PathEscape(id), &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// List fetches recently updated documents.
func (c *Client) List(ctx context.Context, limit int) ([]model.Document, error) {
	var out struct {
		Documents []model.Document `json:"documents"`
	}
	if err := c.getJSON(ctx, "/documents?limit="+strconv.Itoa(limit), &out); err != nil {
		return nil, err
	}
	return out.Documents, nil
}

// VersionSummary is one entry of a document's version list.
type VersionSummary struct {
	Version    int              `json:"version"`
	CourseType model.CourseType `json:"course_type"`
	Title      string           `json:"title"`
	Characters int              `json:"characters"`
	CreatedAt  time.Time        `json:"created_at"`
}

// Versions lists saved versions.
func (c *Client) Versions(ctx context.Context, id string) ([]VersionSummary, error) {
	var out struct {
		Versions []VersionSummary `json:"versions"`
	}
	if err := c.getJSON(ctx, "/documents/"+url.PathEscape(id)+"/versions", &out); err != nil {
		return nil, err
	}
	return out.Versions, nil
}

// Version fetches one saved version.
func (c *Client) Version(ctx context.Context, id string, version int) (*model.Version, error) {
	var v model.Version
	if err := c.getJSON(ctx, fmt.Sprintf("/documents/%s/versions/%d", url.PathEscape(id), version), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Download fetches the markdown export and the filename the server suggests.
func (c *Client) Download(ctx context.Context, id string) (string, []byte, error) {
	return c.download(ctx, "/documents/"+url.PathEscape(id)+"/download")
}

// VersionDownload fetches the file exported for a saved version.
func (c *Client) VersionDownload(ctx context.Context, id string, version int) (string, []byte, error) {
	return c.download(ctx, fmt.Sprintf("/documents/%s/versions/%d/download", url.PathEscape(id), version))
}

// Delete removes a document on the server.
func (c *Client) Delete(ctx context.Context, id string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/documents/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func (c *Client) download(ctx context.Context, path string) (string, []byte, error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("reading download: %w", err)
	}

	filename := "technical-course.md"
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		filename = params["filename"]
	}
	return filename, data, nil
}

// Print fetches the printable HTML page.
func (c *Client) Print(ctx context.Context, id string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, "/documents/"+url.PathEscape(id)+"/print", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// Search runs a direct web search.
func (c *Client) Search(ctx context.Context, args search.ToolArgs) (*model.SearchResultSet, error) {
	resp, err := c.do(ctx, http.MethodPost, "/search", args)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var results model.SearchResultSet
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decoding search results: %w", err)
	}
	return &results, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// do sends a request and turns non-2xx answers into *APIError.
func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	c.logger.Debug("request", zap.String("method", method), zap.String("path", path))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
	return resp, nil
}

func decodeAPIError(resp *http.Response) error {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		msg = body.Error
		if body.Message != "" {
			msg += ": " + body.Message
		}
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
