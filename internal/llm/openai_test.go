package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/fleveque/course-service/internal/config"
)

func writeSSE(w http.ResponseWriter, chunks ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, c := range chunks {
		fmt.Fprintf(w, "data: %s\n\n", c)
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
}

func TestOpenAIClient_StreamsTextAndRunsTools(t *testing.T) {
	var (
		mu       sync.Mutex
		requests []openai.ChatCompletionRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		mu.Lock()
		requests = append(requests, req)
		n := len(requests)
		mu.Unlock()

		if n == 1 {
			writeSSE(w,
				`{"id":"1","choices":[{"index":0,"delta":{"role":"assistant","tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"tavilySearch","arguments":""}}]}}]}`,
				`{"id":"1","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"query\":"}}]}}]}`,
				`{"id":"1","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"cni\"}"}}]}}]}`,
				`{"id":"1","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
				`{"id":"1","choices":[],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`,
			)
			return
		}
		writeSSE(w,
			`{"id":"2","choices":[{"index":0,"delta":{"content":"# Kubernetes "}}]}`,
			`{"id":"2","choices":[{"index":0,"delta":{"content":"Networking"}}]}`,
			`{"id":"2","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
		)
	}))
	defer srv.Close()

	client := NewOpenAIClient(config.OpenAIConfig{APIKey: "sk-test", Model: "gpt-4o", BaseURL: srv.URL + "/v1"}, 4)

	var gotArgs string
	tool := Tool{
		Name:       "tavilySearch",
		Properties: map[string]any{"query": map[string]any{"type": "string"}},
		Required:   []string{"query"},
		Execute: func(_ context.Context, args json.RawMessage) (string, error) {
			gotArgs = string(args)
			return `{"results":[]}`, nil
		},
	}

	var deltas []Delta
	usage, err := client.Stream(context.Background(), Request{System: "sys", Prompt: "New Outline", Tools: []Tool{tool}}, func(d Delta) error {
		deltas = append(deltas, d)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotArgs != `{"query":"cni"}` {
		t.Errorf("expected assembled arguments, got %q", gotArgs)
	}
	if len(deltas) != 3 || deltas[0].Type != DeltaToolCall || deltas[0].ToolCall.Name != "tavilySearch" {
		t.Fatalf("unexpected deltas %+v", deltas)
	}
	if deltas[1].Text+deltas[2].Text != "# Kubernetes Networking" {
		t.Errorf("unexpected text %q", deltas[1].Text+deltas[2].Text)
	}
	if usage.Turns != 2 || usage.InputTokens != 10 || usage.Provider != "openai" {
		t.Errorf("unexpected usage %+v", usage)
	}

	if len(requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(requests))
	}
	second := requests[1].Messages
	last := second[len(second)-1]
	if last.Role != openai.ChatMessageRoleTool || last.ToolCallID != "call_1" || last.Content != `{"results":[]}` {
		t.Errorf("expected tool result message, got %+v", last)
	}
}

// captureRequest serves one completion and records the request it answered.
func captureRequest(t *testing.T, req Request) openai.ChatCompletionRequest {
	t.Helper()
	var got openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		writeSSE(w, `{"id":"1","choices":[{"index":0,"delta":{"content":"updated"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	client := NewOpenAIClient(config.OpenAIConfig{APIKey: "sk-test", Model: "gpt-4o", BaseURL: srv.URL + "/v1"}, 0)
	if _, err := client.Stream(context.Background(), req, func(Delta) error { return nil }); err != nil {
		t.Fatal(err)
	}
	return got
}

func TestOpenAIClient_ToolsWinOverPrediction(t *testing.T) {
	got := captureRequest(t, Request{
		Prompt:     "update",
		Prediction: "old content",
		Tools:      []Tool{{Name: "tavilySearch"}},
	})
	if len(got.Tools) != 1 || got.Tools[0].Function.Name != "tavilySearch" {
		t.Errorf("expected the search tool to be kept, got %+v", got.Tools)
	}
	if got.Prediction != nil {
		t.Errorf("prediction cannot be combined with tools, got %+v", got.Prediction)
	}
}

func TestOpenAIClient_PredictionWithoutTools(t *testing.T) {
	got := captureRequest(t, Request{Prompt: "update", Prediction: "old content"})
	if got.Prediction == nil || got.Prediction.Content != "old content" || got.Prediction.Type != "content" {
		t.Errorf("expected prediction, got %+v", got.Prediction)
	}
}

func TestOpenAIClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient(config.OpenAIConfig{APIKey: "sk-bad", Model: "gpt-4o", BaseURL: srv.URL + "/v1"}, 0)
	_, err := client.Stream(context.Background(), Request{Prompt: "x"}, func(Delta) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "bad key") {
		t.Errorf("expected API error, got %v", err)
	}
}
