package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/fleveque/course-service/internal/config"
)

// OpenAIClient streams chat completions with function calling.
type OpenAIClient struct {
	client   *openai.Client
	model    string
	maxTurns int
}

// NewOpenAIClient creates an OpenAI client. BaseURL is optional and allows
// OpenAI-compatible endpoints.
func NewOpenAIClient(cfg config.OpenAIConfig, maxTurns int) *OpenAIClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	return &OpenAIClient{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    cfg.Model,
		maxTurns: maxTurns,
	}
}

func (o *OpenAIClient) ProviderName() string { return "openai" }
func (o *OpenAIClient) ModelName() string    { return o.model }

// Stream runs the tool loop.
//
// The API rejects predicted outputs combined with function calling. When a
// request carries both, the tools win: a light edit that can still search
// keeps its facts checked, and only loses the latency gain of the
// prediction. The prediction is sent only for requests without tools.
func (o *OpenAIClient) Stream(ctx context.Context, req Request, fn DeltaFunc) (*Usage, error) {
	var tools []openai.Tool
	for _, t := range req.Tools {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toolSchema(t),
			},
		})
	}

	messages := []openai.ChatCompletionMessage{}
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	usage := &Usage{Provider: o.ProviderName(), Model: o.model}
	for usage.Turns < o.maxTurns {
		usage.Turns++

		chatReq := openai.ChatCompletionRequest{
			Model:         o.model,
			Messages:      messages,
			Tools:         tools,
			StreamOptions: &openai.StreamOptions{IncludeUsage: true},
		}
		if req.MaxTokens > 0 {
			chatReq.MaxCompletionTokens = int(req.MaxTokens)
		}
		if req.Prediction != "" && len(tools) == 0 {
			chatReq.Prediction = &openai.Prediction{Type: "content", Content: req.Prediction}
		}

		turn, err := o.streamTurn(ctx, chatReq, fn, usage)
		if err != nil {
			return usage, err
		}
		if len(turn.calls) == 0 {
			return usage, nil
		}

		messages = append(messages, openai.ChatCompletionMessage{
			Role:      openai.ChatMessageRoleAssistant,
			Content:   turn.text,
			ToolCalls: turn.calls,
		})
		for _, tc := range turn.calls {
			call := ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: []byte(tc.Function.Arguments)}
			if err := fn(Delta{Type: DeltaToolCall, ToolCall: &call}); err != nil {
				return usage, err
			}
			content, isError := runTool(ctx, req.Tools, call)
			if isError {
				content = "Error: " + content
			}
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    content,
				ToolCallID: tc.ID,
			})
		}
	}

	return usage, ErrMaxTurns
}

type openAITurn struct {
	text  string
	calls []openai.ToolCall
}

// streamTurn forwards content deltas and assembles tool calls, which arrive
// as fragments keyed by index.
func (o *OpenAIClient) streamTurn(ctx context.Context, req openai.ChatCompletionRequest, fn DeltaFunc, usage *Usage) (*openAITurn, error) {
	stream, err := o.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai API call: %w", err)
	}
	defer stream.Close()

	var text strings.Builder
	calls := map[int]*openai.ToolCall{}
	args := map[int]*strings.Builder{}

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("openai stream: %w", err)
		}
		if resp.Usage != nil {
			usage.InputTokens += int64(resp.Usage.PromptTokens)
			usage.OutputTokens += int64(resp.Usage.CompletionTokens)
		}
		if len(resp.Choices) == 0 {
			continue
		}

		delta := resp.Choices[0].Delta
		if delta.Content != "" {
			text.WriteString(delta.Content)
			if err := fn(Delta{Type: DeltaText, Text: delta.Content}); err != nil {
				return nil, err
			}
		}
		for _, tc := range delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			call, ok := calls[idx]
			if !ok {
				call = &openai.ToolCall{Type: openai.ToolTypeFunction}
				calls[idx] = call
				args[idx] = &strings.Builder{}
			}
			if tc.ID != "" {
				call.ID = tc.ID
			}
			if tc.Function.Name != "" {
				call.Function.Name = tc.Function.Name
			}
			args[idx].WriteString(tc.Function.Arguments)
		}
	}

	indexes := make([]int, 0, len(calls))
	for idx := range calls {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	turn := &openAITurn{text: text.String()}
	for _, idx := range indexes {
		call := calls[idx]
		call.Function.Arguments = args[idx].String()
		turn.calls = append(turn.calls, *call)
	}
	return turn, nil
}
