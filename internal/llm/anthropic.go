package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	"github.com/fleveque/course-service/internal/config"
)

// AnthropicClient streams from Claude through the Messages API.
type AnthropicClient struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
	maxTurns  int
}

// NewAnthropicClient creates a Claude client. Extra request options are
// appended after the API key (tests use them to point at a local server).
func NewAnthropicClient(cfg config.AnthropicConfig, maxTurns int, opts ...option.RequestOption) *AnthropicClient {
	opts = append([]option.RequestOption{option.WithAPIKey(cfg.APIKey)}, opts...)
	client := anthropic.NewClient(opts...)

	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 16000
	}
	return &AnthropicClient{
		client:    &client,
		model:     cfg.Model,
		maxTokens: maxTokens,
		maxTurns:  maxTurns,
	}
}

func (a *AnthropicClient) ProviderName() string { return "anthropic" }
func (a *AnthropicClient) ModelName() string    { return a.model }

// Stream runs the tool loop. Claude has no predicted-output feature, so
// req.Prediction is ignored.
func (a *AnthropicClient) Stream(ctx context.Context, req Request, fn DeltaFunc) (*Usage, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = a.maxTokens
	}

	tools := make([]anthropic.ToolUnionParam, 0, len(req.Tools))
	for _, t := range req.Tools {
		tools = append(tools, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        t.Name,
			Description: param.NewOpt(t.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: t.Properties,
				Required:   t.Required,
			},
		}})
	}

	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
	}
	usage := &Usage{Provider: a.ProviderName(), Model: a.model}

	for usage.Turns < a.maxTurns {
		usage.Turns++

		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(a.model),
			MaxTokens: maxTokens,
			Messages:  messages,
			Tools:     tools,
		}
		if req.System != "" {
			params.System = []anthropic.TextBlockParam{{Text: req.System}}
		}

		message, err := a.streamTurn(ctx, params, fn)
		if err != nil {
			return usage, err
		}
		usage.InputTokens += message.Usage.InputTokens
		usage.OutputTokens += message.Usage.OutputTokens

		if message.StopReason != anthropic.StopReasonToolUse {
			return usage, nil
		}

		// Echo the assistant turn back, then answer every tool_use block in it.
		messages = append(messages, message.ToParam())

		results := []anthropic.ContentBlockParamUnion{}
		for _, block := range message.Content {
			toolUse, ok := block.AsAny().(anthropic.ToolUseBlock)
			if !ok {
				continue
			}
			call := ToolCall{ID: toolUse.ID, Name: toolUse.Name, Arguments: toolUse.Input}
			if err := fn(Delta{Type: DeltaToolCall, ToolCall: &call}); err != nil {
				return usage, err
			}
			content, isError := runTool(ctx, req.Tools, call)
			results = append(results, anthropic.NewToolResultBlock(toolUse.ID, content, isError))
		}
		if len(results) == 0 {
			return usage, nil
		}
		messages = append(messages, anthropic.NewUserMessage(results...))
	}

	return usage, ErrMaxTurns
}

// streamTurn forwards text deltas while accumulating the full message.
func (a *AnthropicClient) streamTurn(ctx context.Context, params anthropic.MessageNewParams, fn DeltaFunc) (*anthropic.Message, error) {
	stream := a.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return nil, fmt.Errorf("accumulating anthropic stream: %w", err)
		}

		delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		if text, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok && text.Text != "" {
			if err := fn(Delta{Type: DeltaText, Text: text.Text}); err != nil {
				return nil, err
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("anthropic stream: %w", err)
	}
	return &message, nil
}
