// Package llm provides a provider-agnostic streaming interface to language
// models that can call tools. Each Client runs the whole agentic loop: it
// streams a turn, forwards text as it arrives, executes requested tools,
// feeds the results back and repeats until the model stops asking for tools.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMaxTurns is returned when the model keeps calling tools past the turn cap.
var ErrMaxTurns = errors.New("exceeded max tool-calling turns")

// defaultMaxTurns applies when a client is built with a non-positive cap.
const defaultMaxTurns = 8

// Tool is a function the model may call. Execute receives the raw JSON
// arguments and returns the content handed back to the model. An error is
// reported to the model as a failed tool result; it does not stop the stream.
type Tool struct {
	Name        string
	Description string
	// Properties is the JSON Schema "properties" object of the input.
	Properties map[string]any
	Required   []string
	Execute    func(ctx context.Context, args json.RawMessage) (string, error)
}

// Request is one generation.
type Request struct {
	System string
	Prompt string
	// Prediction is the expected output, used by providers that support
	// predicted outputs to speed up small edits of existing text.
	Prediction string
	Tools      []Tool
	MaxTokens  int64
}

// DeltaType discriminates Delta.
type DeltaType string

const (
	DeltaText     DeltaType = "text"
	DeltaToolCall DeltaType = "tool_call"
)

// ToolCall is a completed tool request from the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// Delta is one unit of streamed output. A tool_call delta is delivered
// before the tool runs.
type Delta struct {
	Type     DeltaType
	Text     string
	ToolCall *ToolCall
}

// Usage is accumulated across all turns of a generation.
type Usage struct {
	Provider     string
	Model        string
	InputTokens  int64
	OutputTokens int64
	Turns        int
}

// DeltaFunc receives deltas in order. Returning an error aborts the stream.
type DeltaFunc func(Delta) error

// Client is implemented by Anthropic and OpenAI, and by Router, which tries
// several clients in order.
type Client interface {
	Stream(ctx context.Context, req Request, fn DeltaFunc) (*Usage, error)
	ProviderName() string
	ModelName() string
}

// runTool executes the named tool. The bool reports whether the content
// describes a failure.
func runTool(ctx context.Context, tools []Tool, call ToolCall) (string, bool) {
	for _, t := range tools {
		if t.Name != call.Name {
			continue
		}
		if t.Execute == nil {
			return fmt.Sprintf("tool %q cannot be executed", call.Name), true
		}
		args := call.Arguments
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		out, err := t.Execute(ctx, args)
		if err != nil {
			return err.Error(), true
		}
		return out, false
	}
	return fmt.Sprintf("unknown tool %q", call.Name), true
}

// toolSchema is the full JSON Schema object for providers that take one.
func toolSchema(t Tool) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": t.Properties,
	}
	if len(t.Required) > 0 {
		schema["required"] = t.Required
	}
	return schema
}
