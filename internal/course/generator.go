// Package course drives document generation: it classifies the request,
// builds the prompt, streams the model and turns its output into protocol
// events. It owns no state; the caller persists whatever it returns.
package course

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fleveque/course-service/internal/llm"
	"github.com/fleveque/course-service/internal/model"
	"github.com/fleveque/course-service/internal/search"
)

// ErrGeneration wraps every failure of the model invocation.
var ErrGeneration = errors.New("generation failed")

// Emit delivers one event to the consumer. An error stops the generation.
type Emit func(model.StreamEvent) error

// Generator is the document generation driver.
type Generator struct {
	llm      llm.Client
	searcher search.Searcher
	audience string
	logger   *zap.Logger
}

// NewGenerator creates a driver. searcher may be nil, in which case the
// model is offered no search tool.
func NewGenerator(client llm.Client, searcher search.Searcher, audience string, logger *zap.Logger) *Generator {
	return &Generator{
		llm:      client,
		searcher: searcher,
		audience: audience,
		logger:   logger,
	}
}

// CreateRequest asks for a new document. The title carries both the topic
// and the course type: "outline" anywhere in it selects an outline.
type CreateRequest struct {
	Title string
	// PriorContent, when set, is passed to the model as a prediction hint.
	PriorContent string
}

// UpdateRequest rewrites Content following a free-form Instruction.
type UpdateRequest struct {
	Content     string
	Instruction string
}

// SuggestRequest asks for edits to Content. DocumentID is stamped on every
// suggestion so the caller can persist them as they are.
type SuggestRequest struct {
	DocumentID string
	Content    string
}

// Result is what a completed generation produced. Draft is also returned,
// partially filled, alongside an error.
type Result struct {
	Draft       string
	CourseType  model.CourseType
	Suggestions []model.Suggestion
	Usage       *llm.Usage
}

// Create generates a new document from its title. The course type is
// emitted before any content.
func (g *Generator) Create(ctx context.Context, req CreateRequest, emit Emit) (*Result, error) {
	outline := IsOutline(req.Title)
	courseType := CourseTypeFor(req.Title)
	if err := emit(model.CourseTypeChanged{CourseType: courseType}); err != nil {
		return &Result{CourseType: courseType}, err
	}

	topic := ExtractTopic(req.Title)
	g.logger.Info("creating course",
		zap.String("course_type", string(courseType)),
		zap.String("topic", topic),
	)

	result, err := g.stream(ctx, llm.Request{
		System:     systemPrompt,
		Prompt:     createPrompt(outline, topic, g.audience),
		Prediction: req.PriorContent,
		Tools:      g.tools(emit),
	}, emit)
	result.CourseType = courseType
	return result, err
}

// Update regenerates existing content from an instruction. Turning an outline
// into a full course reruns the authoring prompt and reclassifies the document
// once the stream completes; any other instruction is a light edit.
func (g *Generator) Update(ctx context.Context, req UpdateRequest, emit Emit) (*Result, error) {
	toFull := IsOutlineToFull(req.Instruction, req.Content)

	llmReq := llm.Request{
		Prompt: req.Instruction,
		Tools:  g.tools(emit),
	}
	if toFull {
		llmReq.System = systemPrompt
	} else {
		llmReq.System = updatePrompt(req.Content)
		llmReq.Prediction = req.Content
	}

	g.logger.Info("updating course", zap.Bool("outline_to_full", toFull))

	result, err := g.stream(ctx, llmReq, emit)
	if err != nil {
		return result, err
	}
	if toFull {
		result.CourseType = model.CourseFull
		if err := emit(model.CourseTypeChanged{CourseType: model.CourseFull}); err != nil {
			return result, err
		}
	}
	return result, nil
}

// stream forwards text and search tool calls as events and collects the draft.
func (g *Generator) stream(ctx context.Context, req llm.Request, emit Emit) (*Result, error) {
	var draft strings.Builder
	usage, err := g.llm.Stream(ctx, req, func(d llm.Delta) error {
		switch d.Type {
		case llm.DeltaText:
			draft.WriteString(d.Text)
			return emit(model.TextDelta{Text: d.Text})
		case llm.DeltaToolCall:
			if d.ToolCall != nil && d.ToolCall.Name == search.ToolName {
				return emit(model.ToolInvocation{ToolName: d.ToolCall.Name, Args: d.ToolCall.Arguments})
			}
		}
		return nil
	})

	result := &Result{Draft: draft.String(), Usage: usage}
	if err != nil {
		return result, fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	return result, nil
}

// tools returns the search tool bound to this generation's event stream.
func (g *Generator) tools(emit Emit) []llm.Tool {
	if g.searcher == nil {
		return nil
	}
	return []llm.Tool{{
		Name:        search.ToolName,
		Description: search.ToolDescription,
		Properties:  search.ToolProperties,
		Required:    search.ToolRequired,
		Execute: func(ctx context.Context, raw json.RawMessage) (string, error) {
			return g.runSearch(ctx, raw, emit)
		},
	}}
}

// runSearch never fails the generation: errors are logged and handed back to
// the model as a failure payload.
func (g *Generator) runSearch(ctx context.Context, raw json.RawMessage, emit Emit) (string, error) {
	args, err := search.ParseToolArgs(raw)
	if err != nil {
		g.logger.Error("invalid search tool arguments", zap.Error(err))
		return search.FailurePayload(err), nil
	}

	results, err := g.searcher.Search(ctx, args.Query, args.Options())
	if err != nil {
		g.logger.Error("search tool failed", zap.String("query", args.Query), zap.Error(err))
		return search.FailurePayload(err), nil
	}

	if err := emit(model.SearchResults{Results: results}); err != nil {
		return "", err
	}

	payload, err := json.Marshal(results)
	if err != nil {
		return search.FailurePayload(err), nil
	}
	return string(payload), nil
}

const submitSuggestionsTool = "submitSuggestions"

type submittedSuggestions struct {
	Suggestions []struct {
		OriginalText  string `json:"originalText"`
		SuggestedText string `json:"suggestedText"`
		Description   string `json:"description"`
	} `json:"suggestions"`
}

// Suggest asks the model for edits to the content. Suggestions arrive through
// a tool call and are emitted one by one; free text from the model is dropped.
func (g *Generator) Suggest(ctx context.Context, req SuggestRequest, emit Emit) (*Result, error) {
	result := &Result{}

	submit := llm.Tool{
		Name:        submitSuggestionsTool,
		Description: "Submit the improvement suggestions for the document. Call this tool once with all suggestions.",
		Properties: map[string]any{
			"suggestions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"originalText": map[string]any{
							"type":        "string",
							"description": "The exact passage of the document to replace.",
						},
						"suggestedText": map[string]any{
							"type":        "string",
							"description": "The replacement text.",
						},
						"description": map[string]any{
							"type":        "string",
							"description": "One sentence describing the change.",
						},
					},
					"required": []string{"originalText", "suggestedText", "description"},
				},
			},
		},
		Required: []string{"suggestions"},
		Execute: func(_ context.Context, raw json.RawMessage) (string, error) {
			var submitted submittedSuggestions
			if err := json.Unmarshal(raw, &submitted); err != nil {
				return "", fmt.Errorf("decoding suggestions: %w", err)
			}
			for _, s := range submitted.Suggestions {
				sug := model.Suggestion{
					ID:            uuid.NewString(),
					DocumentID:    req.DocumentID,
					OriginalText:  s.OriginalText,
					SuggestedText: s.SuggestedText,
					Description:   s.Description,
					CreatedAt:     time.Now().UTC(),
				}
				if err := emit(model.SuggestionAdded{Suggestion: sug}); err != nil {
					return "", err
				}
				result.Suggestions = append(result.Suggestions, sug)
			}
			return fmt.Sprintf("Received %d suggestions.", len(submitted.Suggestions)), nil
		},
	}

	usage, err := g.llm.Stream(ctx, llm.Request{
		System: suggestionsPrompt,
		Prompt: req.Content,
		Tools:  []llm.Tool{submit},
	}, func(llm.Delta) error { return nil })
	result.Usage = usage
	if err != nil {
		return result, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	g.logger.Info("suggestions generated",
		zap.String("document_id", req.DocumentID),
		zap.Int("count", len(result.Suggestions)),
	)
	return result, nil
}

// ModelInfo names the provider and model generations are sent to.
func (g *Generator) ModelInfo() (provider, modelName string) {
	return g.llm.ProviderName(), g.llm.ModelName()
}
