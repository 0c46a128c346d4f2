package search

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/fleveque/course-service/internal/model"
)

// ToolName is the name the model uses to call the search tool.
const ToolName = "tavilySearch"

// ToolDescription is shown to the model next to the schema.
const ToolDescription = "Search the web for factual information using Tavily search API"

// ToolProperties is the JSON Schema "properties" object of the tool input.
var ToolProperties = map[string]any{
	"query": map[string]any{
		"type":        "string",
		"description": "The search query to find information about",
	},
	"searchDepth": map[string]any{
		"type":        "string",
		"enum":        []string{string(model.DepthBasic), string(model.DepthAdvanced)},
		"description": "The depth of the search, basic is faster, advanced is more comprehensive",
	},
	"maxResults": map[string]any{
		"type":        "integer",
		"description": "Maximum number of results to return, defaults to 5",
	},
	"includeRawContent": map[string]any{
		"type":        "boolean",
		"description": "Whether to include the raw content of the search results",
	},
	"includeImages": map[string]any{
		"type":        "boolean",
		"description": "Whether to include images in the search results",
	},
}

// ToolRequired lists the mandatory tool arguments.
var ToolRequired = []string{"query"}

// ToolArgs is the decoded tool input.
type ToolArgs struct {
	Query             string            `json:"query"`
	SearchDepth       model.SearchDepth `json:"searchDepth"`
	MaxResults        int               `json:"maxResults"`
	IncludeRawContent bool              `json:"includeRawContent"`
	IncludeImages     bool              `json:"includeImages"`
}

// maxToolResults caps what a model may ask for; Tavily accepts at most 20.
const maxToolResults = 20

// UnmarshalJSON accepts any JSON number for maxResults. Models emit 5.0 or
// 7.5 even for an integer schema, and rejecting those would throw away the
// whole call, so the value is rounded and capped instead.
func (a *ToolArgs) UnmarshalJSON(data []byte) error {
	type plain ToolArgs
	aux := struct {
		*plain
		MaxResults *float64 `json:"maxResults"`
	}{plain: (*plain)(a)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.MaxResults != nil {
		a.MaxResults = int(math.Min(math.Round(*aux.MaxResults), maxToolResults))
	}
	return nil
}

// ParseToolArgs decodes the model's JSON arguments. Missing fields fall back
// to the search defaults.
func ParseToolArgs(raw json.RawMessage) (ToolArgs, error) {
	var args ToolArgs
	if len(raw) == 0 {
		return args, nil
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return args, fmt.Errorf("decoding %s arguments: %w", ToolName, err)
	}
	return args, nil
}

// Options converts the tool input into search options.
func (a ToolArgs) Options() Options {
	return Options{
		Depth:             a.SearchDepth,
		MaxResults:        a.MaxResults,
		IncludeRawContent: a.IncludeRawContent,
		IncludeImages:     a.IncludeImages,
	}
}

// FailurePayload is what the model receives instead of results when a search
// fails. The generation carries on.
func FailurePayload(err error) string {
	payload, _ := json.Marshal(map[string]string{
		"error":   "Failed to perform search",
		"message": err.Error(),
	})
	return string(payload)
}
