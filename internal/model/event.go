package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventType is the wire discriminator of a stream event.
type EventType string

const (
	EventTextDelta      EventType = "text-delta"
	EventToolInvocation EventType = "tool-invocation"
	EventSearchResults  EventType = "search-results"
	EventCourseType     EventType = "course-type"
	EventSuggestion     EventType = "suggestion"
	EventID             EventType = "id"
	EventTitle          EventType = "title"
	EventKind           EventType = "kind"
	EventClear          EventType = "clear"
	EventFinish         EventType = "finish"
	EventError          EventType = "error"
)

// ErrUnknownEvent is returned by DecodeEvent for a type outside the protocol.
var ErrUnknownEvent = errors.New("unknown stream event type")

// StreamEvent is a sealed union: only the variants below implement it.
// Consumers switch on the concrete type.
type StreamEvent interface {
	Type() EventType
	streamEvent()
}

// TextDelta is a fragment of document content, forwarded verbatim.
type TextDelta struct {
	Text string
}

// ToolInvocation announces that the model called a tool.
type ToolInvocation struct {
	ToolName string          `json:"toolName"`
	Args     json.RawMessage `json:"args"`
}

// SearchResults carries a completed search. Results is never nil after DecodeEvent.
type SearchResults struct {
	Results *SearchResultSet
}

// CourseTypeChanged reclassifies the document.
type CourseTypeChanged struct {
	CourseType CourseType
}

// SuggestionAdded appends one suggestion to the document metadata.
type SuggestionAdded struct {
	Suggestion Suggestion
}

// DocumentIDSet, TitleSet and KindSet describe the artifact at the start of a create.
type DocumentIDSet struct{ ID string }
type TitleSet struct{ Title string }
type KindSet struct{ Kind string }

// Clear starts a new generation cycle with empty content.
type Clear struct{}

// Finish ends a generation cycle.
type Finish struct{}

// Failure ends a generation cycle that could not complete.
type Failure struct {
	Message string
}

func (TextDelta) Type() EventType         { return EventTextDelta }
func (ToolInvocation) Type() EventType    { return EventToolInvocation }
func (SearchResults) Type() EventType     { return EventSearchResults }
func (CourseTypeChanged) Type() EventType { return EventCourseType }
func (SuggestionAdded) Type() EventType   { return EventSuggestion }
func (DocumentIDSet) Type() EventType     { return EventID }
func (TitleSet) Type() EventType          { return EventTitle }
func (KindSet) Type() EventType           { return EventKind }
func (Clear) Type() EventType             { return EventClear }
func (Finish) Type() EventType            { return EventFinish }
func (Failure) Type() EventType           { return EventError }

func (TextDelta) streamEvent()         {}
func (ToolInvocation) streamEvent()    {}
func (SearchResults) streamEvent()     {}
func (CourseTypeChanged) streamEvent() {}
func (SuggestionAdded) streamEvent()   {}
func (DocumentIDSet) streamEvent()     {}
func (TitleSet) streamEvent()          {}
func (KindSet) streamEvent()           {}
func (Clear) streamEvent()             {}
func (Finish) streamEvent()            {}
func (Failure) streamEvent()           {}

// wireEvent is the JSON envelope every event travels in: {"type": ..., "content": ...}.
type wireEvent struct {
	Type    EventType       `json:"type"`
	Content json.RawMessage `json:"content"`
}

// EncodeEvent marshals an event into its wire envelope.
func EncodeEvent(ev StreamEvent) ([]byte, error) {
	var content any
	switch e := ev.(type) {
	case TextDelta:
		content = e.Text
	case ToolInvocation:
		args := e.Args
		switch {
		case len(args) == 0:
			args = json.RawMessage("{}")
		case !json.Valid(args):
			// Models sometimes stream truncated arguments. They are sent as a
			// JSON string so the event still encodes and the stream goes on;
			// the tool itself reports the bad input back to the model.
			quoted, err := json.Marshal(string(args))
			if err != nil {
				return nil, fmt.Errorf("encoding tool-invocation args: %w", err)
			}
			args = quoted
		}
		content = ToolInvocation{ToolName: e.ToolName, Args: args}
	case SearchResults:
		content = e.Results
	case CourseTypeChanged:
		content = e.CourseType
	case SuggestionAdded:
		content = e.Suggestion
	case DocumentIDSet:
		content = e.ID
	case TitleSet:
		content = e.Title
	case KindSet:
		content = e.Kind
	case Clear, Finish:
		content = ""
	case Failure:
		content = e.Message
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
	}

	raw, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("encoding %s content: %w", ev.Type(), err)
	}
	return json.Marshal(wireEvent{Type: ev.Type(), Content: raw})
}

// DecodeEvent parses a wire envelope. This is the validation boundary for the
// protocol: malformed payloads of known types are defaulted, never rejected.
// Only an unreadable envelope or an unknown type is an error.
func DecodeEvent(data []byte) (StreamEvent, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decoding event envelope: %w", err)
	}

	switch w.Type {
	case EventTextDelta:
		return TextDelta{Text: decodeString(w.Content)}, nil
	case EventToolInvocation:
		var inv ToolInvocation
		_ = json.Unmarshal(w.Content, &inv)
		return inv, nil
	case EventSearchResults:
		return SearchResults{Results: decodeSearchResults(w.Content)}, nil
	case EventCourseType:
		return CourseTypeChanged{CourseType: CourseType(decodeString(w.Content))}, nil
	case EventSuggestion:
		var s Suggestion
		_ = json.Unmarshal(w.Content, &s)
		return SuggestionAdded{Suggestion: s}, nil
	case EventID:
		return DocumentIDSet{ID: decodeString(w.Content)}, nil
	case EventTitle:
		return TitleSet{Title: decodeString(w.Content)}, nil
	case EventKind:
		return KindSet{Kind: decodeString(w.Content)}, nil
	case EventClear:
		return Clear{}, nil
	case EventFinish:
		return Finish{}, nil
	case EventError:
		return Failure{Message: decodeString(w.Content)}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, w.Type)
	}
}

func decodeString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// decodeSearchResults accepts only objects that carry a "results" field.
// Anything else becomes the default record.
func decodeSearchResults(raw json.RawMessage) *SearchResultSet {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return DefaultSearchResultSet()
	}
	if _, ok := fields["results"]; !ok {
		return DefaultSearchResultSet()
	}

	var set SearchResultSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return DefaultSearchResultSet()
	}
	if set.Results == nil {
		set.Results = []SearchResult{}
	}
	return &set
}
