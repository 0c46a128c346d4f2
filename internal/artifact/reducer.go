// Package artifact folds the generation event stream into document state
// and derives the read-only views a client renders from that state.
//
// Reduce is a pure function: (state, event) -> state'. Store wraps it with a
// mutex so one reducer instance can be shared between the goroutine applying
// events and the HTTP handlers reading snapshots.
package artifact

import (
	"sync"
	"unicode/utf8"

	"github.com/fleveque/course-service/internal/model"
)

// The content length band in which a streaming document is first revealed.
const (
	revealAfter  = 400
	revealBefore = 450
)

// Document is the client's view of the artifact being generated.
type Document struct {
	ID      string               `json:"id"`
	Title   string               `json:"title"`
	Kind    string               `json:"kind"`
	Content string               `json:"content"`
	Status  model.DocumentStatus `json:"status"`
	// Visible flips to true once, the first time the content length enters
	// the reveal band, and never goes back.
	Visible bool `json:"is_visible"`
}

// Metadata is the side-channel state carried next to the content.
type Metadata struct {
	Suggestions   []model.Suggestion     `json:"suggestions"`
	SearchResults *model.SearchResultSet `json:"search_results"`
	SearchVisible bool                   `json:"is_search_visible"`
	CourseType    model.CourseType       `json:"course_type"`
}

// State is everything the reducer owns for one open document.
type State struct {
	Document  Document `json:"document"`
	Metadata  Metadata `json:"metadata"`
	LastError string   `json:"last_error,omitempty"`
}

// NewState returns the initial state of a freshly opened document.
func NewState() State {
	return State{
		Document: Document{
			Kind:   model.KindTechnicalCourse,
			Status: model.StatusIdle,
		},
		Metadata: Metadata{
			Suggestions: []model.Suggestion{},
			CourseType:  model.CourseOutline,
		},
	}
}

// Reduce applies one event. Every event has a defined effect; nothing here
// can fail. Slices are copied on append so earlier states stay unchanged.
func Reduce(s State, ev model.StreamEvent) State {
	switch e := ev.(type) {
	case model.TextDelta:
		s.Document.Content += e.Text
		s.Document.Status = model.StatusStreaming
		if !s.Document.Visible {
			n := utf8.RuneCountInString(s.Document.Content)
			if n > revealAfter && n < revealBefore {
				s.Document.Visible = true
			}
		}

	case model.SearchResults:
		if e.Results == nil {
			s.Metadata.SearchResults = model.DefaultSearchResultSet()
		} else {
			s.Metadata.SearchResults = e.Results
		}

	case model.CourseTypeChanged:
		s.Metadata.CourseType = e.CourseType

	case model.SuggestionAdded:
		suggestions := make([]model.Suggestion, len(s.Metadata.Suggestions), len(s.Metadata.Suggestions)+1)
		copy(suggestions, s.Metadata.Suggestions)
		s.Metadata.Suggestions = append(suggestions, e.Suggestion)

	case model.DocumentIDSet:
		s.Document.ID = e.ID

	case model.TitleSet:
		s.Document.Title = e.Title

	case model.KindSet:
		s.Document.Kind = e.Kind

	case model.Clear:
		s.Document.Content = ""
		s.Document.Status = model.StatusStreaming
		s.LastError = ""

	case model.Finish:
		s.Document.Status = model.StatusIdle

	case model.Failure:
		s.Document.Status = model.StatusIdle
		s.LastError = e.Message

	case model.ToolInvocation:
		// Announcement only; the result arrives as a search-results event.
	}
	return s
}

// ToggleSearchVisible flips the search panel. It is one of the two user
// actions that write state outside the event stream.
func ToggleSearchVisible(s State) State {
	s.Metadata.SearchVisible = !s.Metadata.SearchVisible
	return s
}

// Store holds the state of one open document and applies events to it in
// arrival order.
type Store struct {
	mu    sync.RWMutex
	state State
}

// NewStore creates a store seeded with the given state.
func NewStore(initial State) *Store {
	return &Store{state: initial}
}

// Apply folds ev into the stored state and returns the new state.
func (s *Store) Apply(ev model.StreamEvent) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Reduce(s.state, ev)
	return s.state
}

// ToggleSearchVisible flips the search panel visibility.
func (s *Store) ToggleSearchVisible() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = ToggleSearchVisible(s.state)
	return s.state
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}
