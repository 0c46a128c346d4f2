package model

// SearchDepth controls how thorough a web search is.
type SearchDepth string

const (
	DepthBasic    SearchDepth = "basic"
	DepthAdvanced SearchDepth = "advanced"
)

// DefaultMaxResults is used when a search does not ask for a result count.
const DefaultMaxResults = 5

// SearchResult is one ranked hit. Score is a relevance value in [0,1].
type SearchResult struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
	RawContent    string  `json:"raw_content,omitempty"`
	PublishedDate string  `json:"published_date,omitempty"`
}

// SearchResultSet is an immutable search response. A new search replaces it wholesale.
type SearchResultSet struct {
	Query             string         `json:"query"`
	SearchDepth       SearchDepth    `json:"search_depth"`
	MaxResults        int            `json:"max_results"`
	IncludeRawContent bool           `json:"include_raw_content"`
	IncludeImages     bool           `json:"include_images"`
	Results           []SearchResult `json:"results"`
	Images            []string       `json:"images,omitempty"`
	ResponseTime      float64        `json:"response_time,omitempty"`
}

// DefaultSearchResultSet is the empty record that stands in for a malformed payload.
func DefaultSearchResultSet() *SearchResultSet {
	return &SearchResultSet{
		Query:       "",
		SearchDepth: DepthBasic,
		MaxResults:  DefaultMaxResults,
		Results:     []SearchResult{},
	}
}
