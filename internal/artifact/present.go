package artifact

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// titleScanLines bounds how far into the content a title is looked for.
	titleScanLines = 10

	defaultTitle    = "Technical Course"
	defaultFilename = "technical-course"
)

var headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

// ExtractTitle scans the first ten lines for a "# " heading or a "Title:" line.
// Returns "" when neither is present.
func ExtractTitle(content string) string {
	lines := strings.SplitN(content, "\n", titleScanLines+1)
	if len(lines) > titleScanLines {
		lines = lines[:titleScanLines]
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
		if strings.HasPrefix(trimmed, "Title:") {
			return strings.TrimSpace(trimmed[len("Title:"):])
		}
	}
	return ""
}

// CourseTypeLabel is the coarse label shown next to the title.
func CourseTypeLabel(content string) string {
	if strings.Contains(content, "Full Course") {
		return "Full Course"
	}
	return "Course Outline"
}

// Heading is one entry of the course structure view.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// Outline lists the markdown headings of the content in document order.
func Outline(content string) []Heading {
	headings := []Heading{}
	for _, line := range strings.Split(content, "\n") {
		m := headingPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		headings = append(headings, Heading{
			Level: len(m[1]),
			Text:  strings.TrimSpace(m[2]),
		})
	}
	return headings
}

// Stats are the numbers on the metadata panel.
type Stats struct {
	Title          string `json:"title"`
	TypeLabel      string `json:"type_label"`
	Characters     int    `json:"characters"`
	EstimatedWords int    `json:"estimated_words"`
	HeadingCount   int    `json:"heading_count"`
}

// ComputeStats derives the metadata panel values from the content.
func ComputeStats(content string) Stats {
	return Stats{
		Title:          DisplayTitle(content),
		TypeLabel:      CourseTypeLabel(content),
		Characters:     utf8.RuneCountInString(content),
		EstimatedWords: len(strings.Fields(content)),
		HeadingCount:   len(Outline(content)),
	}
}

// DisplayTitle is ExtractTitle with the generic fallback used in headers.
func DisplayTitle(content string) string {
	if t := ExtractTitle(content); t != "" {
		return t
	}
	return defaultTitle
}

// View is a document's live state with its presentation fields. It is what
// the HTTP API returns for a document and what the CLI decodes, so it lives
// here rather than next to the service that builds it.
type View struct {
	State           State     `json:"state"`
	DisplayTitle    string    `json:"display_title"`
	CourseTypeLabel string    `json:"course_type_label"`
	Stats           Stats     `json:"stats"`
	Outline         []Heading `json:"outline"`
}

// NewView derives the presentation fields from a state snapshot.
func NewView(state State) *View {
	content := state.Document.Content
	return &View{
		State:           state,
		DisplayTitle:    DisplayTitle(content),
		CourseTypeLabel: CourseTypeLabel(content),
		Stats:           ComputeStats(content),
		Outline:         Outline(content),
	}
}
