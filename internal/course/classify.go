package course

import (
	"regexp"
	"strings"

	"github.com/fleveque/course-service/internal/model"
)

// topicNoise is stripped from a title, in order, first occurrence of each.
var topicNoise = []*regexp.Regexp{
	regexp.MustCompile(`(?i)create a new`),
	regexp.MustCompile(`(?i)full technical course`),
	regexp.MustCompile(`(?i)technical course outline`),
	regexp.MustCompile(`(?i)outline`),
	regexp.MustCompile(`(?i)course`),
}

// IsOutline reports whether a title asks for an outline rather than a full course.
func IsOutline(title string) bool {
	return strings.Contains(strings.ToLower(title), "outline")
}

// CourseTypeFor maps a title to its course type.
func CourseTypeFor(title string) model.CourseType {
	if IsOutline(title) {
		return model.CourseOutline
	}
	return model.CourseFull
}

// ExtractTopic strips request phrasing from a title. When nothing is left the
// raw title is the topic.
func ExtractTopic(title string) string {
	topic := title
	for _, re := range topicNoise {
		if loc := re.FindStringIndex(topic); loc != nil {
			topic = topic[:loc[0]] + topic[loc[1]:]
		}
	}
	topic = strings.TrimSpace(strings.ReplaceAll(topic, "?", ""))
	if topic == "" {
		return title
	}
	return topic
}

// IsOutlineToFull reports whether an update turns an outline into a full course.
func IsOutlineToFull(instruction, content string) bool {
	return strings.Contains(strings.ToLower(instruction), "full course") &&
		strings.Contains(strings.ToLower(content), "outline")
}
