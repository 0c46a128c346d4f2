package course

import (
	"fmt"

	"github.com/fleveque/course-service/internal/model"
)

// Action is a toolbar shortcut resolved into a regular generation request.
type Action struct {
	Operation model.Operation
	// Text is the title of a new document for create, the instruction for update.
	Text string
}

// ResolveAction maps a toolbar action name to a request against a document
// with the given display title. The bool is false for unknown actions.
func ResolveAction(name, title string) (Action, bool) {
	switch name {
	case "full-course":
		return Action{
			Operation: model.OperationUpdate,
			Text:      "Expand this outline into a full course with complete content for every module.",
		}, true
	case "outline":
		return Action{
			Operation: model.OperationCreate,
			Text:      fmt.Sprintf("Create a New Technical Course Outline: %s", title),
		}, true
	case "improve":
		return Action{
			Operation: model.OperationUpdate,
			Text:      "Please improve the course content with more detailed explanations and examples.",
		}, true
	case "suggestions":
		return Action{Operation: model.OperationSuggest}, true
	}
	return Action{}, false
}
