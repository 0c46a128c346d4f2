package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/fleveque/course-service/internal/artifact"
	"github.com/fleveque/course-service/internal/client"
	"github.com/fleveque/course-service/internal/model"
)

func testPrinter(opts streamOptions) (*printer, *bytes.Buffer, *bytes.Buffer) {
	color.NoColor = true
	var stdout, stderr bytes.Buffer
	p := newPrinter(opts, artifact.NewState())
	p.stdout = &stdout
	p.stderr = &stderr
	return p, &stdout, &stderr
}

func TestPrinter_StreamsRawContent(t *testing.T) {
	p, stdout, stderr := testPrinter(streamOptions{})

	events := []model.StreamEvent{
		model.DocumentIDSet{ID: "doc-1"},
		model.CourseTypeChanged{CourseType: model.CourseOutline},
		model.ToolInvocation{ToolName: "tavilySearch", Args: json.RawMessage(`{"query":"cni plugins"}`)},
		model.SearchResults{Results: &model.SearchResultSet{Results: []model.SearchResult{{Title: "a"}, {Title: "b"}}}},
		model.TextDelta{Text: "# Go\n"},
		model.TextDelta{Text: "body"},
		model.Finish{},
	}
	for _, ev := range events {
		if err := p.handle(ev); err != nil {
			t.Fatalf("handling %s: %v", ev.Type(), err)
		}
	}
	if err := p.done(nil); err != nil {
		t.Fatalf("done: %v", err)
	}

	if stdout.String() != "# Go\nbody\n" {
		t.Errorf("unexpected stdout %q", stdout.String())
	}
	for _, want := range []string{"document doc-1", "course type: outline", `searching the web: "cni plugins"`, "2 sources found", "id: doc-1"} {
		if !strings.Contains(stderr.String(), want) {
			t.Errorf("expected %q in status output:\n%s", want, stderr.String())
		}
	}
}

func TestPrinter_WritesOutputFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "course.md")
	p, _, _ := testPrinter(streamOptions{out: out})

	p.handle(model.Clear{})
	p.handle(model.TextDelta{Text: "# Saved"})
	if err := p.done(nil); err != nil {
		t.Fatalf("done: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil || string(data) != "# Saved" {
		t.Errorf("expected file content, got %q, %v", data, err)
	}
}

func TestPrinter_DoneReportsAPIErrorMessage(t *testing.T) {
	p, _, _ := testPrinter(streamOptions{})

	err := p.done(&client.APIError{StatusCode: 409, Message: "a generation is already in progress for this document"})
	if err == nil || err.Error() != "a generation is already in progress for this document" {
		t.Errorf("unexpected error %v", err)
	}

	generationErr := p.done(client.ErrGenerationFailed)
	if !errors.Is(generationErr, client.ErrGenerationFailed) {
		t.Errorf("expected generation error passed through, got %v", generationErr)
	}
}
