package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fleveque/course-service/internal/artifact"
	"github.com/fleveque/course-service/internal/client"
	"github.com/fleveque/course-service/internal/model"
	"github.com/fleveque/course-service/internal/search"
)

var (
	infoColor    = color.New(color.FgCyan)
	successColor = color.New(color.FgGreen, color.Bold)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
)

// streamOptions are shared by every generating command.
type streamOptions struct {
	render bool
	out    string
}

func (o *streamOptions) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.render, "render", false, "Render the finished document instead of streaming raw markdown")
	cmd.Flags().StringVarP(&o.out, "out", "o", "", "Also write the finished document to this file")
}

// printer folds the stream into local state and reports progress: content
// on stdout, status lines on stderr.
type printer struct {
	opts    streamOptions
	stdout  io.Writer
	stderr  io.Writer
	store   *artifact.Store
	visible bool
}

func newPrinter(opts streamOptions, initial artifact.State) *printer {
	return &printer{
		opts:   opts,
		stdout: os.Stdout,
		stderr: os.Stderr,
		store:  artifact.NewStore(initial),
	}
}

func (p *printer) handle(ev model.StreamEvent) error {
	state := p.store.Apply(ev)

	switch e := ev.(type) {
	case model.DocumentIDSet:
		infoColor.Fprintf(p.stderr, "● document %s\n", e.ID)
	case model.CourseTypeChanged:
		infoColor.Fprintf(p.stderr, "● course type: %s\n", e.CourseType)
	case model.ToolInvocation:
		args, _ := search.ParseToolArgs(e.Args)
		infoColor.Fprintf(p.stderr, "\n● searching the web: %q\n", args.Query)
	case model.SearchResults:
		infoColor.Fprintf(p.stderr, "● %d sources found\n", len(e.Results.Results))
	case model.SuggestionAdded:
		printSuggestion(p.stdout, e.Suggestion)
	case model.TextDelta:
		if !p.opts.render {
			fmt.Fprint(p.stdout, e.Text)
		} else if state.Document.Visible && !p.visible {
			p.visible = true
			infoColor.Fprintln(p.stderr, "● writing...")
		}
	case model.Failure:
		errorColor.Fprintf(p.stderr, "\n✗ %s\n", e.Message)
	}
	return nil
}

// done prints the outcome once the stream has ended.
func (p *printer) done(err error) error {
	state := p.store.Snapshot()
	content := state.Document.Content

	if !p.opts.render && content != "" {
		fmt.Fprintln(p.stdout)
	}
	if err != nil {
		return describe(err)
	}

	if p.opts.render && content != "" {
		if err := renderMarkdown(p.stdout, content); err != nil {
			return err
		}
	}
	if p.opts.out != "" && content != "" {
		if err := os.WriteFile(p.opts.out, []byte(content), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", p.opts.out, err)
		}
		infoColor.Fprintf(p.stderr, "● saved to %s\n", p.opts.out)
	}

	stats := artifact.ComputeStats(content)
	if content != "" {
		successColor.Fprintf(p.stderr, "✓ %s (%s, %d words)\n", stats.Title, stats.TypeLabel, stats.EstimatedWords)
	} else {
		successColor.Fprintln(p.stderr, "✓ done")
	}
	if state.Document.ID != "" {
		infoColor.Fprintf(p.stderr, "  id: %s\n", state.Document.ID)
	}
	return nil
}

func renderMarkdown(w io.Writer, content string) error {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return fmt.Errorf("creating markdown renderer: %w", err)
	}
	out, err := r.Render(content)
	if err != nil {
		return fmt.Errorf("rendering markdown: %w", err)
	}
	_, err = fmt.Fprint(w, out)
	return err
}

func printSuggestion(w io.Writer, s model.Suggestion) {
	warnColor.Fprintf(w, "\n▸ %s\n", s.Description)
	fmt.Fprintf(w, "  - %s\n", oneLine(s.OriginalText))
	fmt.Fprintf(w, "  + %s\n", oneLine(s.SuggestedText))
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func createCmd(a *app) *cobra.Command {
	var opts streamOptions
	cmd := &cobra.Command{
		Use:   "create <title...>",
		Short: "Generate a new course outline or full course",
		Long: `Generate a new document. A title containing "outline" produces a
course outline; anything else produces a full course.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()

			p := newPrinter(opts, artifact.NewState())
			return p.done(a.client.Create(ctx, strings.Join(args, " "), p.handle))
		},
	}
	opts.bind(cmd)
	return cmd
}

func updateCmd(a *app) *cobra.Command {
	var opts streamOptions
	cmd := &cobra.Command{
		Use:   "update <id> <instruction...>",
		Short: "Rewrite a document following an instruction",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()

			p, err := a.printerFor(cmd, opts, args[0])
			if err != nil {
				return err
			}
			return p.done(a.client.Update(ctx, args[0], strings.Join(args[1:], " "), p.handle))
		},
	}
	opts.bind(cmd)
	return cmd
}

func actionCmd(a *app) *cobra.Command {
	var opts streamOptions
	cmd := &cobra.Command{
		Use:       "action <id> <full-course|outline|improve|suggestions>",
		Short:     "Run a toolbar action on a document",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"full-course", "outline", "improve", "suggestions"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()

			p, err := a.printerFor(cmd, opts, args[0])
			if err != nil {
				return err
			}
			return p.done(a.client.Action(ctx, args[0], args[1], p.handle))
		},
	}
	opts.bind(cmd)
	return cmd
}

func suggestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <id>",
		Short: "Ask for improvement suggestions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()

			p, err := a.printerFor(cmd, streamOptions{render: true}, args[0])
			if err != nil {
				return err
			}
			if err := a.client.Suggest(ctx, args[0], p.handle); err != nil {
				return describe(err)
			}
			n := len(p.store.Snapshot().Metadata.Suggestions)
			successColor.Fprintf(os.Stderr, "✓ %d suggestions in total\n", n)
			return nil
		},
	}
}

// printerFor seeds the local state with the document as the server has it,
// so a streamed update starts from the same place.
func (a *app) printerFor(cmd *cobra.Command, opts streamOptions, id string) (*printer, error) {
	view, err := a.client.Get(cmd.Context(), id)
	if err != nil {
		return nil, describe(err)
	}
	return newPrinter(opts, view.State), nil
}

// describe turns API errors into short messages.
func describe(err error) error {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s", apiErr.Message)
	}
	return err
}
