package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fleveque/course-service/internal/artifact"
	"github.com/fleveque/course-service/internal/model"
	"github.com/fleveque/course-service/internal/search"
)

func showCmd(a *app) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a document with its metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := a.client.Get(cmd.Context(), args[0])
			if err != nil {
				return describe(err)
			}

			doc := view.State.Document
			meta := view.State.Metadata
			infoColor.Fprintf(os.Stderr, "%s · %s · %d words · %d suggestions\n",
				view.DisplayTitle, view.CourseTypeLabel, view.Stats.EstimatedWords, len(meta.Suggestions))
			if doc.Status == model.StatusStreaming {
				warnColor.Fprintln(os.Stderr, "still generating; content is partial")
			}

			if raw {
				fmt.Println(doc.Content)
			} else if err := renderMarkdown(os.Stdout, doc.Content); err != nil {
				return err
			}

			for _, s := range meta.Suggestions {
				printSuggestion(os.Stdout, s)
			}
			if meta.SearchResults != nil && len(meta.SearchResults.Results) > 0 {
				infoColor.Fprintf(os.Stdout, "\nSources for %q:\n", meta.SearchResults.Query)
				for _, r := range meta.SearchResults.Results {
					fmt.Printf("  • %s\n    %s\n", r.Title, r.URL)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print markdown without rendering")
	return cmd
}

func listCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recently updated documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := a.client.List(cmd.Context(), limit)
			if err != nil {
				return describe(err)
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTYPE\tUPDATED\tTITLE")
			for _, d := range docs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.ID, d.CourseType, d.UpdatedAt.Local().Format("2006-01-02 15:04"), d.Title)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of documents")
	return cmd
}

func versionsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "versions <id> [version]",
		Short: "List saved versions, or print one",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 2 {
				n, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("version must be a number: %w", err)
				}
				v, err := a.client.Version(cmd.Context(), args[0], n)
				if err != nil {
					return describe(err)
				}
				fmt.Println(v.Content)
				return nil
			}

			versions, err := a.client.Versions(cmd.Context(), args[0])
			if err != nil {
				return describe(err)
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VERSION\tTYPE\tCHARS\tCREATED\tTITLE")
			for _, v := range versions {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", v.Version, v.CourseType, v.Characters, v.CreatedAt.Local().Format("2006-01-02 15:04"), v.Title)
			}
			return tw.Flush()
		},
	}
}

func outlineCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "outline <id>",
		Short: "Print the heading outline of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := a.client.Get(cmd.Context(), args[0])
			if err != nil {
				return describe(err)
			}
			successColor.Println(view.DisplayTitle)
			for _, h := range artifact.Outline(view.State.Document.Content) {
				fmt.Printf("%s%s\n", strings.Repeat("  ", h.Level-1), h.Text)
			}
			return nil
		},
	}
}

func exportCmd(a *app) *cobra.Command {
	var format, out string
	var version int
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Download a document as markdown or printable HTML",
		Long: `Download the current content of a document. With --version, the markdown
file saved for that version is downloaded instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				name string
				data []byte
				err  error
			)
			switch {
			case version > 0 && format != "md" && format != "markdown":
				return fmt.Errorf("--version exports markdown only")
			case version > 0:
				name, data, err = a.client.VersionDownload(cmd.Context(), args[0], version)
			case format == "md" || format == "markdown":
				name, data, err = a.client.Download(cmd.Context(), args[0])
			case format == "html":
				data, err = a.client.Print(cmd.Context(), args[0])
				name = "technical-course.html"
			default:
				return fmt.Errorf("unknown format %q: use md or html", format)
			}
			if err != nil {
				return describe(err)
			}

			if out == "" {
				out = name
			}
			if out == "-" {
				_, err = os.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(out, data, 0644); err != nil {
				return fmt.Errorf("writing %s: %w", out, err)
			}
			successColor.Fprintf(os.Stderr, "✓ saved %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "md", "Export format: md or html")
	cmd.Flags().IntVar(&version, "version", 0, "Download the file saved for this version")
	cmd.Flags().StringVarP(&out, "out", "o", "", `Output file ("-" for stdout; default: server filename)`)
	return cmd
}

func deleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a document with its versions and exported files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.Delete(cmd.Context(), args[0]); err != nil {
				return describe(err)
			}
			successColor.Fprintf(os.Stderr, "✓ deleted %s\n", args[0])
			return nil
		},
	}
}

func searchCmd(a *app) *cobra.Command {
	var args search.ToolArgs
	var depth string
	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Run a web search through the service",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, words []string) error {
			args.Query = strings.Join(words, " ")
			args.SearchDepth = model.SearchDepth(depth)

			results, err := a.client.Search(cmd.Context(), args)
			if err != nil {
				return describe(err)
			}
			for i, r := range results.Results {
				successColor.Printf("%d. %s\n", i+1, r.Title)
				infoColor.Printf("   %s\n", r.URL)
				if r.Content != "" {
					fmt.Printf("   %s\n", oneLine(r.Content))
				}
			}
			for _, img := range results.Images {
				fmt.Printf("   image: %s\n", img)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&depth, "depth", "basic", "Search depth: basic or advanced")
	cmd.Flags().IntVar(&args.MaxResults, "max-results", 5, "Number of results")
	cmd.Flags().BoolVar(&args.IncludeImages, "images", false, "Include image URLs")
	cmd.Flags().BoolVar(&args.IncludeRawContent, "raw-content", false, "Include raw page content")
	return cmd
}
