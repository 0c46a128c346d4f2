package artifact

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// markdown is safe for concurrent use once built.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(gmhtml.WithXHTML()),
)

// unsafeFilenameChars are replaced when the title becomes a filename.
var unsafeFilenameChars = regexp.MustCompile(`[/\\:*?"<>|\x00-\x1f]+`)

// DownloadFilename is the markdown filename offered for download.
func DownloadFilename(content string) string {
	name := ExtractTitle(content)
	name = strings.TrimSpace(unsafeFilenameChars.ReplaceAllString(name, "-"))
	if name == "" {
		name = defaultFilename
	}
	return name + ".md"
}

const printTemplate = `<html>
  <head>
    <title>%s</title>
    <style>
      body { font-family: Arial, sans-serif; line-height: 1.6; padding: 20px; }
      h1, h2, h3, h4, h5, h6 { margin-top: 24px; margin-bottom: 16px; }
      p { margin-bottom: 16px; }
      ul, ol { margin-bottom: 16px; padding-left: 24px; }
      table { border-collapse: collapse; width: 100%%; margin-bottom: 16px; }
      th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
      th { background-color: #f2f2f2; }
      @media print {
        @page { margin: 2cm; }
      }
    </style>
  </head>
  <body>
    <div class="markdown-content">%s</div>
  </body>
</html>
`

// RenderHTML converts the content into a standalone printable page.
func RenderHTML(content string) ([]byte, error) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(content), &body); err != nil {
		return nil, fmt.Errorf("rendering markdown: %w", err)
	}

	page := fmt.Sprintf(printTemplate, html.EscapeString(DisplayTitle(content)), body.String())
	return []byte(page), nil
}
