// internal/render/markdown.go
package render

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
	"github.com/russross/blackfriday/v2"
)

// Markdown renders chapter descriptions and markdown entries to HTML.
type Markdown struct {
	extensions blackfriday.Extensions
}

func NewMarkdown() *Markdown {
	return &Markdown{extensions: blackfriday.CommonExtensions | blackfriday.AutoHeadingIDs}
}

// Render returns the HTML for markdown. Empty input renders to an empty string.
func (m *Markdown) Render(markdown string) string {
	if strings.TrimSpace(markdown) == "" {
		return ""
	}
	input := strings.ReplaceAll(markdown, "\r\n", "\n")
	return string(blackfriday.Run([]byte(input), blackfriday.WithExtensions(m.extensions)))
}

// PlainText strips the markup from rendered HTML and collapses whitespace.
func PlainText(html string) (string, error) {
	if html == "" {
		return "", nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", errors.Wrap(err, "failed to parse rendered html")
	}
	return strings.Join(strings.Fields(doc.Text()), " "), nil
}

// Summary renders markdown and returns both the HTML and its plain text.
func (m *Markdown) Summary(markdown string) (html, text string, err error) {
	html = m.Render(markdown)
	text, err = PlainText(html)
	return html, text, err
}
