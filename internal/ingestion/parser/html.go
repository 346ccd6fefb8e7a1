package parser

import (
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// parseHTML extracts text from an HTML file, discarding script/style/noscript.
func parseHTML(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open html: %w", err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript").Remove()

	text := doc.Text()
	// Collapse the runs of whitespace goquery's raw .Text() leaves behind.
	lines := strings.Split(text, "\n")
	var kept []string
	for _, l := range lines {
		if t := strings.TrimSpace(l); t != "" {
			kept = append(kept, t)
		}
	}
	return strings.Join(kept, "\n"), nil
}

// extractMarkdownish renders an HTML document's body into a lightweight
// markdown-ish text used by the crawl engine (headings as "# ", the rest
// as plain paragraphs) — not true markdown, but enough for the document
// pipeline to chunk meaningfully.
func extractMarkdownish(doc *goquery.Document) string {
	doc.Find("script, style, noscript").Remove()

	var sb strings.Builder
	doc.Find("h1, h2, h3, h4, h5, h6, p, li").Each(func(_ int, s *goquery.Selection) {
		t := strings.TrimSpace(s.Text())
		if t == "" {
			return
		}
		tag := goquery.NodeName(s)
		if strings.HasPrefix(tag, "h") && len(tag) == 2 {
			sb.WriteString(strings.Repeat("#", int(tag[1]-'0')))
			sb.WriteString(" ")
		}
		sb.WriteString(t)
		sb.WriteString("\n\n")
	})
	return strings.TrimSpace(sb.String())
}

// ExtractMarkdownFromReader parses raw HTML bytes and returns the
// markdown-ish text plus the page title, for the crawl engine (C4).
func ExtractMarkdownFromReader(html string) (markdown, title string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", "", fmt.Errorf("parse html: %w", err)
	}
	title = strings.TrimSpace(doc.Find("title").First().Text())
	return extractMarkdownish(doc), title, nil
}
