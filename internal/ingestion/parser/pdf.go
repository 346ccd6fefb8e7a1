package parser

import (
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// parsePDF extracts text from a PDF file using go-fitz (MuPDF bindings).
func parsePDF(path string) (string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	var sb strings.Builder
	pages := doc.NumPage()
	for i := 0; i < pages; i++ {
		pageText, err := doc.Text(i)
		if err != nil {
			continue
		}
		sb.WriteString(pageText)
		if i < pages-1 {
			sb.WriteString("\n\n")
		}
	}
	return sb.String(), nil
}
