package parser

import (
	"fmt"

	"github.com/nguyenthenguyen/docx"
)

// parseDOCX extracts text from a Word (.docx) file.
func parseDOCX(path string) (string, error) {
	doc, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer doc.Close()
	return doc.Editable().GetContent(), nil
}
