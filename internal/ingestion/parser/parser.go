// Package parser extracts plain text from an uploaded file, dispatching
// by content type. Used by the C3 document pipeline's extract step.
package parser

import (
	"fmt"
	"strings"
)

// Extract routes to the parser matching contentType and returns the
// extracted text. An empty result is itself an error — callers decide
// the failure kind (spec §9: a PDF yielding nothing fails InvalidPayload).
func Extract(path, contentType string) (string, error) {
	var text string
	var err error

	switch {
	case contentType == "application/pdf":
		text, err = parsePDF(path)
	case contentType == "application/vnd.openxmlformats-officedocument.wordprocessingml.document" || contentType == "application/msword":
		text, err = parseDOCX(path)
	case contentType == "text/html" || contentType == "application/xhtml+xml":
		text, err = parseHTML(path)
	case strings.HasPrefix(contentType, "text/"):
		text, err = parseText(path)
	default:
		return "", fmt.Errorf("unsupported content type: %s", contentType)
	}
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("no text extracted from %s", path)
	}
	return text, nil
}
