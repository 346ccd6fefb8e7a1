package parser

import "os"

// parseText reads plain text and markdown files verbatim.
func parseText(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}
