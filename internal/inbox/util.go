package inbox

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// decodeBase64JSON decodes a base64-encoded JSON blob into T — the
// uniform payload encoding the messaging substrate uses throughout
// (spec §4.9 "uniform base64-JSON decoding for payloads").
func decodeBase64JSON[T any](encoded string) (T, error) {
	var zero T
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return zero, fmt.Errorf("decode base64: %w", err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, fmt.Errorf("decode json: %w", err)
	}
	return out, nil
}
