package ingestion_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/deskwise/deskwise/internal/ingestion"
)

func TestChunkTextShortTextPassesThrough(t *testing.T) {
	chunks := ingestion.ChunkText("short text", 1000, 200)
	assert.Len(t, chunks, 1)
	assert.Equal(t, "short text", chunks[0].Text)
}

func TestChunkTextSplitsLongTextWithOverlap(t *testing.T) {
	para := strings.Repeat("word ", 50) // ~250 chars
	text := strings.Join([]string{para, para, para, para, para}, "\n\n")

	chunks := ingestion.ChunkText(text, 300, 50)
	assert.Greater(t, len(chunks), 1, "text longer than chunkSize should split")
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
	}
}

func TestChunkTextNeverProducesEmptyChunksForNonEmptyInput(t *testing.T) {
	text := strings.Repeat("a", 5000)
	chunks := ingestion.ChunkText(text, 1000, 200)
	for _, c := range chunks {
		assert.NotEmpty(t, c.Text)
	}
}
