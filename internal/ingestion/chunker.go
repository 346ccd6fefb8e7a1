package ingestion

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	wordPattern        = regexp.MustCompile(`\S+`)
	nonWordPunctuation = regexp.MustCompile(`[^\w\s]`)
)

// EstimateTokenCount approximates a chunk's token count as its word count
// plus half its non-word punctuation count, with a floor of 1 (spec §4.3
// step 3).
func EstimateTokenCount(text string) int {
	words := len(wordPattern.FindAllString(text, -1))
	punct := len(nonWordPunctuation.FindAllString(text, -1))
	count := words + punct/2
	if count < 1 {
		count = 1
	}
	return count
}

// Chunk is one piece of a recursively-split document.
type Chunk struct {
	Text  string
	Index int
}

// ChunkText recursively splits text into overlapping chunks, trying each
// separator in priority order before falling back to a hard rune split.
// Grounded on the recursive-splitter shape, generalized to the spec's
// defaults (chunkSize 1000, overlap 200).
func ChunkText(text string, chunkSize, overlap int) []Chunk {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}

	if utf8.RuneCountInString(text) <= chunkSize {
		return []Chunk{{Text: text, Index: 0}}
	}

	separators := []string{"\n\n", "\n", " ", ".", ",", ""}
	chunks := recursiveSplit(text, separators, chunkSize, overlap)
	for i := range chunks {
		chunks[i].Index = i
	}
	return chunks
}

func recursiveSplit(text string, separators []string, chunkSize, overlap int) []Chunk {
	if utf8.RuneCountInString(text) <= chunkSize {
		return []Chunk{{Text: text}}
	}

	var segments []string
	var usedSep string
	for _, sep := range separators {
		if sep == "" {
			segments = splitByRunes(text, chunkSize)
			usedSep = ""
			break
		}
		parts := strings.Split(text, sep)
		if len(parts) > 1 {
			segments = parts
			usedSep = sep
			break
		}
	}
	if len(segments) == 0 {
		return []Chunk{{Text: text}}
	}

	var chunks []Chunk
	var current strings.Builder
	for _, seg := range segments {
		candidate := current.String()
		if candidate != "" {
			candidate += usedSep
		}
		candidate += seg

		if utf8.RuneCountInString(candidate) > chunkSize && current.Len() > 0 {
			chunks = append(chunks, Chunk{Text: strings.TrimSpace(current.String())})

			tail := overlapTail(current.String(), overlap)
			current.Reset()
			if tail != "" {
				current.WriteString(tail)
				current.WriteString(usedSep)
			}
			current.WriteString(seg)
		} else {
			if current.Len() > 0 {
				current.WriteString(usedSep)
			}
			current.WriteString(seg)
		}
	}
	if current.Len() > 0 {
		chunks = append(chunks, Chunk{Text: strings.TrimSpace(current.String())})
	}
	return chunks
}

func overlapTail(s string, n int) string {
	runes := []rune(s)
	if n >= len(runes) {
		return s
	}
	return string(runes[len(runes)-n:])
}

func splitByRunes(text string, n int) []string {
	runes := []rune(text)
	var segments []string
	for i := 0; i < len(runes); i += n {
		end := i + n
		if end > len(runes) {
			end = len(runes)
		}
		segments = append(segments, string(runes[i:end]))
	}
	return segments
}
