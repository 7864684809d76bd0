// Package chunker splits extracted text into overlapping, indexed windows.
package chunker

import (
	"errors"
	"strings"

	"docrag/internal/pkg/textclean"
)

const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

var ErrEmptyInput = errors.New("no text to split")

// Chunk is one window of the source text. Start and End are character
// offsets into the sanitized, trimmed source.
type Chunk struct {
	Text  string
	Start int
	End   int
	Index int
}

// Split cuts text into windows of size characters advancing by size-overlap.
// Windows holding only whitespace are skipped and do not consume an index.
func Split(text string, size, overlap int) ([]Chunk, error) {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 2
	}

	runes := []rune(strings.TrimSpace(textclean.Sanitize(text)))
	if len(runes) == 0 {
		return nil, ErrEmptyInput
	}

	var chunks []Chunk
	for i := 0; i < len(runes); i += size - overlap {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		window := string(runes[i:end])
		if strings.TrimSpace(window) == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			Text:  window,
			Start: i,
			End:   end,
			Index: len(chunks),
		})
	}
	return chunks, nil
}
