// Package chunk splits normalized text into overlapping word-count
// windows for embedding.
package chunk

import (
	"fmt"
	"strings"
)

// Default window parameters, overridable through CHUNK_SIZE and
// CHUNK_OVERLAP.
const (
	DefaultSize    = 500
	DefaultOverlap = 50
)

// Split cuts text into windows of size words, starting a new window every
// size-overlap words. Windows that trim to the empty string are dropped.
// The result is a pure function of the input.
//
// overlap must satisfy 0 <= overlap < size; anything else would loop
// forever or duplicate without bound, so it is rejected outright.
func Split(text string, size, overlap int) ([]string, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk: size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk: overlap must be in [0,%d), got %d", size, overlap)
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, nil
	}

	// A window starting at or past len(words)-overlap would only repeat
	// words the previous window already carries, so generation stops
	// there. The floor of 1 keeps texts of overlap words or fewer as a
	// single window. For w > overlap words this yields
	// ceil((w-overlap)/step) chunks.
	limit := len(words) - overlap
	if limit < 1 {
		limit = 1
	}
	step := size - overlap
	var chunks []string
	for i := 0; i < limit; i += step {
		end := i + size
		if end > len(words) {
			end = len(words)
		}
		c := strings.TrimSpace(strings.Join(words[i:end], " "))
		if c != "" {
			chunks = append(chunks, c)
		}
	}
	return chunks, nil
}
