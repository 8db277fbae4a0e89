// Package chunker splits document text into overlapping fragments sized
// for embedding.
package chunker

import "strings"

const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

// Chunker is a character-window splitter. Window boundaries snap backwards
// to the nearest sentence or line break when one exists in the second half
// of the window, so fragments tend to end on natural boundaries.
type Chunker struct {
	size    int
	overlap int
}

// New creates a Chunker. A non-positive size and a negative overlap fall
// back to the defaults; zero overlap is kept as given. An overlap not
// smaller than size is clamped to size/5.
func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if overlap >= size {
		overlap = size / 5
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split breaks text into chunks of at most size runes, consecutive chunks
// sharing roughly overlap runes. Whitespace-only chunks are dropped.
func (c *Chunker) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + c.size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = snapToBoundary(runes, start, end)
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end == len(runes) {
			break
		}
		next := end - c.overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}

// snapToBoundary moves end backwards to just after the last sentence or
// line break in the second half of the window. Without one it returns end
// unchanged.
func snapToBoundary(runes []rune, start, end int) int {
	floor := start + (end-start)/2
	for i := end - 1; i > floor; i-- {
		switch runes[i] {
		case '.', '!', '?', '\n':
			return i + 1
		}
	}
	return end
}
