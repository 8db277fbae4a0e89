package rag

import (
	"fmt"
	"strings"

	"github.com/luminant-labs/ragline/internal/vector"
)

// previewLength caps the fragment excerpt attached to each cited source.
const previewLength = 200

// Source describes one retrieved fragment as cited in a query response.
type Source struct {
	Source     string  `json:"source"`
	Filename   string  `json:"filename"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"relevance_score"`
	Preview    string  `json:"preview"`
}

// BuildContext renders retrieved fragments into the prompt context block.
// Fragments appear in input order, each under a numbered header, separated
// by blank lines. No results yields the empty string.
func BuildContext(results []vector.SearchResult) string {
	if len(results) == 0 {
		return ""
	}

	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = fmt.Sprintf("[Source %d: %s - %s (Relevance: %.2f)]\n%s\n",
			i+1, displayOrUnknown(r.Metadata.Source), displayOrUnknown(r.Metadata.Filename), r.Score, r.Content)
	}
	return strings.Join(parts, "\n")
}

// FormatSources converts retrieved fragments into response citations,
// preserving input order.
func FormatSources(results []vector.SearchResult) []Source {
	sources := make([]Source, len(results))
	for i, r := range results {
		sources[i] = Source{
			Source:     displayOrUnknown(r.Metadata.Source),
			Filename:   displayOrUnknown(r.Metadata.Filename),
			ChunkIndex: r.Metadata.ChunkIndex,
			Score:      r.Score,
			Preview:    preview(r.Content),
		}
	}
	return sources
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLength {
		return content
	}
	return string(runes[:previewLength]) + "..."
}

func displayOrUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
