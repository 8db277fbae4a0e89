package rag

import (
	"strings"
	"testing"

	"github.com/luminant-labs/ragline/internal/vector"
)

func result(source, filename, content string, score float64) vector.SearchResult {
	return vector.SearchResult{
		Content:  content,
		Source:   source,
		Score:    score,
		Metadata: vector.Metadata{Source: source, Filename: filename},
	}
}

func TestBuildContext_Empty(t *testing.T) {
	if got := BuildContext(nil); got != "" {
		t.Errorf("expected empty context, got %q", got)
	}
}

func TestBuildContext_NumberedHeaders(t *testing.T) {
	got := BuildContext([]vector.SearchResult{
		result("NEC", "article250.pdf", "Grounding requirements.", 0.91),
		result("WATTMONK", "handbook.txt", "Company policy text.", 0.4),
	})

	if !strings.Contains(got, "[Source 1: NEC - article250.pdf (Relevance: 0.91)]\nGrounding requirements.") {
		t.Errorf("first block malformed:\n%s", got)
	}
	if !strings.Contains(got, "[Source 2: WATTMONK - handbook.txt (Relevance: 0.40)]\nCompany policy text.") {
		t.Errorf("second block malformed:\n%s", got)
	}
	if !strings.Contains(got, "\n\n") {
		t.Error("blocks must be separated by a blank line")
	}
	if strings.Index(got, "Source 1") > strings.Index(got, "Source 2") {
		t.Error("blocks out of order")
	}
}

func TestBuildContext_MissingMetadata(t *testing.T) {
	got := BuildContext([]vector.SearchResult{result("", "", "text", 0.5)})
	if !strings.Contains(got, "Unknown - Unknown") {
		t.Errorf("missing metadata should render as Unknown, got %q", got)
	}
}

func TestFormatSources_PreviewTruncation(t *testing.T) {
	long := strings.Repeat("x", 300)
	short := "short content"
	sources := FormatSources([]vector.SearchResult{
		result("NEC", "a.pdf", long, 0.9),
		result("GENERAL", "b.txt", short, 0.5),
	})

	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}
	if want := strings.Repeat("x", 200) + "..."; sources[0].Preview != want {
		t.Errorf("long preview not truncated to 200+ellipsis, got %d chars", len(sources[0].Preview))
	}
	if sources[1].Preview != short {
		t.Errorf("short preview must be unmodified, got %q", sources[1].Preview)
	}
}

func TestFormatSources_PreservesOrderAndFields(t *testing.T) {
	in := []vector.SearchResult{
		{Content: "c1", Source: "NEC", Score: 0.9, Metadata: vector.Metadata{Source: "NEC", Filename: "f1", ChunkIndex: 3}},
		{Content: "c2", Source: "WATTMONK", Score: 0.8, Metadata: vector.Metadata{Source: "WATTMONK", Filename: "f2", ChunkIndex: 0}},
	}
	sources := FormatSources(in)
	if sources[0].Source != "NEC" || sources[0].ChunkIndex != 3 || sources[0].Score != 0.9 {
		t.Errorf("first source mismatch: %+v", sources[0])
	}
	if sources[1].Filename != "f2" {
		t.Errorf("second source mismatch: %+v", sources[1])
	}
}
