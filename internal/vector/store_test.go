package vector

import (
	"context"
	"errors"
	"testing"
)

// fakeCollection returns canned hits or a canned error.
type fakeCollection struct {
	hits     []Hit
	err      error
	count    uint64
	resets   int
	upserted []Document
}

func (f *fakeCollection) Upsert(_ context.Context, docs []Document) error {
	if f.err != nil {
		return f.err
	}
	f.upserted = append(f.upserted, docs...)
	return nil
}

func (f *fakeCollection) Search(_ context.Context, _ []float32, topK int) ([]Hit, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.hits) > topK {
		return f.hits[:topK], nil
	}
	return f.hits, nil
}

func (f *fakeCollection) Count(_ context.Context) (uint64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.count, nil
}

func (f *fakeCollection) Reset(_ context.Context) error {
	if f.err != nil {
		return f.err
	}
	f.resets++
	return nil
}

func hit(content string, distance float32) Hit {
	return Hit{Document: Document{Content: content}, Distance: distance}
}

func TestSearch_FederatedMergeSortedAndTruncated(t *testing.T) {
	s := NewStore(nil)
	s.Register("A", &fakeCollection{hits: []Hit{hit("a1", 0.1), hit("a2", 0.5)}})
	s.Register("B", &fakeCollection{hits: []Hit{hit("b1", 0.2), hit("b2", 0.3), hit("b3", 0.9)}})

	results, err := s.Search(context.Background(), "", []float32{1}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	want := []string{"a1", "b1", "b2"} // scores 0.9, 0.8, 0.7
	for i, w := range want {
		if results[i].Content != w {
			t.Errorf("result %d: expected %q, got %q", i, w, results[i].Content)
		}
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not sorted by score descending at %d", i)
		}
	}
}

func TestSearch_EqualScoresKeepFirstSeenOrder(t *testing.T) {
	s := NewStore(nil)
	s.Register("A", &fakeCollection{hits: []Hit{hit("a1", 0.4), hit("a2", 0.4)}})
	s.Register("B", &fakeCollection{hits: []Hit{hit("b1", 0.4)}})

	results, err := s.Search(context.Background(), "", []float32{1}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := []string{"a1", "a2", "b1"}
	if len(results) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(results))
	}
	for i, w := range want {
		if results[i].Content != w {
			t.Errorf("tie-break broken at %d: expected %q, got %q", i, w, results[i].Content)
		}
	}
}

func TestSearch_ScoreBounds(t *testing.T) {
	// Distances at and beyond the cosine extremes must clamp into [0,1].
	s := NewStore(nil)
	s.Register("A", &fakeCollection{hits: []Hit{
		hit("exact", 0), hit("orthogonal", 1), hit("opposite", 2), hit("noisy", 2.1),
	}})

	results, err := s.Search(context.Background(), "A", []float32{1}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, r := range results {
		if r.Score < 0 || r.Score > 1 {
			t.Errorf("score %f for %q outside [0,1]", r.Score, r.Content)
		}
	}
	if results[0].Score != 1 {
		t.Errorf("exact match should score 1, got %f", results[0].Score)
	}
}

func TestSearch_KnownSourceOnly(t *testing.T) {
	s := NewStore(nil)
	s.Register("A", &fakeCollection{hits: []Hit{hit("a1", 0.1)}})
	s.Register("B", &fakeCollection{hits: []Hit{hit("b1", 0.05)}})

	results, err := s.Search(context.Background(), "A", []float32{1}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Content != "a1" {
		t.Errorf("expected only collection A results, got %v", results)
	}
	if results[0].Source != "A" {
		t.Errorf("expected source tag A, got %q", results[0].Source)
	}
}

func TestSearch_UnknownSourceSearchesAll(t *testing.T) {
	s := NewStore(nil)
	s.Register("A", &fakeCollection{hits: []Hit{hit("a1", 0.1)}})
	s.Register("B", &fakeCollection{hits: []Hit{hit("b1", 0.2)}})

	results, err := s.Search(context.Background(), "NOPE", []float32{1}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected results from all collections, got %d", len(results))
	}
}

func TestSearch_PartialFailureIsNonFatal(t *testing.T) {
	s := NewStore(nil)
	s.Register("A", &fakeCollection{hits: []Hit{hit("a1", 0.1)}})
	s.Register("B", &fakeCollection{err: errors.New("backend down")})
	s.Register("C", &fakeCollection{hits: []Hit{hit("c1", 0.2)}})

	results, err := s.Search(context.Background(), "", []float32{1}, 5)
	if err != nil {
		t.Fatalf("expected partial failure to be non-fatal, got %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results from surviving collections, got %d", len(results))
	}
}

func TestSearch_AllFailuresRaise(t *testing.T) {
	s := NewStore(nil)
	s.Register("A", &fakeCollection{err: errors.New("down")})
	s.Register("B", &fakeCollection{err: errors.New("down")})
	s.Register("C", &fakeCollection{err: errors.New("down")})

	_, err := s.Search(context.Background(), "", []float32{1}, 5)
	if !errors.Is(err, ErrSearchFailed) {
		t.Errorf("expected ErrSearchFailed, got %v", err)
	}
}

func TestAdd_UnknownSource(t *testing.T) {
	s := NewStore(nil)
	s.Register("A", &fakeCollection{})

	_, err := s.Add(context.Background(), "NOPE", []Fragment{{Content: "x"}}, [][]float32{{1}})
	if !errors.Is(err, ErrUnknownSource) {
		t.Errorf("expected ErrUnknownSource, got %v", err)
	}
}

func TestAdd_AssignsIDsAndSource(t *testing.T) {
	coll := &fakeCollection{}
	s := NewStore(nil)
	s.Register("A", coll)

	fragments := []Fragment{
		{Content: "one", Metadata: Metadata{Filename: "f.txt", ChunkIndex: 0}},
		{Content: "two", Metadata: Metadata{Filename: "f.txt", ChunkIndex: 1, Source: "WRONG"}},
	}
	ids, err := s.Add(context.Background(), "A", fragments, [][]float32{{1}, {2}})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(ids) != 2 || ids[0] == "" || ids[0] == ids[1] {
		t.Errorf("expected 2 distinct non-empty ids, got %v", ids)
	}
	for _, d := range coll.upserted {
		if d.Metadata.Source != "A" {
			t.Errorf("fragment source not stamped with collection key: %q", d.Metadata.Source)
		}
	}
}

func TestAdd_CountMismatch(t *testing.T) {
	s := NewStore(nil)
	s.Register("A", &fakeCollection{})
	if _, err := s.Add(context.Background(), "A", []Fragment{{Content: "x"}}, nil); err == nil {
		t.Error("expected error on fragment/vector count mismatch")
	}
}

func TestReset_UnknownSource(t *testing.T) {
	s := NewStore(nil)
	if err := s.Reset(context.Background(), "NOPE"); !errors.Is(err, ErrUnknownSource) {
		t.Errorf("expected ErrUnknownSource, got %v", err)
	}
}

func TestReset_Idempotent(t *testing.T) {
	coll := &fakeCollection{}
	s := NewStore(nil)
	s.Register("A", coll)

	for i := 0; i < 2; i++ {
		if err := s.Reset(context.Background(), "A"); err != nil {
			t.Fatalf("reset %d: %v", i+1, err)
		}
	}
	if coll.resets != 2 {
		t.Errorf("expected 2 resets, got %d", coll.resets)
	}
}

func TestStats(t *testing.T) {
	s := NewStore(nil)
	s.Register("A", &fakeCollection{count: 3})
	s.Register("B", &fakeCollection{count: 7})

	stats, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats["A"].Count != 3 || stats["B"].Count != 7 {
		t.Errorf("unexpected stats: %v", stats)
	}
}

func TestSources_RegistrationOrder(t *testing.T) {
	s := NewStore(nil)
	s.Register("B", &fakeCollection{})
	s.Register("A", &fakeCollection{})
	s.Register("B", &fakeCollection{}) // replacement keeps position

	got := s.Sources()
	want := []string{"B", "A"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected %v, got %v", want, got)
		}
	}
}
