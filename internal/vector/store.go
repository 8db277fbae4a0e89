package vector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrUnknownSource is returned when an unconfigured topic key is given
	// to Add or Reset.
	ErrUnknownSource = errors.New("unknown source")
	// ErrSearchFailed is returned only when every searched collection
	// failed; partial failures are logged and skipped.
	ErrSearchFailed = errors.New("search failed for all collections")
)

// Collection is a single similarity index.
type Collection interface {
	// Upsert inserts documents.
	Upsert(ctx context.Context, docs []Document) error
	// Search finds the topK nearest documents.
	Search(ctx context.Context, vector []float32, topK int) ([]Hit, error)
	// Count returns the number of stored documents.
	Count(ctx context.Context) (uint64, error)
	// Reset destroys and recreates the index empty. Idempotent.
	Reset(ctx context.Context) error
}

// Store federates one Collection per configured source key. Registration
// order is preserved: it fixes the merge order and therefore the tie-break
// for equal scores.
type Store struct {
	logger *slog.Logger

	mu          sync.RWMutex
	order       []string
	collections map[string]Collection
}

// NewStore creates an empty Store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		logger:      logger,
		collections: make(map[string]Collection),
	}
}

// Register adds a collection under the given source key. Registering an
// existing key replaces its collection.
func (s *Store) Register(source string, c Collection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[source]; !ok {
		s.order = append(s.order, source)
	}
	s.collections[source] = c
}

// Sources returns the registered source keys in registration order.
func (s *Store) Sources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Add stores fragments with their embeddings under the given source. Each
// fragment receives a fresh unique id, returned in input order. Atomicity
// is per-fragment: a failed batch may leave earlier fragments inserted.
func (s *Store) Add(ctx context.Context, source string, fragments []Fragment, vectors [][]float32) ([]string, error) {
	if len(fragments) != len(vectors) {
		return nil, fmt.Errorf("fragment/vector count mismatch: %d vs %d", len(fragments), len(vectors))
	}

	s.mu.RLock()
	coll, ok := s.collections[source]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}

	ids := make([]string, len(fragments))
	docs := make([]Document, len(fragments))
	for i, f := range fragments {
		meta := f.Metadata
		meta.Source = source // every fragment carries its collection's key
		ids[i] = uuid.NewString()
		docs[i] = Document{
			ID:       ids[i],
			Content:  f.Content,
			Vector:   vectors[i],
			Metadata: meta,
		}
	}

	if err := coll.Upsert(ctx, docs); err != nil {
		return nil, fmt.Errorf("adding to %s: %w", source, err)
	}
	s.logger.Info("added fragments", "source", source, "count", len(docs))
	return ids, nil
}

// Search runs a nearest-neighbor query. A known source restricts the search
// to that collection; an empty or unknown source searches every collection
// (up to topK each), merges, re-sorts by score descending, and truncates to
// topK. Equal scores keep first-seen order. A collection failure is
// non-fatal unless every collection fails.
func (s *Store) Search(ctx context.Context, source string, vec []float32, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	targets := make([]string, 0, len(s.order))
	if _, ok := s.collections[source]; source != "" && ok {
		targets = append(targets, source)
	} else {
		targets = append(targets, s.order...)
	}
	collections := make(map[string]Collection, len(targets))
	for _, key := range targets {
		collections[key] = s.collections[key]
	}
	s.mu.RUnlock()

	if len(targets) == 0 {
		return nil, nil
	}

	var merged []SearchResult
	failures := 0
	for _, key := range targets {
		hits, err := collections[key].Search(ctx, vec, topK)
		if err != nil {
			failures++
			s.logger.Warn("collection search failed", "source", key, "error", err)
			continue
		}
		for _, h := range hits {
			meta := h.Metadata
			meta.Source = key
			merged = append(merged, SearchResult{
				Content:  h.Content,
				Metadata: meta,
				Source:   key,
				Score:    scoreFromDistance(h.Distance),
			})
		}
	}

	if failures == len(targets) {
		return nil, fmt.Errorf("%w (%d collections)", ErrSearchFailed, failures)
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged, nil
}

// Stats returns per-source document counts.
func (s *Store) Stats(ctx context.Context) (map[string]CollectionStats, error) {
	s.mu.RLock()
	order := make([]string, len(s.order))
	copy(order, s.order)
	collections := make(map[string]Collection, len(s.collections))
	for k, v := range s.collections {
		collections[k] = v
	}
	s.mu.RUnlock()

	stats := make(map[string]CollectionStats, len(order))
	for _, key := range order {
		count, err := collections[key].Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("counting %s: %w", key, err)
		}
		stats[key] = CollectionStats{Count: count}
	}
	return stats, nil
}

// Reset destroys and recreates the named collection empty.
func (s *Store) Reset(ctx context.Context, source string) error {
	s.mu.RLock()
	coll, ok := s.collections[source]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}
	if err := coll.Reset(ctx); err != nil {
		return fmt.Errorf("resetting %s: %w", source, err)
	}
	s.logger.Info("collection reset", "source", source)
	return nil
}

// scoreFromDistance converts a native distance in [0, ~2] to a similarity
// score in [0, 1].
func scoreFromDistance(d float32) float64 {
	score := 1 - float64(d)
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
