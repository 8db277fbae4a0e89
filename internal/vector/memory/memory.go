// Package memory provides a brute-force in-memory Collection, used for
// development and tests.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/luminant-labs/ragline/internal/vector"
)

// Collection is an in-memory similarity index using cosine distance.
type Collection struct {
	dimension int

	mu   sync.RWMutex
	docs []vector.Document
}

// NewCollection creates an empty collection accepting vectors of the given
// dimension.
func NewCollection(dimension int) *Collection {
	return &Collection{dimension: dimension}
}

func (c *Collection) Upsert(_ context.Context, docs []vector.Document) error {
	for _, d := range docs {
		if len(d.Vector) != c.dimension {
			return fmt.Errorf("vector dimension %d, want %d", len(d.Vector), c.dimension)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs = append(c.docs, docs...)
	return nil
}

func (c *Collection) Search(_ context.Context, vec []float32, topK int) ([]vector.Hit, error) {
	if len(vec) != c.dimension {
		return nil, fmt.Errorf("query dimension %d, want %d", len(vec), c.dimension)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	hits := make([]vector.Hit, 0, len(c.docs))
	for _, d := range c.docs {
		hits = append(hits, vector.Hit{
			Document: d,
			Distance: cosineDistance(vec, d.Vector),
		})
	}
	// Stable: equal distances keep insertion order.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (c *Collection) Count(_ context.Context) (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return uint64(len(c.docs)), nil
}

func (c *Collection) Reset(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs = nil
	return nil
}

// cosineDistance returns 1 - cos(a, b), in [0, 2]. Zero vectors are treated
// as maximally distant from everything.
func cosineDistance(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return float32(1 - dot/(math.Sqrt(na)*math.Sqrt(nb)))
}

var _ vector.Collection = (*Collection)(nil)
