package memory

import (
	"context"
	"math"
	"testing"

	"github.com/luminant-labs/ragline/internal/vector"
)

func doc(id string, vec ...float32) vector.Document {
	return vector.Document{ID: id, Content: id, Vector: vec}
}

func TestSearch_NearestFirst(t *testing.T) {
	c := NewCollection(2)
	err := c.Upsert(context.Background(), []vector.Document{
		doc("east", 1, 0),
		doc("north", 0, 1),
		doc("northeast", 1, 1),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	hits, err := c.Search(context.Background(), []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].ID != "east" {
		t.Errorf("expected exact match first, got %q", hits[0].ID)
	}
	if hits[0].Distance > 1e-6 {
		t.Errorf("exact match distance should be ~0, got %f", hits[0].Distance)
	}
	if hits[1].ID != "northeast" {
		t.Errorf("expected northeast second, got %q", hits[1].ID)
	}
}

func TestSearch_OppositeVectorDistance(t *testing.T) {
	c := NewCollection(2)
	c.Upsert(context.Background(), []vector.Document{doc("west", -1, 0)})

	hits, _ := c.Search(context.Background(), []float32{1, 0}, 1)
	if math.Abs(float64(hits[0].Distance)-2) > 1e-6 {
		t.Errorf("opposite vectors should be distance 2, got %f", hits[0].Distance)
	}
}

func TestUpsert_DimensionMismatch(t *testing.T) {
	c := NewCollection(3)
	if err := c.Upsert(context.Background(), []vector.Document{doc("bad", 1, 0)}); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestSearch_QueryDimensionMismatch(t *testing.T) {
	c := NewCollection(3)
	if _, err := c.Search(context.Background(), []float32{1}, 1); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestReset_IdempotentAndEmpty(t *testing.T) {
	c := NewCollection(2)
	c.Upsert(context.Background(), []vector.Document{doc("a", 1, 0)})

	for i := 0; i < 2; i++ {
		if err := c.Reset(context.Background()); err != nil {
			t.Fatalf("reset %d: %v", i+1, err)
		}
		count, err := c.Count(context.Background())
		if err != nil {
			t.Fatalf("Count: %v", err)
		}
		if count != 0 {
			t.Errorf("reset %d: expected empty collection, got %d docs", i+1, count)
		}
	}
}

func TestCount(t *testing.T) {
	c := NewCollection(1)
	c.Upsert(context.Background(), []vector.Document{doc("a", 1), doc("b", 2)})
	count, _ := c.Count(context.Background())
	if count != 2 {
		t.Errorf("expected count 2, got %d", count)
	}
}
