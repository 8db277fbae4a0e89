// Package vector provides topic-partitioned similarity search over
// embedded document fragments.
package vector

// Metadata describes where a fragment came from. Well-known fields are
// typed; Extra carries arbitrary caller-supplied keys.
type Metadata struct {
	Source     string
	Filename   string
	ChunkIndex int
	Extra      map[string]string
}

// Fragment is an immutable unit of retrievable text, as handed over by the
// ingestion front end. Its embedding travels separately (see Store.Add).
type Fragment struct {
	Content  string
	Metadata Metadata
}

// Document is a fragment with its id and embedding, as stored by a backend.
type Document struct {
	ID       string
	Content  string
	Vector   []float32
	Metadata Metadata
}

// Hit is a raw match from a single collection. Distance is the backend's
// native metric in [0, ~2] for normalized vectors; smaller is closer.
type Hit struct {
	Document
	Distance float32
}

// SearchResult is a scored match tagged with its originating collection.
// Score is 1 - distance, clamped to [0,1]; it orders results but is not a
// calibrated probability.
type SearchResult struct {
	Content  string
	Metadata Metadata
	Source   string
	Score    float64
}

// CollectionStats reports per-collection counts.
type CollectionStats struct {
	Count uint64 `json:"count"`
}
