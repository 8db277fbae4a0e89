package rag

import "errors"

var (
	// ErrEmbedding wraps embedding provider failures.
	ErrEmbedding = errors.New("embedding failed")
	// ErrGeneration wraps completion provider failures. Conversation memory
	// is never updated for a turn that fails generation.
	ErrGeneration = errors.New("generation failed")
	// ErrUnsupportedInput is returned for blank queries and empty documents.
	ErrUnsupportedInput = errors.New("unsupported input")
)
