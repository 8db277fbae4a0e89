package llm

import "context"

// Provider is the interface all model backends must implement.
type Provider interface {
	// Complete sends a prompt and returns a completion.
	Complete(ctx context.Context, prompt *Prompt, opts *RequestOptions) (*Response, error)
	// Embed returns document-mode embedding vectors for the given texts,
	// one per input in the same order. A single failure fails the whole
	// call; there are no partial results.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery returns a query-mode embedding for a single text. Backends
	// that do not distinguish modes embed the text as a document.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// Name returns the provider identifier (e.g. "gemini", "openai").
	Name() string
}

// RequestOptions tunes a single completion call.
type RequestOptions struct {
	MaxTokens   *int
	Temperature *float64
}
