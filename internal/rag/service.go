// Package rag wires retrieval, generation, and conversation memory into
// the query pipeline.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/luminant-labs/ragline/internal/chunker"
	"github.com/luminant-labs/ragline/internal/config"
	"github.com/luminant-labs/ragline/internal/observability"
	"github.com/luminant-labs/ragline/internal/session"
	"github.com/luminant-labs/ragline/internal/vector"
)

// VectorStore is the pipeline's view of the federated vector layer.
// *vector.Store implements it.
type VectorStore interface {
	Add(ctx context.Context, source string, fragments []vector.Fragment, vectors [][]float32) ([]string, error)
	Search(ctx context.Context, source string, vec []float32, topK int) ([]vector.SearchResult, error)
	Stats(ctx context.Context) (map[string]vector.CollectionStats, error)
	Reset(ctx context.Context, source string) error
	Sources() []string
}

// QueryRequest is one question against the pipeline.
type QueryRequest struct {
	Query string `json:"query"`
	// SessionID ties the question to a conversation. Empty gets a fresh id.
	SessionID string `json:"session_id,omitempty"`
	// SourceFilter skips intent classification when it names a configured
	// topic key. Unrecognized values are ignored.
	SourceFilter string `json:"source_filter,omitempty"`
	// TopK overrides the configured retrieval depth when positive.
	TopK int `json:"top_k,omitempty"`
}

// QueryResult is the pipeline's answer.
type QueryResult struct {
	Answer string `json:"answer"`
	// Sources cites retrieved fragments in the order they entered the
	// prompt context.
	Sources     []Source `json:"sources"`
	ContextUsed int      `json:"context_used"`
	Intent      string   `json:"intent_classification"`
	Confidence  float64  `json:"confidence_score"`
	SessionID   string   `json:"session_id"`
}

// IngestRequest is one document to index.
type IngestRequest struct {
	Filename string            `json:"filename"`
	Source   string            `json:"source"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// IngestResult reports what indexing produced.
type IngestResult struct {
	Status          string   `json:"status"`
	Filename        string   `json:"filename"`
	Source          string   `json:"source"`
	ChunkCount      int      `json:"chunks_created"`
	FragmentIDs     []string `json:"document_ids"`
	TotalCharacters int      `json:"total_characters"`
}

// SourceInfo names one configured topic.
type SourceInfo struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// SystemStats is the operational snapshot served by the stats endpoint.
type SystemStats struct {
	Status         string                    `json:"status"`
	Collections    map[string]CollectionInfo `json:"collections"`
	ActiveSessions int                       `json:"active_sessions"`
	TotalDocuments uint64                    `json:"total_documents"`
	Configuration  StatsConfiguration        `json:"configuration"`
}

type CollectionInfo struct {
	DocumentCount uint64 `json:"document_count"`
}

type StatsConfiguration struct {
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap"`
	TopK         int    `json:"top_k_results"`
	Model        string `json:"model"`
}

// Service orchestrates the query and ingestion pipelines. All dependencies
// are injected; Service holds no global state.
type Service struct {
	gateway  Gateway
	store    VectorStore
	sessions *session.Store
	splitter *chunker.Chunker
	cfg      *config.Config
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewService assembles the pipeline.
func NewService(gateway Gateway, store VectorStore, sessions *session.Store, cfg *config.Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		gateway:  gateway,
		store:    store,
		sessions: sessions,
		splitter: chunker.New(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap),
		cfg:      cfg,
		logger:   logger,
		tracer:   otel.Tracer(observability.TracerName),
	}
}

// Query runs intent -> embed -> search -> context -> generate -> memory.
// Any stage failure aborts the turn; conversation memory is updated only
// after generation succeeds.
func (s *Service) Query(ctx context.Context, req QueryRequest) (res *QueryResult, err error) {
	ctx, span := s.tracer.Start(ctx, "rag.query")
	defer func() {
		observability.RecordError(span, err)
		span.End()
	}()

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", ErrUnsupportedInput)
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	intent := s.resolveIntent(ctx, query, req.SourceFilter)
	span.SetAttributes(attribute.String("rag.intent", intent))

	embedding, err := s.gateway.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}

	// GENERAL means no source filter: search every collection.
	searchSource := intent
	if intent == config.GeneralSource {
		searchSource = ""
	}
	topK := req.TopK
	if topK <= 0 {
		topK = s.cfg.Retrieval.TopK
	}
	results, err := s.store.Search(ctx, searchSource, embedding, topK)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("rag.context_fragments", len(results)))

	contextBlock := BuildContext(results)
	history := s.sessions.History(sessionID)

	answer, err := s.gateway.Generate(ctx, query, contextBlock, history)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	s.sessions.Append(sessionID, query, answer)
	s.logger.Info("query answered",
		"session_id", sessionID, "intent", intent, "context_used", len(results))

	return &QueryResult{
		Answer:      answer,
		Sources:     FormatSources(results),
		ContextUsed: len(results),
		Intent:      intent,
		Confidence:  s.confidence(results),
		SessionID:   sessionID,
	}, nil
}

// resolveIntent uses a recognized explicit filter verbatim and otherwise
// asks the gateway. Classification failure falls back to GENERAL so a
// flaky model never blocks retrieval.
func (s *Service) resolveIntent(ctx context.Context, query, filter string) string {
	filter = strings.ToUpper(strings.TrimSpace(filter))
	if filter != "" && s.cfg.KnownSource(filter) {
		return filter
	}

	intent, err := s.gateway.ClassifyIntent(ctx, query)
	if err != nil {
		s.logger.Warn("intent classification failed", "error", err)
		return config.GeneralSource
	}
	if !s.cfg.KnownSource(intent) {
		return config.GeneralSource
	}
	return intent
}

// confidence scores a result set: 0 with no results, otherwise a blend of
// the top score and how full the requested window came back, with the
// configured top_k as the fixed denominator.
func (s *Service) confidence(results []vector.SearchResult) float64 {
	if len(results) == 0 {
		return 0.0
	}
	countFactor := math.Min(float64(len(results))/float64(s.cfg.Retrieval.TopK), 1.0)
	return round2(0.7*results[0].Score + 0.3*countFactor)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Ingest chunks a document, embeds the chunks, and stores them under the
// given source collection.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (res *IngestResult, err error) {
	ctx, span := s.tracer.Start(ctx, "rag.ingest")
	defer func() {
		observability.RecordError(span, err)
		span.End()
	}()

	source := strings.ToUpper(strings.TrimSpace(req.Source))
	if !s.cfg.KnownSource(source) {
		return nil, fmt.Errorf("%w: %q", vector.ErrUnknownSource, req.Source)
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("%w: empty document", ErrUnsupportedInput)
	}

	chunks := s.splitter.Split(req.Content)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no indexable content in %s", ErrUnsupportedInput, req.Filename)
	}
	span.SetAttributes(
		attribute.String("rag.source", source),
		attribute.Int("rag.chunks", len(chunks)),
	)

	vectors, err := s.gateway.EmbedDocuments(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}

	fragments := make([]vector.Fragment, len(chunks))
	totalChars := 0
	for i, chunk := range chunks {
		totalChars += len(chunk)
		fragments[i] = vector.Fragment{
			Content: chunk,
			Metadata: vector.Metadata{
				Filename:   req.Filename,
				ChunkIndex: i,
				Extra:      req.Metadata,
			},
		}
	}

	ids, err := s.store.Add(ctx, source, fragments, vectors)
	if err != nil {
		return nil, err
	}

	s.logger.Info("document ingested",
		"filename", req.Filename, "source", source, "chunks", len(chunks))

	return &IngestResult{
		Status:          "success",
		Filename:        req.Filename,
		Source:          source,
		ChunkCount:      len(chunks),
		FragmentIDs:     ids,
		TotalCharacters: totalChars,
	}, nil
}

// Stats reports collection sizes, session counts, and the effective
// retrieval configuration.
func (s *Service) Stats(ctx context.Context) (*SystemStats, error) {
	collStats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}

	collections := make(map[string]CollectionInfo, len(collStats))
	var total uint64
	for key, cs := range collStats {
		collections[key] = CollectionInfo{DocumentCount: cs.Count}
		total += cs.Count
	}

	return &SystemStats{
		Status:         "healthy",
		Collections:    collections,
		ActiveSessions: s.sessions.ActiveSessions(),
		TotalDocuments: total,
		Configuration: StatsConfiguration{
			ChunkSize:    s.cfg.Retrieval.ChunkSize,
			ChunkOverlap: s.cfg.Retrieval.ChunkOverlap,
			TopK:         s.cfg.Retrieval.TopK,
			Model:        s.cfg.LLM.Model,
		},
	}, nil
}

// ActiveSessions reports how many conversations currently hold history.
func (s *Service) ActiveSessions() int {
	return s.sessions.ActiveSessions()
}

// Reset empties the named source collection.
func (s *Service) Reset(ctx context.Context, source string) error {
	return s.store.Reset(ctx, strings.ToUpper(strings.TrimSpace(source)))
}

// Sources lists the configured topics in deterministic order.
func (s *Service) Sources() []SourceInfo {
	keys := s.cfg.SourceKeys()
	out := make([]SourceInfo, len(keys))
	for i, k := range keys {
		out[i] = SourceInfo{Key: k, Name: s.cfg.Retrieval.Sources[k]}
	}
	return out
}
