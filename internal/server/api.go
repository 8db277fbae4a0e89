// Package server exposes the retrieval pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/luminant-labs/ragline/internal/observability"
	"github.com/luminant-labs/ragline/internal/rag"
	"github.com/luminant-labs/ragline/internal/vector"
)

// HealthCheck reports the state of one dependency.
type HealthCheck struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthChecker probes one dependency.
type HealthChecker func(ctx context.Context) HealthCheck

// HealthResponse is the /health payload.
type HealthResponse struct {
	Status    string        `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Version   string        `json:"version,omitempty"`
	Checks    []HealthCheck `json:"checks,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// API routes HTTP requests to the pipeline. All semantics live in the
// rag package; handlers only translate the wire format.
type API struct {
	svc     *rag.Service
	metrics *observability.PipelineMetrics
	logger  *slog.Logger
	version string

	checkNames []string
	checks     map[string]HealthChecker
}

// NewAPI builds the HTTP layer. metrics may be nil to disable recording.
func NewAPI(svc *rag.Service, metrics *observability.PipelineMetrics, logger *slog.Logger, version string) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		svc:     svc,
		metrics: metrics,
		logger:  logger,
		version: version,
		checks:  make(map[string]HealthChecker),
	}
}

// RegisterCheck adds a dependency probe to /health. Checks run in
// registration order.
func (a *API) RegisterCheck(name string, checker HealthChecker) {
	if _, ok := a.checks[name]; !ok {
		a.checkNames = append(a.checkNames, name)
	}
	a.checks[name] = checker
}

// Handler returns the API's routes.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc("POST /api/query", a.handleQuery)
	mux.HandleFunc("POST /api/ingest", a.handleIngest)
	mux.HandleFunc("GET /api/stats", a.handleStats)
	mux.HandleFunc("GET /api/sources", a.handleSources)
	mux.HandleFunc("DELETE /api/collections/{source}", a.handleReset)
	if a.metrics != nil {
		mux.Handle("GET /metrics", a.metrics.Handler())
	}
	return mux
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   a.version,
	}
	for _, name := range a.checkNames {
		check := a.checks[name](ctx)
		check.Name = name
		resp.Checks = append(resp.Checks, check)
		if check.Status != "healthy" {
			resp.Status = "unhealthy"
		}
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (a *API) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req rag.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	start := time.Now()
	res, err := a.svc.Query(r.Context(), req)
	a.recordQuery(start, err)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req rag.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	start := time.Now()
	res, err := a.svc.Ingest(r.Context(), req)
	if a.metrics != nil {
		chunks := 0
		if res != nil {
			chunks = res.ChunkCount
		}
		a.metrics.RecordIngest(time.Since(start), chunks, err)
	}
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.svc.Stats(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleSources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]rag.SourceInfo{"sources": a.svc.Sources()})
}

func (a *API) handleReset(w http.ResponseWriter, r *http.Request) {
	source := r.PathValue("source")
	if err := a.svc.Reset(r.Context(), source); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset", "source": source})
}

func (a *API) recordQuery(start time.Time, err error) {
	if a.metrics == nil {
		return
	}
	a.metrics.RecordQuery(time.Since(start), err)
	a.metrics.ActiveSessions.Set(float64(a.svc.ActiveSessions()))
}

// writeError maps pipeline errors to HTTP statuses: caller mistakes are
// 400s, upstream provider failures are 502s, everything else 500.
func (a *API) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, rag.ErrUnsupportedInput), errors.Is(err, vector.ErrUnknownSource):
		status = http.StatusBadRequest
	case errors.Is(err, rag.ErrEmbedding), errors.Is(err, rag.ErrGeneration):
		status = http.StatusBadGateway
	case errors.Is(err, vector.ErrSearchFailed):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		a.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// StoreHealthChecker probes the vector store by asking for collection
// counts.
func StoreHealthChecker(store rag.VectorStore) HealthChecker {
	return func(ctx context.Context) HealthCheck {
		if _, err := store.Stats(ctx); err != nil {
			return HealthCheck{Status: "unhealthy", Message: "vector store unreachable: " + err.Error()}
		}
		return HealthCheck{Status: "healthy", Message: "vector store OK"}
	}
}
