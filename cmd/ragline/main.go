package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/luminant-labs/ragline/internal/config"
	"github.com/luminant-labs/ragline/internal/llm"
	"github.com/luminant-labs/ragline/internal/llm/gemini"
	"github.com/luminant-labs/ragline/internal/llm/openai"
	"github.com/luminant-labs/ragline/internal/observability"
	"github.com/luminant-labs/ragline/internal/rag"
	"github.com/luminant-labs/ragline/internal/server"
	"github.com/luminant-labs/ragline/internal/session"
	"github.com/luminant-labs/ragline/internal/vector"
	"github.com/luminant-labs/ragline/internal/vector/memory"
	"github.com/luminant-labs/ragline/internal/vector/qdrant"
)

const version = "0.1.0"

func main() {
	// Local .env is optional.
	_ = godotenv.Load()

	var configPath string

	rootCmd := &cobra.Command{
		Use:   "ragline",
		Short: "Retrieval-augmented query service over topic-partitioned document collections",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/ragline.yaml", "Config file path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}

	var (
		querySource  string
		querySession string
		queryTopK    int
	)
	queryCmd := &cobra.Command{
		Use:   "query [question]",
		Short: "Ask a question against the indexed collections",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(configPath, args[0], querySource, querySession, queryTopK)
		},
	}
	queryCmd.Flags().StringVar(&querySource, "source", "", "Restrict the search to one topic key")
	queryCmd.Flags().StringVar(&querySession, "session", "", "Conversation session id")
	queryCmd.Flags().IntVar(&queryTopK, "top-k", 0, "Override the number of retrieved fragments")

	var (
		ingestFile   string
		ingestSource string
	)
	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index a document into a topic collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(configPath, ingestFile, ingestSource)
		},
	}
	ingestCmd.Flags().StringVar(&ingestFile, "file", "", "Path to the document")
	ingestCmd.Flags().StringVar(&ingestSource, "source", "", "Topic key to index under")
	_ = ingestCmd.MarkFlagRequired("file")
	_ = ingestCmd.MarkFlagRequired("source")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show collection and session statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(configPath)
		},
	}

	var resetSource string
	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Empty a topic collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReset(configPath, resetSource)
		},
	}
	resetCmd.Flags().StringVar(&resetSource, "source", "", "Topic key to reset")
	_ = resetCmd.MarkFlagRequired("source")

	sourcesCmd := &cobra.Command{
		Use:   "sources",
		Short: "List configured topic keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSources(configPath)
		},
	}

	providersCmd := &cobra.Command{
		Use:   "providers",
		Short: "List available LLM providers",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Available LLM providers:")
			fmt.Println()
			for name, url := range llm.KnownProviders {
				fmt.Printf("  %-10s %s\n", name, url)
			}
			fmt.Println("  custom     (set base_url to any OpenAI-compatible endpoint)")
			fmt.Println()
			fmt.Println("Configure in ragline.yaml or via environment:")
			fmt.Println("  RAGLINE_LLM_PROVIDER=gemini")
			fmt.Println("  RAGLINE_LLM_API_KEY=...")
			fmt.Println("  RAGLINE_LLM_MODEL=gemini-2.0-flash")
		},
	}

	rootCmd.AddCommand(serveCmd, queryCmd, ingestCmd, statsCmd, resetCmd, sourcesCmd, providersCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: config load failed (%v), using defaults\n", err)
		cfg = config.Default()
	}
	return cfg
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func buildProvider(cfg *config.Config) (llm.Provider, error) {
	factory := llm.NewFactory()
	factory.Register("gemini", func(c llm.ProviderConfig) (llm.Provider, error) {
		return gemini.New(c.APIKey, c.Model, c.EmbedModel, c.BaseURL), nil
	})
	factory.Register("openai", func(c llm.ProviderConfig) (llm.Provider, error) {
		return openai.New(c.APIKey, c.Model, c.BaseURL, c.EmbedModel), nil
	})
	factory.Register("ollama", func(c llm.ProviderConfig) (llm.Provider, error) {
		baseURL := c.BaseURL
		if baseURL == "" {
			baseURL = llm.KnownProviders["ollama"]
		}
		return openai.New(c.APIKey, c.Model, baseURL, c.EmbedModel), nil
	})
	factory.Register("custom", func(c llm.ProviderConfig) (llm.Provider, error) {
		return openai.New(c.APIKey, c.Model, c.BaseURL, c.EmbedModel), nil
	})

	provider, err := factory.Create(llm.ProviderConfig{
		Provider:   cfg.LLM.Provider,
		APIKey:     cfg.LLM.APIKey,
		Model:      cfg.LLM.Model,
		EmbedModel: cfg.LLM.EmbedModel,
		BaseURL:    cfg.LLM.BaseURL,
	})
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, fmt.Errorf("an LLM provider is required; set llm.provider in the config")
	}
	return provider, nil
}

// buildStore registers one collection per configured topic key, ordered
// deterministically so federated merges tie-break the same way every run.
func buildStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*vector.Store, error) {
	store := vector.NewStore(logger)

	switch strings.ToLower(cfg.Vector.Backend) {
	case "", "memory":
		for _, key := range cfg.SourceKeys() {
			store.Register(key, memory.NewCollection(cfg.Vector.Dimension))
		}
	case "qdrant":
		conn, err := qdrant.Connect(cfg.Vector.Host, cfg.Vector.Port)
		if err != nil {
			return nil, fmt.Errorf("connecting to qdrant: %w", err)
		}
		for _, key := range cfg.SourceKeys() {
			name := cfg.Vector.CollectionPrefix + "_" + strings.ToLower(key)
			coll, err := qdrant.NewCollection(ctx, conn, name, cfg.Vector.Dimension)
			if err != nil {
				return nil, fmt.Errorf("preparing collection %s: %w", name, err)
			}
			store.Register(key, coll)
		}
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.Vector.Backend)
	}
	return store, nil
}

func buildService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*rag.Service, *vector.Store, error) {
	provider, err := buildProvider(cfg)
	if err != nil {
		return nil, nil, err
	}
	store, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	gateway := rag.NewGateway(provider, cfg.Retrieval.Sources)
	sessions := session.NewStore(cfg.Retrieval.HistoryLimit)
	return rag.NewService(gateway, store, sessions, cfg, logger), store, nil
}

func runServe(configPath string) error {
	cfg := loadConfig(configPath)
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:    "ragline",
		ServiceVersion: version,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer tp.Shutdown(context.Background())

	svc, store, err := buildService(ctx, cfg, logger)
	if err != nil {
		return err
	}

	metrics := observability.NewPipelineMetrics()
	api := server.NewAPI(svc, metrics, logger, version)
	api.RegisterCheck("vector-store", server.StoreHealthChecker(store))

	logger.Info("starting ragline",
		"addr", cfg.Server.Addr,
		"provider", cfg.LLM.Provider,
		"backend", cfg.Vector.Backend,
		"sources", cfg.SourceKeys())

	return server.New(cfg.Server.Addr, api.Handler(), logger).Run(ctx)
}

func runQuery(configPath, question, source, sessionID string, topK int) error {
	cfg := loadConfig(configPath)
	logger := newLogger(cfg)
	ctx := context.Background()

	svc, _, err := buildService(ctx, cfg, logger)
	if err != nil {
		return err
	}

	res, err := svc.Query(ctx, rag.QueryRequest{
		Query:        question,
		SessionID:    sessionID,
		SourceFilter: source,
		TopK:         topK,
	})
	if err != nil {
		return err
	}

	fmt.Println(res.Answer)
	fmt.Println()
	fmt.Printf("Intent: %s  Confidence: %.2f  Session: %s\n", res.Intent, res.Confidence, res.SessionID)
	for i, src := range res.Sources {
		fmt.Printf("  [%d] %s - %s (%.2f)\n", i+1, src.Source, src.Filename, src.Score)
	}
	return nil
}

func runIngest(configPath, file, source string) error {
	cfg := loadConfig(configPath)
	logger := newLogger(cfg)
	ctx := context.Background()

	content, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("reading %s: %w", file, err)
	}

	svc, _, err := buildService(ctx, cfg, logger)
	if err != nil {
		return err
	}

	res, err := svc.Ingest(ctx, rag.IngestRequest{
		Filename: file,
		Source:   source,
		Content:  string(content),
	})
	if err != nil {
		return err
	}

	fmt.Printf("Ingested %s into %s: %d chunks, %d characters\n",
		res.Filename, res.Source, res.ChunkCount, res.TotalCharacters)
	return nil
}

func runStats(configPath string) error {
	cfg := loadConfig(configPath)
	logger := newLogger(cfg)
	ctx := context.Background()

	svc, _, err := buildService(ctx, cfg, logger)
	if err != nil {
		return err
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runReset(configPath, source string) error {
	cfg := loadConfig(configPath)
	logger := newLogger(cfg)
	ctx := context.Background()

	svc, _, err := buildService(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if err := svc.Reset(ctx, source); err != nil {
		return err
	}
	fmt.Printf("Collection %s reset\n", strings.ToUpper(source))
	return nil
}

func runSources(configPath string) error {
	cfg := loadConfig(configPath)

	fmt.Println("Configured sources:")
	for _, key := range cfg.SourceKeys() {
		fmt.Printf("  %-12s %s\n", key, cfg.Retrieval.Sources[key])
	}
	return nil
}
