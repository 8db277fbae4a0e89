package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// GeneralSource is the catch-all source key. As an intent it means
// "no source filter"; as a collection key it holds uncategorized documents.
const GeneralSource = "GENERAL"

// Config holds all application configuration.
type Config struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Server    ServerConfig    `mapstructure:"server"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Log       LogConfig       `mapstructure:"log"`
}

type LLMConfig struct {
	Provider   string `mapstructure:"provider"`
	Model      string `mapstructure:"model"`
	EmbedModel string `mapstructure:"embed_model"`
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
}

// RetrievalConfig shapes the query pipeline.
type RetrievalConfig struct {
	// TopK is the default number of fragments fetched and the fixed
	// denominator of the confidence formula.
	TopK         int `mapstructure:"top_k"`
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
	// HistoryLimit caps retained conversation turns per session.
	HistoryLimit int `mapstructure:"history_limit"`

	// Sources maps topic keys to display names. Keys form the fixed set of
	// collections; GENERAL is added if missing.
	Sources map[string]string `mapstructure:"sources"`
}

type VectorConfig struct {
	Backend   string `mapstructure:"backend"` // "qdrant" or "memory"
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Dimension int    `mapstructure:"dimension"`
	// Prefix for backend collection names, e.g. "documents" → documents_nec.
	CollectionPrefix string `mapstructure:"collection_prefix"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type TracingConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns the built-in configuration, matching the original
// deployment's topic set.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:   "gemini",
			Model:      "gemini-2.0-flash",
			EmbedModel: "text-embedding-004",
		},
		Retrieval: RetrievalConfig{
			TopK:         5,
			ChunkSize:    1000,
			ChunkOverlap: 200,
			HistoryLimit: 10,
			Sources: map[string]string{
				"NEC":         "NEC Code Guidelines",
				"WATTMONK":    "Wattmonk Company Information",
				GeneralSource: "General Knowledge",
			},
		},
		Vector: VectorConfig{
			Backend:          "memory",
			Host:             "localhost",
			Port:             6334,
			Dimension:        768,
			CollectionPrefix: "documents",
		},
		Server:  ServerConfig{Addr: ":8000"},
		Tracing: TracingConfig{SampleRate: 1.0},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// SourceKeys returns the configured source keys in deterministic order.
// The order fixes collection registration and therefore federated-merge
// tie-breaking.
func (c *Config) SourceKeys() []string {
	keys := make([]string, 0, len(c.Retrieval.Sources))
	for k := range c.Retrieval.Sources {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// KnownSource reports whether key names a configured source.
func (c *Config) KnownSource(key string) bool {
	_, ok := c.Retrieval.Sources[key]
	return ok
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if c.LLM.Provider != "" && c.LLM.Provider != "none" && c.LLM.APIKey == "" {
		warnings = append(warnings, fmt.Sprintf("LLM provider '%s' is configured but api_key is empty", c.LLM.Provider))
	}
	if c.Retrieval.TopK <= 0 {
		warnings = append(warnings, fmt.Sprintf("retrieval top_k %d is not positive", c.Retrieval.TopK))
	}
	if c.Retrieval.ChunkOverlap >= c.Retrieval.ChunkSize {
		warnings = append(warnings, fmt.Sprintf("chunk_overlap %d is not smaller than chunk_size %d", c.Retrieval.ChunkOverlap, c.Retrieval.ChunkSize))
	}
	if c.Vector.Dimension <= 0 {
		warnings = append(warnings, fmt.Sprintf("vector dimension %d is not positive", c.Vector.Dimension))
	}

	return warnings
}

// Load reads configuration from file and environment, layered over Default.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("RAGLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if cfg.Retrieval.Sources == nil {
		cfg.Retrieval.Sources = map[string]string{}
	}
	if _, ok := cfg.Retrieval.Sources[GeneralSource]; !ok {
		cfg.Retrieval.Sources[GeneralSource] = "General Knowledge"
	}

	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	return cfg, nil
}
