package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/luminant-labs/ragline/internal/config"
	"github.com/luminant-labs/ragline/internal/llm"
	"github.com/luminant-labs/ragline/internal/session"
)

// promptHistoryWindow is how many retained turns reach the generation
// prompt. The session store keeps more; only the tail is sent.
const promptHistoryWindow = 5

// Gateway is the pipeline's view of the language model. It owns prompt
// construction so callers deal in domain values only.
type Gateway interface {
	// EmbedDocuments embeds fragments for indexing. All-or-nothing.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery embeds a question for retrieval.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// ClassifyIntent maps a question to a configured topic key. Any answer
	// outside the configured set normalizes to GENERAL.
	ClassifyIntent(ctx context.Context, query string) (string, error)
	// Generate produces the final answer from the question, the assembled
	// context block, and recent conversation history.
	Generate(ctx context.Context, query, contextBlock string, history []session.Turn) (string, error)
}

// ProviderGateway implements Gateway on top of an llm.Provider.
type ProviderGateway struct {
	provider llm.Provider
	sources  map[string]string
	keys     []string // sorted topic keys, GENERAL last
}

// NewGateway builds a gateway for the configured topic set. sources maps
// topic keys to display names as in config.RetrievalConfig.
func NewGateway(provider llm.Provider, sources map[string]string) *ProviderGateway {
	keys := make([]string, 0, len(sources))
	for k := range sources {
		if k != config.GeneralSource {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	keys = append(keys, config.GeneralSource)

	return &ProviderGateway{
		provider: provider,
		sources:  sources,
		keys:     keys,
	}
}

func (g *ProviderGateway) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return g.provider.Embed(ctx, texts)
}

func (g *ProviderGateway) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return g.provider.EmbedQuery(ctx, text)
}

// ClassifyIntent asks the model for a single topic key. The answer is
// uppercased and matched against the configured set; anything else, and
// multi-word answers, fall back to the first recognized word or GENERAL.
func (g *ProviderGateway) ClassifyIntent(ctx context.Context, query string) (string, error) {
	maxTokens := 8
	temperature := 0.0
	resp, err := g.provider.Complete(ctx, &llm.Prompt{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: g.classificationPrompt(query)}},
	}, &llm.RequestOptions{MaxTokens: &maxTokens, Temperature: &temperature})
	if err != nil {
		return "", fmt.Errorf("classifying intent: %w", err)
	}

	for _, word := range strings.Fields(strings.ToUpper(resp.Content)) {
		word = strings.Trim(word, ".,!\"'")
		if _, ok := g.sources[word]; ok {
			return word, nil
		}
	}
	return config.GeneralSource, nil
}

func (g *ProviderGateway) Generate(ctx context.Context, query, contextBlock string, history []session.Turn) (string, error) {
	prompt := &llm.Prompt{SystemPrompt: g.systemPrompt()}

	for _, turn := range session.Window(history, promptHistoryWindow) {
		role := llm.RoleUser
		if turn.Role == session.RoleAssistant {
			role = llm.RoleAssistant
		}
		prompt.Messages = append(prompt.Messages, llm.Message{Role: role, Content: turn.Content})
	}

	var sb strings.Builder
	if strings.TrimSpace(contextBlock) != "" {
		sb.WriteString("Relevant Context:\n")
		sb.WriteString(contextBlock)
		sb.WriteString("\n\n")
	}
	sb.WriteString("User Question: ")
	sb.WriteString(query)
	prompt.Messages = append(prompt.Messages, llm.Message{Role: llm.RoleUser, Content: sb.String()})

	resp, err := g.provider.Complete(ctx, prompt, nil)
	if err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}
	return resp.Content, nil
}

func (g *ProviderGateway) systemPrompt() string {
	var sb strings.Builder
	sb.WriteString("You are a helpful assistant that answers questions using retrieved document context.\n")
	sb.WriteString("You can answer questions about:\n")
	for i, key := range g.keys {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, g.sources[key])
	}
	sb.WriteString(`
Instructions:
- Use the provided context to answer questions accurately
- If the context doesn't contain relevant information, use your general knowledge
- Always cite your sources when using provided context
- Be concise but comprehensive in your responses
- If you're unsure about something, acknowledge the uncertainty`)
	return sb.String()
}

func (g *ProviderGateway) classificationPrompt(query string) string {
	var sb strings.Builder
	sb.WriteString("Classify the following query into one of these categories:\n")
	for _, key := range g.keys {
		if key == config.GeneralSource {
			fmt.Fprintf(&sb, "- %s: General questions not covered by the other categories\n", key)
			continue
		}
		fmt.Fprintf(&sb, "- %s: Questions about %s\n", key, g.sources[key])
	}
	fmt.Fprintf(&sb, "\nQuery: %q\n", query)
	fmt.Fprintf(&sb, "\nRespond with only one word: %s", strings.Join(g.keys, ", "))
	return sb.String()
}

var _ Gateway = (*ProviderGateway)(nil)
