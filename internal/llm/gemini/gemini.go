// Package gemini implements llm.Provider for the Google Generative
// Language REST API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/luminant-labs/ragline/internal/llm"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Embedding task types. Query-mode vectors differ numerically from
// document-mode vectors of the same text.
const (
	taskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	taskRetrievalQuery    = "RETRIEVAL_QUERY"
)

// Client implements llm.Provider for Gemini.
type Client struct {
	apiKey     string
	model      string
	embedModel string
	baseURL    string
	http       *http.Client
}

// New creates a Gemini provider.
func New(apiKey, model, embedModel, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if embedModel == "" {
		embedModel = "text-embedding-004"
	}
	return &Client{
		apiKey:     apiKey,
		model:      model,
		embedModel: embedModel,
		baseURL:    baseURL,
		http:       &http.Client{},
	}
}

func (c *Client) Name() string { return "gemini" }

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

func (c *Client) Complete(ctx context.Context, prompt *llm.Prompt, opts *llm.RequestOptions) (*llm.Response, error) {
	body := map[string]any{}

	if prompt.SystemPrompt != "" {
		body["systemInstruction"] = content{Parts: []part{{Text: prompt.SystemPrompt}}}
	}

	contents := make([]content, len(prompt.Messages))
	for i, m := range prompt.Messages {
		role := "user"
		if m.Role == llm.RoleAssistant {
			role = "model"
		}
		contents[i] = content{Role: role, Parts: []part{{Text: m.Content}}}
	}
	body["contents"] = contents

	genCfg := map[string]any{}
	if opts != nil {
		if opts.MaxTokens != nil {
			genCfg["maxOutputTokens"] = *opts.MaxTokens
		}
		if opts.Temperature != nil {
			genCfg["temperature"] = *opts.Temperature
		}
	}
	if len(genCfg) > 0 {
		body["generationConfig"] = genCfg
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []part `json:"parts"`
			} `json:"content"`
			FinishReason string `json:"finishReason"`
		} `json:"candidates"`
		UsageMetadata struct {
			PromptTokenCount     int `json:"promptTokenCount"`
			CandidatesTokenCount int `json:"candidatesTokenCount"`
		} `json:"usageMetadata"`
		ModelVersion string `json:"modelVersion"`
	}
	path := fmt.Sprintf("/models/%s:generateContent", c.model)
	if err := c.post(ctx, path, body, &result); err != nil {
		return nil, err
	}

	text := ""
	stop := ""
	if len(result.Candidates) > 0 {
		stop = result.Candidates[0].FinishReason
		for _, p := range result.Candidates[0].Content.Parts {
			text += p.Text
		}
	}

	return &llm.Response{
		Content:      text,
		Model:        result.ModelVersion,
		InputTokens:  result.UsageMetadata.PromptTokenCount,
		OutputTokens: result.UsageMetadata.CandidatesTokenCount,
		StopReason:   stop,
	}, nil
}

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	model := "models/" + c.embedModel
	requests := make([]map[string]any, len(texts))
	for i, t := range texts {
		requests[i] = map[string]any{
			"model":    model,
			"content":  content{Parts: []part{{Text: t}}},
			"taskType": taskRetrievalDocument,
		}
	}

	var result struct {
		Embeddings []struct {
			Values []float32 `json:"values"`
		} `json:"embeddings"`
	}
	path := fmt.Sprintf("/models/%s:batchEmbedContents", c.embedModel)
	if err := c.post(ctx, path, map[string]any{"requests": requests}, &result); err != nil {
		return nil, err
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini embed: got %d embeddings, want %d", len(result.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(result.Embeddings))
	for i, e := range result.Embeddings {
		vectors[i] = e.Values
	}
	return vectors, nil
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	body := map[string]any{
		"content":  content{Parts: []part{{Text: text}}},
		"taskType": taskRetrievalQuery,
	}

	var result struct {
		Embedding struct {
			Values []float32 `json:"values"`
		} `json:"embedding"`
	}
	path := fmt.Sprintf("/models/%s:embedContent", c.embedModel)
	if err := c.post(ctx, path, body, &result); err != nil {
		return nil, err
	}
	return result.Embedding.Values, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gemini: %s: %s", resp.Status, respBody)
	}
	return json.Unmarshal(respBody, out)
}

var _ llm.Provider = (*Client)(nil)
