// Package ai provides the optional LLM-backed summarization seat. The
// research pipeline is fully functional without it; when enabled, a
// ResearchSummarizer rewrites the summary and key findings from the top
// scored pages.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/IshaanNene/DeepStalk/internal/config"
	"github.com/IshaanNene/DeepStalk/internal/types"
)

// LLMProvider specifies which LLM backend to use.
type LLMProvider string

const (
	ProviderOllama LLMProvider = "ollama"
	ProviderOpenAI LLMProvider = "openai"
	ProviderCustom LLMProvider = "custom"
)

// LLMConfig configures the LLM integration.
type LLMConfig struct {
	Provider    LLMProvider
	Endpoint    string // e.g. "http://localhost:11434" for Ollama
	Model       string // e.g. "llama3.2", "gpt-4o-mini"
	APIKey      string
	MaxTokens   int
	Temperature float64
}

// LLMConfigFrom maps the application AI section onto an LLMConfig.
func LLMConfigFrom(cfg config.AI) LLMConfig {
	return LLMConfig{
		Provider:    LLMProvider(cfg.Provider),
		Endpoint:    cfg.Endpoint,
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}
}

// LLMClient communicates with an LLM backend.
type LLMClient struct {
	cfg    LLMConfig
	client *http.Client
	logger *slog.Logger
}

// NewLLMClient creates a new LLM client.
func NewLLMClient(cfg LLMConfig, logger *slog.Logger) *LLMClient {
	return &LLMClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger.With("component", "llm_client"),
	}
}

// Generate sends a prompt to the LLM and returns the response.
func (c *LLMClient) Generate(ctx context.Context, prompt string) (string, error) {
	switch c.cfg.Provider {
	case ProviderOllama:
		return c.generateOllama(ctx, prompt)
	case ProviderOpenAI:
		return c.generateOpenAI(ctx, prompt)
	case ProviderCustom:
		return c.generateCustom(ctx, prompt)
	default:
		return "", fmt.Errorf("unsupported LLM provider: %s", c.cfg.Provider)
	}
}

func (c *LLMClient) generateOllama(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model":  c.cfg.Model,
		"prompt": prompt,
		"stream": false,
		"options": map[string]any{
			"temperature": c.cfg.Temperature,
			"num_predict": c.cfg.MaxTokens,
		},
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.Endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	return result.Response, nil
}

func (c *LLMClient) generateOpenAI(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model": c.cfg.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"max_tokens":  c.cfg.MaxTokens,
		"temperature": c.cfg.Temperature,
	}

	body, _ := json.Marshal(payload)
	endpoint := c.cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1"
	}

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in openai response")
	}
	return result.Choices[0].Message.Content, nil
}

func (c *LLMClient) generateCustom(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"prompt": prompt,
		"model":  c.cfg.Model,
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(respBody), nil
}

// maxPromptExcerpt caps how much of each page's text goes into the
// summarization prompt.
const maxPromptExcerpt = 1200

// ResearchSummarizer asks the LLM for a summary and key findings over the
// top scored pages. It satisfies the synthesizer's Summarizer seat.
type ResearchSummarizer struct {
	client *LLMClient
	logger *slog.Logger
}

// NewResearchSummarizer creates a summarizer on top of an LLM client.
func NewResearchSummarizer(client *LLMClient, logger *slog.Logger) *ResearchSummarizer {
	return &ResearchSummarizer{
		client: client,
		logger: logger.With("component", "ai_summarizer"),
	}
}

// Summarize prompts the model with page excerpts and parses the JSON it
// returns. Any transport or parse problem is an error; the caller falls
// back to deterministic synthesis.
func (r *ResearchSummarizer) Summarize(ctx context.Context, query string, pages []*types.ScoredPage) (string, []string, error) {
	if len(pages) == 0 {
		return "", nil, fmt.Errorf("no pages to summarize")
	}

	response, err := r.client.Generate(ctx, buildResearchPrompt(query, pages))
	if err != nil {
		return "", nil, err
	}

	var parsed struct {
		Summary     string   `json:"summary"`
		KeyFindings []string `json:"key_findings"`
	}
	if err := json.Unmarshal([]byte(extractJSON(response)), &parsed); err != nil {
		return "", nil, fmt.Errorf("parse llm response: %w", err)
	}
	if strings.TrimSpace(parsed.Summary) == "" {
		return "", nil, fmt.Errorf("llm returned no summary")
	}

	r.logger.Debug("llm summarization complete",
		"pages", len(pages),
		"findings", len(parsed.KeyFindings),
	)
	return strings.TrimSpace(parsed.Summary), parsed.KeyFindings, nil
}

func buildResearchPrompt(query string, pages []*types.ScoredPage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a research assistant. Summarize what the following web pages say about %q.\n", query)
	b.WriteString(`Return JSON with exactly two keys:
- "summary": one paragraph of at most 150 words, no URLs
- "key_findings": an array of at most 10 short bullet strings

`)
	for i, p := range pages {
		title := p.Title
		if title == "" {
			title = p.URL
		}
		fmt.Fprintf(&b, "Page %d: %s\n%s\n\n", i+1, title, p.Excerpt(maxPromptExcerpt))
	}
	return b.String()
}

// extractJSON tries to find a JSON object in the LLM response.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return "{}"
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return "{}"
}
