// Package llm implements the single-operation chat adapter the agents use
// to talk to an OpenAI-compatible LLM endpoint over plain HTTP/JSON, plus
// a JSON extraction/repair pipeline for salvaging malformed model output.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkoukk/tiktoken-go"
)

// ChatOptions configures one chat() call.
type ChatOptions struct {
	JSONMode    bool
	Temperature float64
	MaxTokens   int
}

// Adapter is the single operation the agents call: chat(system, user,
// opts) -> string. It also owns token budgeting via tiktoken-go and the
// JSON salvage pipeline in jsonrepair.go.
type Adapter struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	encoding   *tiktoken.Tiktoken
}

// New constructs an Adapter. encoding lookup failures are non-fatal: token
// counting degrades to a rune-count heuristic (see CountTokens).
func New(baseURL, apiKey, model string, timeout time.Duration) *Adapter {
	enc, _ := tiktoken.GetEncoding("cl100k_base")
	return &Adapter{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		encoding:   enc,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string           `json:"model"`
	Messages       []chatMessage    `json:"messages"`
	Temperature    float64          `json:"temperature"`
	MaxTokens      int              `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat  `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Usage reports token accounting for one call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Chat issues a single-shot OpenAI-compatible chat completion call and
// returns the raw assistant reply text plus token usage. Transient
// transport errors are returned to the caller rather than swallowed;
// retry/fallback policy belongs to the calling agent, not the adapter.
func (a *Adapter) Chat(ctx context.Context, system, user string, opts ChatOptions) (string, Usage, error) {
	req := chatRequest{
		Model: a.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	if opts.JSONMode {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", Usage{}, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", Usage{}, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return "", Usage{}, fmt.Errorf("chat completion request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", Usage{}, fmt.Errorf("read chat response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return "", Usage{}, fmt.Errorf("chat completion returned status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", Usage{}, fmt.Errorf("decode chat response: %w", err)
	}
	if parsed.Error != nil {
		return "", Usage{}, fmt.Errorf("llm provider error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", Usage{}, fmt.Errorf("llm provider returned no choices")
	}

	usage := Usage{
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
		TotalTokens:      parsed.Usage.TotalTokens,
	}
	return parsed.Choices[0].Message.Content, usage, nil
}

// CountTokens estimates the token count of s using the adapter's tiktoken
// encoding; if the encoding failed to load it falls back to a
// characters-per-token heuristic so callers always get a usable estimate.
func (a *Adapter) CountTokens(s string) int {
	if a.encoding == nil {
		return len([]rune(s)) / 4
	}
	return len(a.encoding.Encode(s, nil, nil))
}

// Truncate shortens s so that its estimated token count fits within
// maxTokens, cutting from the end. Chat does not call it: prompts are sent
// as given.
func (a *Adapter) Truncate(s string, maxTokens int) string {
	if a.CountTokens(s) <= maxTokens {
		return s
	}
	runes := []rune(s)
	approxChars := maxTokens * 4
	if approxChars >= len(runes) {
		return s
	}
	return string(runes[:approxChars])
}
