// Package llmclient sends a single-shot completion request to a hosted
// chat completion endpoint and returns the raw response text for the
// prompt layer to parse (spec.md §4.C).
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/laptop-mgfd/dialogue-core/internal/core"
)

// Client calls a hosted chat completion API over HTTP.
type Client struct {
	provider  string
	model     string
	apiKey    string
	apiURL    string
	maxTokens int
	client    *http.Client
}

// Config bundles the dependencies needed to construct a Client.
type Config struct {
	Provider  string
	Model     string
	APIKey    string
	APIURL    string
	MaxTokens int
	Timeout   time.Duration
}

// New builds a Client from Config.
func New(cfg Config) *Client {
	return &Client{
		provider:  cfg.Provider,
		model:     cfg.Model,
		apiKey:    cfg.APIKey,
		apiURL:    cfg.APIURL,
		maxTokens: cfg.MaxTokens,
		client:    &http.Client{Timeout: cfg.Timeout},
	}
}

// Result holds the LLM's response text and latency.
type Result struct {
	Text    string
	Latency time.Duration
}

type completeRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completeResponse struct {
	Text  string `json:"text"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete sends systemPrompt and userMessage to the configured LLM and
// returns the raw response text. It never retries; the caller decides
// whether LLMUnavailable/LLMTimeout is worth a fallback.
func (c *Client) Complete(ctx context.Context, systemPrompt, userMessage string) (*Result, error) {
	start := time.Now()

	reqBody, err := json.Marshal(completeRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    systemPrompt,
		Messages:  []message{{Role: "user", Content: userMessage}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal LLM request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create LLM request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, core.Wrap(core.KindLLMTimeout, "LLM request timed out", err)
		}
		return nil, core.Wrap(core.KindLLMUnavailable, "LLM HTTP request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.Wrap(core.KindLLMUnavailable, "read LLM response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, core.New(core.KindLLMUnavailable, fmt.Sprintf("LLM provider %s returned %d: %s", c.provider, resp.StatusCode, string(body)))
	}

	var out completeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, core.Wrap(core.KindLLMUnavailable, "unmarshal LLM response", err)
	}
	if out.Text == "" {
		return nil, core.New(core.KindLLMEmpty, "LLM returned empty completion")
	}

	return &Result{Text: out.Text, Latency: time.Since(start)}, nil
}

// Provider returns the configured LLM provider name.
func (c *Client) Provider() string { return c.provider }

// Model returns the configured LLM model name.
func (c *Client) Model() string { return c.model }
