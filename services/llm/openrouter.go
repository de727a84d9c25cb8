// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// =============================================================================
// OpenRouter Wire Types
// =============================================================================

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1/chat/completions"

// defaultModel is a small instruct model; expansion and topic resolution are
// short completions that do not benefit from a larger one.
const defaultModel = "mistralai/mistral-small-3.2-24b-instruct:free"

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Choices []chatChoice `json:"choices"`
	Error   *apiError    `json:"error,omitempty"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// =============================================================================
// Client Implementation
// =============================================================================

// OpenRouterClient implements Generator against any OpenAI-compatible
// chat-completions endpoint using raw net/http.
//
// Description:
//
//	Defaults to the OpenRouter API but works against any endpoint speaking
//	the same wire format (including a local Ollama in OpenAI mode) by
//	overriding the base URL. Temperature 0.6 / top_p 0.9 match the voice
//	tuning of the librarian prompts.
//
// Thread Safety: OpenRouterClient is safe for concurrent use.
type OpenRouterClient struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
	referer    string
	title      string
	logger     *slog.Logger
}

// NewOpenRouterClient creates an OpenRouterClient from environment variables.
//
// Description:
//
//	Reads OPENROUTER_API_KEY (required), OPENROUTER_MODEL, OPENROUTER_BASE_URL,
//	SITE_URL, and SITE_TITLE. SITE_URL/SITE_TITLE populate the attribution
//	headers OpenRouter asks integrators to send.
//
// Outputs:
//   - *OpenRouterClient: The configured client.
//   - error: Non-nil if OPENROUTER_API_KEY is missing.
func NewOpenRouterClient(logger *slog.Logger) (*OpenRouterClient, error) {
	apiKey := os.Getenv("OPENROUTER_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY not set")
	}
	model := os.Getenv("OPENROUTER_MODEL")
	if model == "" {
		model = defaultModel
	}
	baseURL := os.Getenv("OPENROUTER_BASE_URL")
	if baseURL == "" {
		baseURL = defaultOpenRouterBaseURL
	}
	c := NewOpenRouterClientWithConfig(apiKey, model, baseURL, logger)
	c.referer = os.Getenv("SITE_URL")
	c.title = os.Getenv("SITE_TITLE")
	return c, nil
}

// NewOpenRouterClientWithConfig creates an OpenRouterClient with explicit
// configuration.
//
// Description:
//
//	Creates a client without reading environment variables. Useful for
//	testing with mock servers or when configuration comes from a source
//	other than the environment.
//
// Inputs:
//   - apiKey: The API key. May be empty for unauthenticated local endpoints.
//   - model: The model name.
//   - baseURL: Full URL of the chat-completions endpoint.
//   - logger: Logger for request diagnostics. May be nil.
//
// Outputs:
//   - *OpenRouterClient: The configured client.
func NewOpenRouterClientWithConfig(apiKey, model, baseURL string, logger *slog.Logger) *OpenRouterClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenRouterClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
		logger:     logger,
	}
}

// Generate implements Generator via a single chat-completions call.
//
// Description:
//
//	The prompt goes out as one user message. Non-200 responses and payloads
//	with an error body return an error; callers fall back to deterministic
//	behavior per the engine's propagation policy.
//
// Inputs:
//   - ctx: Context for cancellation and deadline. The per-request HTTP
//     timeout (30s) still applies beneath it.
//   - prompt: The full prompt text.
//
// Outputs:
//   - string: The assistant's completion text.
//   - error: Non-nil on transport, status, decode, or provider error.
func (c *OpenRouterClient) Generate(ctx context.Context, prompt string) (string, error) {
	temp := 0.6
	topP := 0.9
	reqBody := chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: &temp,
		TopP:        &topP,
	}

	raw, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if c.referer != "" {
		req.Header.Set("HTTP-Referer", c.referer)
	}
	if c.title != "" {
		req.Header.Set("X-Title", c.title)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat completion request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("text generation provider returned error",
			slog.Int("status", resp.StatusCode),
			slog.String("model", c.model),
			slog.Duration("duration", time.Since(start)),
		)
		return "", fmt.Errorf("provider status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("provider error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("provider returned no choices")
	}

	c.logger.Debug("text generation complete",
		slog.String("model", c.model),
		slog.Duration("duration", time.Since(start)),
		slog.Int("prompt_len", len(prompt)),
	)
	return parsed.Choices[0].Message.Content, nil
}

// truncate shortens s for log/error display.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
