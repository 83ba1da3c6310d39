// Package backend provides text-generation providers for the action generator.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"dailyvision/internal/config"
)

// Backend turns a system and user prompt into raw reply text. Replies may be
// malformed; callers validate them.
type Backend interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Func adapts a plain function to Backend.
type Func func(ctx context.Context, systemPrompt, userPrompt string) (string, error)

func (f Func) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f(ctx, systemPrompt, userPrompt)
}

var (
	ErrEmptyReply    = errors.New("backend returned no content")
	ErrReplyTooLarge = errors.New("backend reply exceeds size limit")
)

// MaxResponseBytes bounds a provider response body.
const MaxResponseBytes = 1 << 20

func decodeResponse(body io.Reader, v any) error {
	b, err := io.ReadAll(io.LimitReader(body, MaxResponseBytes+1))
	if err != nil {
		return err
	}
	if len(b) > MaxResponseBytes {
		return ErrReplyTooLarge
	}
	return json.Unmarshal(b, v)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// --- OpenAI-compatible provider ---

// OpenAIClient calls any OpenAI-compatible chat completions API.
type OpenAIClient struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	client      *http.Client
}

type openaiChatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type openaiChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func NewOpenAIClient(baseURL, apiKey, model string, temperature float64) *OpenAIClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		model:       model,
		temperature: temperature,
		client:      &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	body, _ := json.Marshal(openaiChatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: c.temperature,
		MaxTokens:   600,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("openai error %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var result openaiChatResponse
	if err := decodeResponse(resp.Body, &result); err != nil {
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return "", ErrEmptyReply
	}
	return result.Choices[0].Message.Content, nil
}

// --- Ollama provider ---

// OllamaClient uses a local Ollama instance's chat endpoint.
type OllamaClient struct {
	baseURL     string
	model       string
	temperature float64
	client      *http.Client
}

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message chatMessage `json:"message"`
}

func NewOllamaClient(baseURL, model string, temperature float64) *OllamaClient {
	if baseURL == "" {
		baseURL = os.Getenv("OLLAMA_HOST")
	}
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.1"
	}
	return &OllamaClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		temperature: temperature,
		client:      &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *OllamaClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	body, _ := json.Marshal(ollamaChatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Options: map[string]any{"temperature": c.temperature},
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("ollama error %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var result ollamaChatResponse
	if err := decodeResponse(resp.Body, &result); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	if strings.TrimSpace(result.Message.Content) == "" {
		return "", ErrEmptyReply
	}
	return result.Message.Content, nil
}

// --- Factory ---

// New builds the configured provider. It returns nil when generation is
// disabled or the provider lacks credentials; the generator then always
// uses its fallback.
func New(cfg config.Backend) Backend {
	switch cfg.Provider {
	case "openai":
		key := os.Getenv(cfg.APIKeyEnvOrDefault())
		if key == "" {
			return nil
		}
		return NewOpenAIClient(cfg.BaseURL, key, cfg.Model, cfg.Temperature)
	case "ollama":
		return NewOllamaClient(cfg.BaseURL, cfg.Model, cfg.Temperature)
	default:
		return nil
	}
}
