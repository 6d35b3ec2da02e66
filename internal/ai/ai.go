// Package ai provides the answer engine client used to answer traveler
// questions about packages during the booking flow. It speaks the
// OpenAI-compatible chat completions API.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/unravelhq/tripflow/internal/circuitbreaker"
	"github.com/unravelhq/tripflow/internal/clock"
	apperrors "github.com/unravelhq/tripflow/internal/errors"
)

const (
	// DefaultBaseURL is the default chat completions endpoint.
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	// DefaultModel answers traveler questions.
	DefaultModel = "openai/gpt-4o-mini"

	// DefaultTimeout bounds a single answer call.
	DefaultTimeout = 20 * time.Second

	// maxAnswerLength truncates runaway completions before they reach
	// WhatsApp.
	maxAnswerLength = 1200
)

const systemPrompt = `You are a friendly travel assistant for Unravel Experience, a festive travel agency. Answer the traveler's question about the package below in 2-4 short sentences suitable for WhatsApp. If the question cannot be answered from the package details, say you will check with the team. Never invent prices.`

// Answerer produces short answers to traveler questions.
type Answerer interface {
	Answer(ctx context.Context, question, packageContext string) (string, error)
}

// Client is the answer engine HTTP client.
type Client struct {
	apiKey         string
	baseURL        string
	model          string
	httpClient     *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	logger         *zap.Logger
}

// Config holds answer engine settings.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// New creates an answer engine client.
func New(cfg *Config, clk clock.Clock, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		circuitBreaker: circuitbreaker.New("answer-engine", nil, clk, logger),
		logger:         logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Answer asks the engine the traveler's question with the selected
// package's details as context. Callers substitute a static fallback
// message when an error is returned.
func (c *Client) Answer(ctx context.Context, question, packageContext string) (string, error) {
	var answer string
	err := c.circuitBreaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		answer, err = c.doAnswer(ctx, question, packageContext)
		return err
	})
	if err != nil {
		return "", apperrors.Wrap(err, "ai.Answer", apperrors.CodeAnswerEngine, "answer engine call failed")
	}
	return answer, nil
}

func (c *Client) doAnswer(ctx context.Context, question, packageContext string) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt + "\n\nPackage details:\n" + packageContext},
			{Role: "user", Content: question},
		},
		MaxTokens:   300,
		Temperature: 0.4,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("answer engine returned status %d: %s", resp.StatusCode, string(body))
	}

	var chat chatResponse
	if err := json.Unmarshal(body, &chat); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if chat.Error != nil {
		return "", fmt.Errorf("answer engine error: %s", chat.Error.Message)
	}
	if len(chat.Choices) == 0 {
		return "", fmt.Errorf("answer engine returned no choices")
	}

	answer := strings.TrimSpace(chat.Choices[0].Message.Content)
	if answer == "" {
		return "", fmt.Errorf("answer engine returned empty content")
	}
	if len(answer) > maxAnswerLength {
		answer = answer[:maxAnswerLength]
	}
	return answer, nil
}
