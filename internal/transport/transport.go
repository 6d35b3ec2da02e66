// Package transport provides the client for the WhatsApp bridge service
// that delivers outbound messages and brochure documents.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/unravelhq/tripflow/internal/errors"
)

const (
	// DefaultTimeout is the default HTTP client timeout.
	DefaultTimeout = 15 * time.Second

	// DefaultRetryDelay is the pause before the single retry of a failed send.
	DefaultRetryDelay = 500 * time.Millisecond
)

// InboundMessage is a message arriving from the bridge.
type InboundMessage struct {
	UserID    string `json:"user_id"`
	Text      string `json:"text"`
	MessageID string `json:"message_id,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// Sender delivers messages to travelers over WhatsApp.
type Sender interface {
	// SendText delivers a plain text message to the canonical phone number.
	SendText(ctx context.Context, to, text string) error

	// SendDocument delivers a document attachment with an optional caption.
	SendDocument(ctx context.Context, to, filename, caption string) error
}

// Connector is the HTTP client for the bridge. A failed send is retried
// once after a short delay before the error is surfaced.
type Connector struct {
	baseURL    string
	token      string
	retryDelay time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

// Config holds bridge connection settings.
type Config struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	RetryDelay time.Duration
}

// NewConnector creates a bridge client.
func NewConnector(cfg *Config, logger *zap.Logger) *Connector {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}

	return &Connector{
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		retryDelay: cfg.RetryDelay,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logger,
	}
}

type sendTextRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

type sendDocumentRequest struct {
	To       string `json:"to"`
	Filename string `json:"filename"`
	Caption  string `json:"caption,omitempty"`
}

// SendText delivers a text message, retrying once on failure.
func (c *Connector) SendText(ctx context.Context, to, text string) error {
	return c.sendWithRetry(ctx, "transport.SendText", "/api/send/text", sendTextRequest{
		To:   to,
		Text: text,
	})
}

// SendDocument delivers a document, retrying once on failure.
func (c *Connector) SendDocument(ctx context.Context, to, filename, caption string) error {
	return c.sendWithRetry(ctx, "transport.SendDocument", "/api/send/document", sendDocumentRequest{
		To:       to,
		Filename: filename,
		Caption:  caption,
	})
}

func (c *Connector) sendWithRetry(ctx context.Context, op, path string, body interface{}) error {
	err := c.post(ctx, path, body)
	if err == nil {
		return nil
	}

	c.logger.Warn("send failed, retrying once",
		zap.String("op", op),
		zap.Error(err),
	)

	select {
	case <-ctx.Done():
		return apperrors.TransportError(op, ctx.Err())
	case <-time.After(c.retryDelay):
	}

	if err = c.post(ctx, path, body); err != nil {
		return apperrors.TransportError(op, err)
	}
	return nil
}

func (c *Connector) post(ctx context.Context, path string, body interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("bridge returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
