// Package backend provides the client for the booking backend API that
// receives finalized booking requests and later calls back with quotes.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/unravelhq/tripflow/internal/circuitbreaker"
	"github.com/unravelhq/tripflow/internal/clock"
	apperrors "github.com/unravelhq/tripflow/internal/errors"
)

// DefaultTimeout is the default HTTP client timeout.
const DefaultTimeout = 15 * time.Second

// SubmitRequest is a finalized booking sent to the backend.
type SubmitRequest struct {
	RequestID    string `json:"request_id"`
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	Destination  string `json:"destination"`
	TravelDate   string `json:"travel_date"` // YYYY-MM-DD
	Guests       int    `json:"guests"`
	Requirements string `json:"requirements"`
	Package      string `json:"package"`
}

// SubmitResult is the backend's acknowledgement of a submission.
type SubmitResult struct {
	Accepted         bool
	BackendRequestID string
}

// Submitter sends finalized bookings to the backend.
type Submitter interface {
	Submit(ctx context.Context, req *SubmitRequest) (*SubmitResult, error)
}

// Client is the HTTP client for the booking backend.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	logger         *zap.Logger
}

// Config holds backend connection settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// New creates a booking backend client.
func New(cfg *Config, clk clock.Clock, logger *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		circuitBreaker: circuitbreaker.New("booking-backend", nil, clk, logger),
		logger:         logger,
	}
}

// errorResponse is the backend's 400 body listing rejected fields.
type errorResponse struct {
	Detail string              `json:"detail,omitempty"`
	Errors map[string][]string `json:"errors,omitempty"`
}

type submitResponse struct {
	ID        string `json:"id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Submit sends a booking to the backend. A connection failure maps to
// ErrBackendUnavailable so the flow can show the system-unavailable
// message; a 400 maps to a validation error listing the rejected fields.
func (c *Client) Submit(ctx context.Context, req *SubmitRequest) (*SubmitResult, error) {
	var result *SubmitResult
	err := c.circuitBreaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		result, err = c.doSubmit(ctx, req)
		return err
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
			return nil, apperrors.ErrBackendUnavailable
		}
		return nil, err
	}
	return result, nil
}

func (c *Client) doSubmit(ctx context.Context, req *SubmitRequest) (*SubmitResult, error) {
	jsonBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal submission: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/bookings/", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug("submitting booking",
		zap.String("request_id", req.RequestID),
		zap.String("package", req.Package),
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isConnectionError(err) {
			return nil, apperrors.ErrBackendUnavailable
		}
		return nil, fmt.Errorf("submission failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var ack submitResponse
		if err := json.Unmarshal(body, &ack); err != nil {
			// The backend accepted; a malformed ack body is not a failure.
			c.logger.Warn("unparseable acceptance body", zap.Error(err))
		}
		backendID := ack.RequestID
		if backendID == "" {
			backendID = ack.ID
		}
		return &SubmitResult{Accepted: true, BackendRequestID: backendID}, nil

	case resp.StatusCode == http.StatusBadRequest:
		var errResp errorResponse
		var fields []string
		if err := json.Unmarshal(body, &errResp); err == nil {
			for field := range errResp.Errors {
				fields = append(fields, field)
			}
		}
		return nil, apperrors.BackendValidation(fields)

	case resp.StatusCode >= 500:
		return nil, apperrors.ErrBackendUnavailable

	default:
		return nil, fmt.Errorf("backend returned status %d: %s", resp.StatusCode, string(body))
	}
}

// isConnectionError reports whether the request never reached the backend.
func isConnectionError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
