package algod

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// tokenHeader carries the algod API token.
	tokenHeader = "X-Algo-API-Token"

	// maxErrorBody caps how much of an error body ends up in messages.
	maxErrorBody = 512
)

// Config holds configuration for the algod REST client.
type Config struct {
	// BaseURL is the base URL of the algod node.
	// Default: https://testnet-api.algonode.cloud
	BaseURL string

	// Token is the algod API token. Public endpoints accept an empty one.
	Token string

	// RateLimit is the number of requests per second allowed.
	// Default: 10
	RateLimit int

	// Timeout is the HTTP request timeout.
	// Default: 15 seconds
	Timeout time.Duration

	// RetryAttempts is the number of retry attempts for failed reads.
	// Broadcasts are never retried.
	// Default: 3
	RetryAttempts int

	// RetryDelay is the base delay between retry attempts.
	// Default: 1 second
	RetryDelay time.Duration
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:       "https://testnet-api.algonode.cloud",
		RateLimit:     10,
		Timeout:       15 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    time.Second,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrBaseURLRequired
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if c.RateLimit < 1 {
		return fmt.Errorf("rate limit must be >= 1, got %d", c.RateLimit)
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("retry attempts must be >= 0, got %d",
			c.RetryAttempts)
	}
	return nil
}

// Client is an HTTP client for the algod v2 API with rate limiting.
type Client struct {
	cfg *Config

	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

// NewClient creates a new algod API client.
func NewClient(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit)

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: limiter,
	}
}

// request describes one call against the node.
type request struct {
	method      string
	path        string
	body        []byte
	contentType string

	// retry allows the call to be repeated on transport failures, 429 and
	// 5xx. Only idempotent reads set it.
	retry bool
}

// doRequest performs an HTTP request with rate limiting and retries.
func (c *Client) doRequest(ctx context.Context, r request) ([]byte, error) {
	target := strings.TrimSuffix(c.cfg.BaseURL, "/") + r.path

	attempts := 0
	if r.retry {
		attempts = c.cfg.RetryAttempts
	}

	var lastErr error
	for attempt := 0; attempt <= attempts; attempt++ {
		if attempt > 0 {
			delay := c.cfg.RetryDelay * time.Duration(attempt)
			if errors.Is(lastErr, errRateLimited) {
				delay *= 2
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		var reqBody io.Reader
		if r.body != nil {
			reqBody = bytes.NewReader(r.body)
		}

		req, err := http.NewRequestWithContext(ctx, r.method, target, reqBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		if r.contentType != "" {
			req.Header.Set("Content-Type", r.contentType)
		}
		if c.cfg.Token != "" {
			req.Header.Set(tokenHeader, c.cfg.Token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("HTTP request failed: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response body: %w", err)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return respBody, nil
		}

		msg := errorMessage(respBody)
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, fmt.Errorf("%w: %s", ErrNotFound, msg)

		case resp.StatusCode == http.StatusBadRequest:
			return nil, fmt.Errorf("%w: %s", ErrBadRequest, msg)

		case resp.StatusCode == http.StatusUnauthorized,
			resp.StatusCode == http.StatusForbidden:

			return nil, fmt.Errorf("%w (%d): %s", ErrUnauthorized,
				resp.StatusCode, msg)

		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("%w: rate limited by server (429)",
				errRateLimited)

		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("server error (%d): %s",
				resp.StatusCode, msg)

		default:
			return nil, fmt.Errorf("unexpected status code %d: %s",
				resp.StatusCode, msg)
		}
	}

	return nil, fmt.Errorf("%w: request failed after %d attempts: %v",
		ErrServer, attempts+1, lastErr)
}

// errRateLimited marks 429 answers so the backoff doubles.
var errRateLimited = errors.New("rate limited")

// errorMessage extracts algod's error message from a response body.
func errorMessage(body []byte) string {
	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err == nil && resp.Message != "" {
		return resp.Message
	}
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return strings.TrimSpace(string(body))
}

// getJSON performs a retried GET and decodes the JSON answer into v.
func (c *Client) getJSON(ctx context.Context, path string, v interface{}) error {
	respBody, err := c.doRequest(ctx, request{
		method: http.MethodGet,
		path:   path,
		retry:  true,
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(respBody, v); err != nil {
		return fmt.Errorf("failed to parse response of %s: %w", path, err)
	}

	return nil
}

// Status retrieves the node status.
func (c *Client) Status(ctx context.Context) (*NodeStatus, error) {
	var status NodeStatus
	if err := c.getJSON(ctx, "/v2/status", &status); err != nil {
		return nil, err
	}

	return &status, nil
}

// TransactionParams retrieves the suggested transaction parameters.
func (c *Client) TransactionParams(ctx context.Context) (*TransactionParams, error) {
	var params TransactionParams
	err := c.getJSON(ctx, "/v2/transactions/params", &params)
	if err != nil {
		return nil, err
	}

	return &params, nil
}

// AccountInformation retrieves an account with its asset holdings.
func (c *Client) AccountInformation(ctx context.Context, address string) (*AccountResponse, error) {
	path := fmt.Sprintf("/v2/accounts/%s?format=json",
		url.PathEscape(address))

	var account AccountResponse
	if err := c.getJSON(ctx, path, &account); err != nil {
		return nil, err
	}

	return &account, nil
}

// PendingTransactionInformation retrieves the pool view of a transaction.
func (c *Client) PendingTransactionInformation(ctx context.Context, txid string) (*PendingTransactionResponse, error) {
	path := fmt.Sprintf("/v2/transactions/pending/%s?format=json",
		url.PathEscape(txid))

	var pending PendingTransactionResponse
	if err := c.getJSON(ctx, path, &pending); err != nil {
		return nil, err
	}

	return &pending, nil
}

// SendRawTransaction broadcasts signed transaction bytes. A group is sent as
// the concatenation of its signed members. The call is never retried, a
// repeated broadcast of the same bytes would be rejected as a duplicate.
func (c *Client) SendRawTransaction(ctx context.Context, raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("no transaction bytes to send")
	}

	respBody, err := c.doRequest(ctx, request{
		method:      http.MethodPost,
		path:        "/v2/transactions",
		body:        raw,
		contentType: "application/x-binary",
	})
	if err != nil {
		return "", fmt.Errorf("failed to broadcast transaction: %w", err)
	}

	var resp PostTransactionsResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("failed to parse broadcast response: %w",
			err)
	}

	return resp.TxID, nil
}
