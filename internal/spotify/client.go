package spotify

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

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vibeflow/internal/shared"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.spotify.com/v1"

	DefaultTimeout    = 5 * time.Second
	DefaultRateLimit  = 5.0
	DefaultRateBurst  = 5
	DefaultMaxRetries = 3
	DefaultBackoff    = 500 * time.Millisecond
	// Longer Retry-After values are returned to the caller instead of waited out.
	DefaultMaxRetryWait = 10 * time.Second
)

// TokenSource supplies a valid bearer token per request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to [TokenSource].
type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// ClientOpts configures a [Client]. Zero values fall back to the package defaults, except
// MaxRetries where zero disables retrying.
type ClientOpts struct {
	BaseURL      string
	HTTPClient   *http.Client
	Timeout      time.Duration
	RateLimit    float64
	RateBurst    int
	MaxRetries   int
	Backoff      time.Duration
	MaxRetryWait time.Duration
	Market       string
	Logger       *log.Logger
}

// Client performs authenticated requests against the Web API.
type Client struct {
	tokens       TokenSource
	baseURL      string
	httpClient   *http.Client
	timeout      time.Duration
	limiter      *rate.Limiter
	maxRetries   int
	backoff      time.Duration
	maxRetryWait time.Duration
	market       string
	logger       *log.Logger
}

// NewClient creates a [Client] that authorizes every request with a token from tokens.
func NewClient(tokens TokenSource, opts ClientOpts) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = DefaultRateLimit
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = DefaultRateBurst
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.MaxRetryWait <= 0 {
		opts.MaxRetryWait = DefaultMaxRetryWait
	}
	if opts.Market == "" {
		opts.Market = "US"
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Client{
		tokens:       tokens,
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		httpClient:   opts.HTTPClient,
		timeout:      opts.Timeout,
		limiter:      rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateBurst),
		maxRetries:   opts.MaxRetries,
		backoff:      opts.Backoff,
		maxRetryWait: opts.MaxRetryWait,
		market:       opts.Market,
		logger:       shared.WithLogger(opts.Logger, "component", "spotify"),
	}
}

// request describes a single API call.
type request struct {
	method   string
	endpoint string
	query    url.Values
	body     any
}

func (r request) op() string {
	return r.method + " " + r.endpoint
}

// doRequest performs an authenticated HTTP request to the Web API and decodes a JSON body into
// result when one is present. It returns the response status.
//
// Failures are reported as:
//   - the token source's error, unchanged
//   - [*shared.RemoteUnavailableError] for transport errors, timeouts and 5xx responses
//   - [*shared.APIError] for any other non-2xx response
func (c *Client) doRequest(ctx context.Context, r request, result any) (int, error) {
	var payload []byte
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return 0, fmt.Errorf("failed to encode request body: %w", err)
		}
		payload = b
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return 0, err
	}

	resp, err := c.doWithRetry(ctx, r, token, payload)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, &shared.RemoteUnavailableError{Op: r.op(), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, &shared.RemoteUnavailableError{Op: r.op(), Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := parseAPIError(resp.StatusCode, data)
		c.logger.Debug("request failed", "op", r.op(), "status", resp.StatusCode, "reason", apiErr.Reason)
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp.StatusCode, &shared.RemoteUnavailableError{Op: r.op(), Err: apiErr}
		}
		if resp.StatusCode == http.StatusUnauthorized {
			return resp.StatusCode, &shared.AuthError{Status: resp.StatusCode, Err: apiErr}
		}
		return resp.StatusCode, apiErr
	}

	if result != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return resp.StatusCode, nil
}

// attempt sends one request bounded by the client timeout. The response body is read by the
// caller, so the per-attempt context is released when the body is closed.
func (c *Client) attempt(ctx context.Context, r request, token string, payload []byte) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := c.baseURL + r.endpoint
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(attemptCtx, r.method, u, body)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s: %v", shared.ErrTimeout, c.timeout, err)
		}
		return nil, err
	}
	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

func parseAPIError(status int, data []byte) *shared.APIError {
	apiErr := &shared.APIError{Status: status}

	var body errorBody
	if err := json.Unmarshal(data, &body); err == nil {
		apiErr.Message = body.Error.Message
		apiErr.Reason = body.Error.Reason
	}
	return apiErr
}

// statusOf returns the HTTP status carried by err, or 0.
func statusOf(err error) int {
	var apiErr *shared.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
