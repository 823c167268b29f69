package spotify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/vibeflow/internal/shared"
	tu "github.com/desertthunder/vibeflow/internal/testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ClientOpts) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	opts.BaseURL = srv.URL
	if opts.Backoff == 0 {
		opts.Backoff = time.Millisecond
	}
	opts.RateLimit = 1000
	opts.RateBurst = 100
	opts.Logger = shared.NewLogger(io.Discard)

	tokens := TokenFunc(func(context.Context) (string, error) { return "test-token", nil })
	return NewClient(tokens, opts)
}

func TestClientRequests(t *testing.T) {
	t.Run("sends bearer token", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
				t.Errorf("expected bearer token, got %q", got)
			}
			w.Write([]byte(`{"id":"user-1","display_name":"Listener"}`))
		}, ClientOpts{})

		user, err := c.UserProfile(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user.DisplayName != "Listener" {
			t.Errorf("expected Listener, got %s", user.DisplayName)
		}
	})

	t.Run("token errors propagate unchanged", func(t *testing.T) {
		authErr := shared.NewReauthError(400, errors.New("invalid_grant"))
		c := NewClient(TokenFunc(func(context.Context) (string, error) { return "", authErr }), ClientOpts{
			BaseURL: "http://127.0.0.1:0",
			Logger:  shared.NewLogger(io.Discard),
		})

		_, err := c.CurrentlyPlaying(context.Background())
		if err != authErr {
			t.Errorf("expected token error, got %v", err)
		}
	})

	t.Run("api error body is parsed", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error":{"status":403,"message":"Player command failed: Premium required","reason":"PREMIUM_REQUIRED"}}`))
		}, ClientOpts{})

		err := c.Pause(context.Background())
		var apiErr *shared.APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected APIError, got %v", err)
		}
		if apiErr.Reason != "PREMIUM_REQUIRED" {
			t.Errorf("expected PREMIUM_REQUIRED, got %s", apiErr.Reason)
		}
	})

	t.Run("unauthorized maps to auth error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}, ClientOpts{})

		_, err := c.UserProfile(context.Background())
		var authErr *shared.AuthError
		if !errors.As(err, &authErr) {
			t.Fatalf("expected AuthError, got %v", err)
		}
		if authErr.Status != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", authErr.Status)
		}
	})

	t.Run("timeout is remote unavailable", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}, ClientOpts{Timeout: 20 * time.Millisecond})

		_, err := c.CurrentlyPlaying(context.Background())
		var remoteErr *shared.RemoteUnavailableError
		if !errors.As(err, &remoteErr) {
			t.Fatalf("expected RemoteUnavailableError, got %v", err)
		}
		if !remoteErr.Timeout() {
			t.Errorf("expected timeout, got %v", remoteErr.Err)
		}
	})

	t.Run("caller cancellation is returned as is", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			cancel()
			<-r.Context().Done()
		}, ClientOpts{})

		_, err := c.CurrentlyPlaying(ctx)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestClientRetry(t *testing.T) {
	t.Run("retries idempotent request after server error", func(t *testing.T) {
		var hits atomic.Int32
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if hits.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Write([]byte(`{"id":"user-1"}`))
		}, ClientOpts{MaxRetries: 2})

		if _, err := c.UserProfile(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if hits.Load() != 2 {
			t.Errorf("expected 2 attempts, got %d", hits.Load())
		}
	})

	t.Run("does not retry skip after server error", func(t *testing.T) {
		var hits atomic.Int32
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}, ClientOpts{MaxRetries: 3})

		err := c.Next(context.Background())
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected service unavailable, got %v", err)
		}
		if hits.Load() != 1 {
			t.Errorf("expected a single attempt, got %d", hits.Load())
		}
	})

	t.Run("retries rate limited skip", func(t *testing.T) {
		var hits atomic.Int32
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if hits.Add(1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		}, ClientOpts{MaxRetries: 1})

		if err := c.Next(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if hits.Load() != 2 {
			t.Errorf("expected 2 attempts, got %d", hits.Load())
		}
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		var hits atomic.Int32
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusTooManyRequests)
		}, ClientOpts{MaxRetries: 2})

		_, err := c.UserProfile(context.Background())
		var apiErr *shared.APIError
		if !errors.As(err, &apiErr) || apiErr.Status != http.StatusTooManyRequests {
			t.Errorf("expected 429 APIError, got %v", err)
		}
		if hits.Load() != 3 {
			t.Errorf("expected 3 attempts, got %d", hits.Load())
		}
	})

	t.Run("long Retry-After is not waited out", func(t *testing.T) {
		var hits atomic.Int32
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.Header().Set("Retry-After", "120")
			w.WriteHeader(http.StatusTooManyRequests)
		}, ClientOpts{MaxRetries: 2})

		if _, err := c.UserProfile(context.Background()); err == nil {
			t.Error("expected error")
		}
		if hits.Load() != 1 {
			t.Errorf("expected a single attempt, got %d", hits.Load())
		}
	})
}

func TestClientTransport(t *testing.T) {
	newMockClient := func(rt http.RoundTripper) *Client {
		tokens := TokenFunc(func(context.Context) (string, error) { return "test-token", nil })
		return NewClient(tokens, ClientOpts{
			BaseURL:    "http://spotify.test/v1",
			HTTPClient: &http.Client{Transport: rt},
			Logger:     shared.NewLogger(io.Discard),
		})
	}

	t.Run("transport error is remote unavailable", func(t *testing.T) {
		c := newMockClient(tu.NewMockRoundTripper(nil, errors.New("connection refused")))

		_, err := c.UserProfile(context.Background())
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected service unavailable, got %v", err)
		}
	})

	t.Run("unreadable body is remote unavailable", func(t *testing.T) {
		resp := tu.JSONResponse(http.StatusOK, "")
		resp.Body = &tu.FCloser{}
		c := newMockClient(tu.NewMockRoundTripper(resp, nil))

		_, err := c.UserProfile(context.Background())
		var unavailable *shared.RemoteUnavailableError
		if !errors.As(err, &unavailable) {
			t.Fatalf("expected RemoteUnavailableError, got %v", err)
		}
		if unavailable.Op != "GET /me" {
			t.Errorf("expected op GET /me, got %q", unavailable.Op)
		}
	})

	t.Run("malformed JSON is a decode error", func(t *testing.T) {
		c := newMockClient(tu.NewMockRoundTripper(tu.JSONResponse(http.StatusOK, `{"id":`), nil))

		_, err := c.UserProfile(context.Background())
		if err == nil {
			t.Fatal("expected decode error")
		}
		if errors.Is(err, shared.ErrServiceUnavailable) || errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("decode error misclassified: %v", err)
		}
	})

	t.Run("401 is a transient auth error", func(t *testing.T) {
		body := `{"error":{"status":401,"message":"The access token expired"}}`
		c := newMockClient(tu.NewMockRoundTripper(tu.JSONResponse(http.StatusUnauthorized, body), nil))

		_, err := c.UserProfile(context.Background())
		var authErr *shared.AuthError
		if !errors.As(err, &authErr) {
			t.Fatalf("expected AuthError, got %v", err)
		}
		if authErr.ReauthRequired {
			t.Error("expected a transient auth error")
		}
	})
}

func TestParseRetryAfter(t *testing.T) {
	tc := []struct {
		name   string
		header string
		want   time.Duration
	}{
		{name: "empty", header: "", want: 0},
		{name: "seconds", header: "3", want: 3 * time.Second},
		{name: "negative", header: "-1", want: 0},
		{name: "garbage", header: "soon", want: 0},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{Header: http.Header{}}
			if tt.header != "" {
				resp.Header.Set("Retry-After", tt.header)
			}
			if got := parseRetryAfter(resp); got != tt.want {
				t.Errorf("parseRetryAfter() = %v, want %v", got, tt.want)
			}
		})
	}
}
