package spotify

import (
	"context"
	"net/http"
	"strconv"
	"time"
)

// doWithRetry sends the request, retrying rate limited responses for every method and server or
// transport failures only for idempotent methods.
//
// Skips are POSTs: repeating one after an ambiguous failure could skip twice.
func (c *Client) doWithRetry(ctx context.Context, r request, token string, payload []byte) (*http.Response, error) {
	idempotent := r.method != http.MethodPost

	for attempt := 0; ; attempt++ {
		resp, err := c.attempt(ctx, r, token, payload)
		if ctx.Err() != nil {
			if resp != nil {
				resp.Body.Close()
			}
			return nil, ctx.Err()
		}

		retryAfter, retry := shouldRetry(resp, err, idempotent)
		if !retry || attempt >= c.maxRetries {
			return resp, err
		}

		backoff := c.backoff * time.Duration(1<<attempt)
		if retryAfter > 0 {
			backoff = retryAfter
		}
		if backoff > c.maxRetryWait {
			return resp, err
		}

		if err != nil {
			c.logger.Warn("retrying request", "op", r.op(), "attempt", attempt+1, "max", c.maxRetries, "error", err)
		} else {
			c.logger.Warn("retrying request", "op", r.op(), "attempt", attempt+1, "max", c.maxRetries, "status", resp.StatusCode)
			resp.Body.Close()
		}

		if err := sleepWithContext(ctx, backoff); err != nil {
			return nil, err
		}
	}
}

func shouldRetry(resp *http.Response, err error, idempotent bool) (time.Duration, bool) {
	if err != nil {
		return 0, idempotent
	}
	if resp == nil {
		return 0, false
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return parseRetryAfter(resp), true
	case resp.StatusCode >= http.StatusInternalServerError:
		return parseRetryAfter(resp), idempotent
	}
	return 0, false
}

func parseRetryAfter(resp *http.Response) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if when, err := http.ParseTime(retryAfter); err == nil {
		if until := time.Until(when); until > 0 {
			return until
		}
	}

	return 0
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
