package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"
)

// doWithRetry sends a request built from body, retrying network errors and
// 5xx answers with exponential backoff. The request is rebuilt on every
// attempt so the body can be replayed.
func (c *Client) doWithRetry(ctx context.Context, method, url string, body []byte) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.retryAttempts; attempt++ {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.operatorToken != "" {
			req.Header.Set(HeaderOperatorToken, c.operatorToken)
		}

		resp, err := c.httpClient.Do(req)
		if err == nil && resp.StatusCode < 500 {
			return resp, nil
		}
		if err == nil {
			if attempt == c.retryAttempts {
				return resp, nil
			}
			drainAndCloseBody(resp)
			lastErr = fmt.Errorf("%w: status code %d", ErrServerError, resp.StatusCode)
		} else {
			lastErr = err
		}

		if attempt == c.retryAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.calculateBackoff(attempt)):
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", c.retryAttempts+1, lastErr)
}

// calculateBackoff returns a jittered exponential backoff for attempt.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := float64(c.retryWaitMin) * math.Pow(2, float64(attempt))
	if backoff > float64(c.retryWaitMax) {
		backoff = float64(c.retryWaitMax)
	}
	return time.Duration(rand.Float64() * backoff)
}

// drainAndCloseBody reads and closes the response body so the connection
// can be reused.
func drainAndCloseBody(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
}
