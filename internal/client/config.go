package client

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Config contains the settings for a new Client.
type Config struct {
	// BaseURLs lists the API address of every node, e.g.
	// ["http://bot-a:8080", "http://bot-b:8080"]. Read calls try them in
	// order; admin calls prefer the node last seen active.
	BaseURLs []string

	// OperatorToken is the plaintext operator token for admin endpoints.
	// Optional for read-only use.
	OperatorToken string

	// HTTPClient is the HTTP client to use for requests.
	// Optional: if nil, a default client is built from Timeout.
	HTTPClient *http.Client

	// RetryAttempts is the number of retries on network and 5xx errors.
	// Default: 2. Negative disables retries.
	RetryAttempts int

	// RetryWaitMin is the minimum wait time between retries.
	// Default: 200 milliseconds
	RetryWaitMin time.Duration

	// RetryWaitMax is the maximum wait time between retries.
	// Default: 5 seconds
	RetryWaitMax time.Duration

	// Timeout is the HTTP request timeout.
	// Default: 10 seconds
	Timeout time.Duration
}

// Validate checks the configuration and fills defaults.
func (c *Config) Validate() error {
	if len(c.BaseURLs) == 0 {
		return fmt.Errorf("%w: at least one base URL is required", ErrInvalidConfig)
	}

	for i, url := range c.BaseURLs {
		url = strings.TrimSuffix(strings.TrimSpace(url), "/")
		if url == "" {
			return fmt.Errorf("%w: base URL at index %d is empty", ErrInvalidConfig, i)
		}
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			return fmt.Errorf("%w: base URL must start with http:// or https://", ErrInvalidConfig)
		}
		c.BaseURLs[i] = url
	}

	switch {
	case c.RetryAttempts == 0:
		c.RetryAttempts = 2
	case c.RetryAttempts < 0:
		c.RetryAttempts = 0
	}
	if c.RetryWaitMin == 0 {
		c.RetryWaitMin = 200 * time.Millisecond
	}
	if c.RetryWaitMax == 0 {
		c.RetryWaitMax = 5 * time.Second
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}

	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{
			Timeout: c.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	return nil
}
