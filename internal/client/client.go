// Package client is an HTTP client for the modekeeper node API.
//
// A Client knows every node of a cluster. Read calls go to the first node
// that answers; mode changes and registry updates prefer the node last
// seen active and fall back to the others when it is unreachable.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/yaroslav/modekeeper/internal/api/middleware"
	"github.com/yaroslav/modekeeper/models"
)

// HeaderOperatorToken carries the operator token on admin calls.
const HeaderOperatorToken = middleware.HeaderOperatorToken

// Client talks to one or more modekeeper nodes.
type Client struct {
	baseURLs      []string
	operatorToken string
	httpClient    *http.Client

	retryAttempts int
	retryWaitMin  time.Duration
	retryWaitMax  time.Duration

	// activeURL is the cached URL of the node last seen active.
	activeURL string
	mu        sync.RWMutex
}

// NodeStatus is the status answer of a single node.
type NodeStatus struct {
	URL    string
	Status *models.StatusResponse
	Err    error
}

// New creates a client after validating config.
func New(config Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Client{
		baseURLs:      config.BaseURLs,
		operatorToken: config.OperatorToken,
		httpClient:    config.HTTPClient,
		retryAttempts: config.RetryAttempts,
		retryWaitMin:  config.RetryWaitMin,
		retryWaitMax:  config.RetryWaitMax,
	}, nil
}

// DiscoverActive asks every node for its status and caches the first one
// holding the active flag. Returns ErrNoActiveNode if none does.
func (c *Client) DiscoverActive(ctx context.Context) (string, error) {
	for _, st := range c.StatusAll(ctx) {
		if st.Err == nil && st.Status.Active {
			c.mu.Lock()
			c.activeURL = st.URL
			c.mu.Unlock()
			return st.URL, nil
		}
	}
	return "", ErrNoActiveNode
}

func (c *Client) getActiveURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.activeURL
}

func (c *Client) clearActiveCache() {
	c.mu.Lock()
	c.activeURL = ""
	c.mu.Unlock()
}

// buildURLList puts the cached active node first when preferActive is set.
func (c *Client) buildURLList(preferActive bool) []string {
	active := c.getActiveURL()
	if !preferActive || active == "" {
		return c.baseURLs
	}

	urls := []string{active}
	for _, u := range c.baseURLs {
		if u != active {
			urls = append(urls, u)
		}
	}
	return urls
}

// do performs a JSON request against the first reachable node and decodes
// the "data" member of the answer into dest.
func (c *Client) do(ctx context.Context, method, path string, reqBody, dest interface{}, admin, preferActive bool) error {
	if admin && c.operatorToken == "" {
		return ErrMissingAuth
	}

	var body []byte
	if reqBody != nil {
		var err error
		if body, err = json.Marshal(reqBody); err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	urls := c.buildURLList(preferActive)
	if len(urls) == 0 {
		return ErrNoBaseURLs
	}

	var lastErr error
	for _, baseURL := range urls {
		resp, err := c.doWithRetry(ctx, method, baseURL+path, body)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if baseURL == c.getActiveURL() {
				c.clearActiveCache()
			}
			continue
		}

		if resp.StatusCode >= 500 && resp.StatusCode != http.StatusServiceUnavailable {
			lastErr = parseErrorResponse(resp)
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return parseErrorResponse(resp)
		}
		return parseDataResponse(resp, dest)
	}

	if lastErr != nil {
		return fmt.Errorf("%w: %v", ErrAllInstancesFailed, lastErr)
	}
	return ErrAllInstancesFailed
}

func parseDataResponse(resp *http.Response, dest interface{}) error {
	defer drainAndCloseBody(resp)
	if dest == nil {
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("failed to parse JSON response: %w", err)
	}
	if len(envelope.Data) == 0 {
		return errors.New("response has no data")
	}
	if err := json.Unmarshal(envelope.Data, dest); err != nil {
		return fmt.Errorf("failed to parse JSON response: %w", err)
	}
	return nil
}

func parseErrorResponse(resp *http.Response) error {
	defer drainAndCloseBody(resp)

	apiErr := &APIError{StatusCode: resp.StatusCode}
	raw, err := io.ReadAll(resp.Body)
	if err == nil {
		var body models.ErrorResponse
		if json.Unmarshal(raw, &body) == nil {
			apiErr.Code = body.Error
			apiErr.Message = body.Message
			apiErr.RequestID = body.RequestID
		}
	}
	return apiErr
}

// Status returns the status of the first node that answers.
func (c *Client) Status(ctx context.Context) (*models.StatusResponse, error) {
	var status models.StatusResponse
	if err := c.do(ctx, http.MethodGet, "/status", nil, &status, false, false); err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	return &status, nil
}

// StatusAll queries every node concurrently. Results keep the order of
// the configured base URLs.
func (c *Client) StatusAll(ctx context.Context) []NodeStatus {
	results := make([]NodeStatus, len(c.baseURLs))

	var wg sync.WaitGroup
	for i, baseURL := range c.baseURLs {
		wg.Add(1)
		go func(i int, baseURL string) {
			defer wg.Done()
			results[i] = c.statusOf(ctx, baseURL)
		}(i, baseURL)
	}
	wg.Wait()

	return results
}

func (c *Client) statusOf(ctx context.Context, baseURL string) NodeStatus {
	result := NodeStatus{URL: baseURL}

	resp, err := c.doWithRetry(ctx, http.MethodGet, baseURL+"/status", nil)
	if err != nil {
		result.Err = err
		return result
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		result.Err = parseErrorResponse(resp)
		return result
	}

	var status models.StatusResponse
	if err := parseDataResponse(resp, &status); err != nil {
		result.Err = err
		return result
	}
	result.Status = &status
	return result
}

// SetMode asks a node to change the bot mode. Requires an operator token.
func (c *Client) SetMode(ctx context.Context, mode models.Mode, text string) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", models.ErrUnknownMode, mode)
	}

	req := models.ModeChangeRequest{Mode: mode.Token(), Text: text}
	if err := c.do(ctx, http.MethodPost, "/api/v1/mode", req, nil, true, true); err != nil {
		return fmt.Errorf("failed to set mode: %w", err)
	}
	return nil
}

// ListNodes returns every registry row.
func (c *Client) ListNodes(ctx context.Context) (*models.ClusterNodeListResponse, error) {
	var list models.ClusterNodeListResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/cluster/nodes", nil, &list, false, false); err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	return &list, nil
}

// TransferNode makes the named node release its active flag.
func (c *Client) TransferNode(ctx context.Context, name string) (*models.ClusterNodeInfo, error) {
	return c.nodeAction(ctx, name, "transfer")
}

// DisableNode removes the named node from failover candidacy.
func (c *Client) DisableNode(ctx context.Context, name string) (*models.ClusterNodeInfo, error) {
	return c.nodeAction(ctx, name, "disable")
}

// EnableNode returns the named node to failover candidacy.
func (c *Client) EnableNode(ctx context.Context, name string) (*models.ClusterNodeInfo, error) {
	return c.nodeAction(ctx, name, "enable")
}

func (c *Client) nodeAction(ctx context.Context, name, action string) (*models.ClusterNodeInfo, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty node name", models.ErrInvalidNodeName)
	}

	path := fmt.Sprintf("/api/v1/cluster/nodes/%s/%s", url.PathEscape(name), action)

	var info models.ClusterNodeInfo
	if err := c.do(ctx, http.MethodPost, path, nil, &info, true, true); err != nil {
		return nil, fmt.Errorf("failed to %s node %s: %w", action, name, err)
	}
	return &info, nil
}
