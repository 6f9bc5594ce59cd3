// Package remote talks to the backend-as-a-service that holds the
// authoritative copy of every user's saved items.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/keepstash/keepstash/internal/domain"
	"github.com/keepstash/keepstash/internal/errors"
)

// DefaultTimeout bounds every remote call. Expiry counts as a network failure.
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of an error response is kept in the message.
const maxErrorBody = 512

// Source is the remote content API.
type Source interface {
	FetchAll(ctx context.Context, userID string) ([]domain.SavedItem, error)
	Push(ctx context.Context, item domain.SavedItem) error
}

var _ Source = (*Client)(nil)

// Client is the REST implementation of Source.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sends key as a bearer token.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithTimeout sets the per-call timeout. Defaults to DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// NewClient creates a Client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: c.timeout}
	}
	return c
}

// FetchAll returns every saved item of the user.
func (c *Client) FetchAll(ctx context.Context, userID string) ([]domain.SavedItem, error) {
	endpoint := c.baseURL + "/rest/v1/users/" + url.PathEscape(userID) + "/contents"

	var items []domain.SavedItem
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &items); err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].UserID == "" {
			items[i].UserID = userID
		}
	}
	return items, nil
}

// Push creates or replaces item on the remote.
func (c *Client) Push(ctx context.Context, item domain.SavedItem) error {
	body, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal item %s: %w", item.ID, err)
	}
	endpoint := c.baseURL + "/rest/v1/contents/" + url.PathEscape(item.ID)
	return c.do(ctx, http.MethodPut, endpoint, body, nil)
}

// Ping checks that the remote answers its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, c.baseURL+"/health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return errors.Internalf("build request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("apikey", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Networkf(err, "%s %s", method, endpoint)
	}
	defer resp.Body.Close()

	if err := checkStatus(method, endpoint, resp); err != nil {
		return err
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		// A truncated body is a transport failure, not a bad payload.
		if ctx.Err() != nil {
			return errors.Networkf(err, "%s %s", method, endpoint)
		}
		return errors.Wrapf(err, errors.CodeInternal, "decode %s %s", method, endpoint)
	}
	return nil
}

// checkStatus maps non-2xx responses onto domain errors.
func checkStatus(method, endpoint string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	cause := fmt.Errorf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errors.ErrUnauthorized.WithCause(cause)
	case resp.StatusCode == http.StatusNotFound:
		return errors.Wrapf(cause, errors.CodeNotFound, "%s %s", method, endpoint)
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		return errors.Networkf(cause, "%s %s", method, endpoint)
	default:
		return errors.Wrapf(cause, errors.CodeValidation, "%s %s", method, endpoint)
	}
}
