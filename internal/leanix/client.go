package leanix

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ea-integrations/process-sync/internal/logging"
	"github.com/ea-integrations/process-sync/internal/metrics"
	"github.com/ea-integrations/process-sync/internal/process_sync/domain"
	"github.com/ea-integrations/process-sync/internal/retry"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	systemName = "leanix"

	tokenPath       = "/services/mtm/v1/oauth2/token"
	graphqlPath     = "/services/pathfinder/v1/graphql"
	suggestionsPath = "/services/pathfinder/v1/suggestions"

	apiTokenClientID = "apitoken"
)

// Defaults
const (
	DefaultRecordType = "BusinessContext"
	DefaultTimeout    = 30 * time.Second
)

// DefaultRetryPolicy retries three times, waiting 2s doubling up to 60s.
var DefaultRetryPolicy = retry.Policy{Attempts: 3, Initial: 2 * time.Second, Max: 60 * time.Second, Jitter: 0.2}

// Config configures the EA repository client.
type Config struct {
	// BaseURL is the workspace host, e.g. https://acme.leanix.net.
	BaseURL  string
	APIToken string

	// RecordType is the fact sheet type looked up by name when linking children.
	RecordType string

	Timeout time.Duration
	Retry   retry.Policy
}

// Client talks to the EA repository GraphQL and suggestions APIs.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	oauth      clientcredentials.Config
	metrics    *metrics.Registry

	mu     sync.Mutex
	tokens oauth2.TokenSource
}

// NewClient creates a client. m may be nil.
func NewClient(cfg Config, m *metrics.Registry) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("leanix base url is required")
	}
	if cfg.APIToken == "" {
		return nil, errors.New("leanix api token is required")
	}
	if cfg.RecordType == "" {
		cfg.RecordType = DefaultRecordType
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retry.Attempts == 0 {
		cfg.Retry = DefaultRetryPolicy
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	c := &Client{
		cfg:        cfg,
		baseURL:    base,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		oauth: clientcredentials.Config{
			ClientID:     apiTokenClientID,
			ClientSecret: cfg.APIToken,
			TokenURL:     base + tokenPath,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		metrics: m,
	}
	c.tokens = c.newTokenSource()
	return c, nil
}

func (c *Client) newTokenSource() oauth2.TokenSource {
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, c.httpClient)
	return oauth2.ReuseTokenSource(nil, c.oauth.TokenSource(tokenCtx))
}

func (c *Client) token() (*oauth2.Token, error) {
	c.mu.Lock()
	ts := c.tokens
	c.mu.Unlock()
	return ts.Token()
}

// reauthenticate drops the cached bearer token.
func (c *Client) reauthenticate() {
	c.mu.Lock()
	c.tokens = c.newTokenSource()
	c.mu.Unlock()
}

// send performs an authenticated request with retries on transport errors,
// 429 and 5xx responses.
func (c *Client) send(ctx context.Context, op, method, endpoint string, payload []byte) ([]byte, error) {
	logger := logging.NewLogger(ctx)

	var body []byte
	err := retry.Do(ctx, c.cfg.Retry, func(int) error {
		b, err := c.sendAuthenticated(ctx, op, method, endpoint, payload)
		body = b
		return err
	}, func(attempt int, err error, wait time.Duration) {
		logger.LogWarnf(op, "attempt=%d error=%v retry_in=%s", attempt, err, wait)
		if c.metrics != nil {
			c.metrics.RecordRetry(systemName)
		}
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// sendAuthenticated re-authenticates once when the token is rejected and
// repeats the call. A second rejection is returned as ErrUnauthorized.
func (c *Client) sendAuthenticated(ctx context.Context, op, method, endpoint string, payload []byte) ([]byte, error) {
	body, status, err := c.do(ctx, method, endpoint, payload)
	if status != http.StatusUnauthorized {
		return body, err
	}

	logging.NewLogger(ctx).LogInfof(op, "token rejected, re-authenticating")
	c.reauthenticate()
	body, status, err = c.do(ctx, method, endpoint, payload)
	if status == http.StatusUnauthorized {
		return nil, retry.Permanent(fmt.Errorf("%w: ea repository rejected the token twice", domain.ErrUnauthorized))
	}
	return body, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, int, error) {
	tok, err := c.token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode < 500 {
			return nil, 0, retry.Permanent(fmt.Errorf("%w: token request failed: %v", domain.ErrUnauthorized, err))
		}
		return nil, 0, fmt.Errorf("failed to obtain token: %w", err)
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, 0, retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	tok.SetAuthHeader(req)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(0, start)
		if ctx.Err() != nil {
			return nil, 0, retry.Permanent(ctx.Err())
		}
		return nil, 0, fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()
	c.record(resp.StatusCode, start)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, resp.StatusCode, nil
	case resp.StatusCode == http.StatusForbidden:
		return nil, resp.StatusCode, retry.Permanent(fmt.Errorf("%w: ea repository returned status 403", domain.ErrUnauthorized))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, resp.StatusCode, fmt.Errorf("ea repository returned status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, resp.StatusCode, retry.Permanent(fmt.Errorf("%w: ea repository returned status %d: %s", domain.ErrRecordRejected, resp.StatusCode, truncate(body, 200)))
	}
	return body, resp.StatusCode, nil
}

func (c *Client) record(status int, start time.Time) {
	if c.metrics != nil {
		c.metrics.RecordUpstream(systemName, status, time.Since(start))
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
