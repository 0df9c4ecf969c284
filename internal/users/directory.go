package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ea-integrations/process-sync/internal/logging"
	"github.com/ea-integrations/process-sync/internal/metrics"
	"github.com/ea-integrations/process-sync/internal/process_sync/domain"
	"github.com/ea-integrations/process-sync/internal/retry"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	systemName = "graph"

	defaultGraphURL     = "https://graph.microsoft.com"
	defaultAuthorityURL = "https://login.microsoftonline.com"
	graphScope          = "https://graph.microsoft.com/.default"

	selectFields = "displayName,mail,surname,givenName,jobTitle"
)

// DefaultRetryPolicy retries three times, waiting 1s doubling up to 10s.
var DefaultRetryPolicy = retry.Policy{Attempts: 3, Initial: time.Second, Max: 10 * time.Second, Jitter: 0.2}

// Config configures the directory lookup.
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string

	// GraphURL and AuthorityURL override the public cloud endpoints.
	GraphURL     string
	AuthorityURL string

	Timeout time.Duration
	Retry   retry.Policy
}

// Directory searches users in Azure AD through Microsoft Graph with an
// app-only token.
type Directory struct {
	graphURL   string
	httpClient *http.Client
	retry      retry.Policy
	metrics    *metrics.Registry
}

// NewDirectory creates a directory client. m may be nil.
func NewDirectory(cfg Config, m *metrics.Registry) (*Directory, error) {
	if cfg.TenantID == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("graph tenant, client id and client secret are required")
	}
	if cfg.GraphURL == "" {
		cfg.GraphURL = defaultGraphURL
	}
	if cfg.AuthorityURL == "" {
		cfg.AuthorityURL = defaultAuthorityURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.Retry.Attempts == 0 {
		cfg.Retry = DefaultRetryPolicy
	}

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     fmt.Sprintf("%s/%s/oauth2/v2.0/token", strings.TrimRight(cfg.AuthorityURL, "/"), cfg.TenantID),
		Scopes:       []string{graphScope},
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	base := &http.Client{Timeout: cfg.Timeout}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	client := cc.Client(tokenCtx)
	client.Timeout = cfg.Timeout

	return &Directory{
		graphURL:   strings.TrimRight(cfg.GraphURL, "/"),
		httpClient: client,
		retry:      cfg.Retry,
		metrics:    m,
	}, nil
}

// SearchByName returns the users whose display name equals name.
func (d *Directory) SearchByName(ctx context.Context, name string) ([]domain.Person, error) {
	logger := logging.NewLogger(ctx)

	q := url.Values{}
	q.Set("$filter", fmt.Sprintf("displayName eq '%s'", strings.ReplaceAll(name, "'", "''")))
	q.Set("$select", selectFields)
	reqURL := d.graphURL + "/v1.0/users?" + q.Encode()

	var body []byte
	err := retry.Do(ctx, d.retry, func(int) error {
		b, err := d.get(ctx, reqURL)
		body = b
		return err
	}, func(attempt int, err error, wait time.Duration) {
		logger.LogWarnf("search_user", "attempt=%d error=%v retry_in=%s", attempt, err, wait)
		if d.metrics != nil {
			d.metrics.RecordRetry(systemName)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search user %q: %w", name, err)
	}

	var resp struct {
		Value []domain.Person `json:"value"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode users response: %w", err)
	}
	return resp.Value, nil
}

func (d *Directory) get(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := d.httpClient.Do(req)
	if err != nil {
		d.record(0, start)
		if ctx.Err() != nil {
			return nil, retry.Permanent(ctx.Err())
		}
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode < 500 {
			return nil, retry.Permanent(fmt.Errorf("%w: token request failed: %v", domain.ErrUnauthorized, err))
		}
		return nil, err
	}
	defer resp.Body.Close()
	d.record(resp.StatusCode, start)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, retry.Permanent(fmt.Errorf("%w: graph returned status %d", domain.ErrUnauthorized, resp.StatusCode))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("graph returned status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, retry.Permanent(fmt.Errorf("graph returned status %d", resp.StatusCode))
	}
	return body, nil
}

func (d *Directory) record(status int, start time.Time) {
	if d.metrics != nil {
		d.metrics.RecordUpstream(systemName, status, time.Since(start))
	}
}
