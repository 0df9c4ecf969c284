package celonis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ea-integrations/process-sync/internal/logging"
	"github.com/ea-integrations/process-sync/internal/metrics"
	"github.com/ea-integrations/process-sync/internal/process_sync/domain"
	"github.com/ea-integrations/process-sync/internal/retry"
	"golang.org/x/time/rate"
)

const (
	systemName = "celonis"

	authHeader       = "symbio-auth-token"
	dataPath         = "/_api/v2/data/elements"
	bpmnPath         = "/_api/v1/bpmn"
	defaultNavigator = "https://navigator.symbio.cloud"
	tileImageKey     = "tileImage"
)

// Defaults
const (
	DefaultStorageCollection = "Processworld"
	DefaultFacet             = "processes"
	DefaultLCID              = 1033
	DefaultTimeout           = 20 * time.Second
)

// DefaultRetryPolicy retries five times, waiting 2s doubling up to 60s.
var DefaultRetryPolicy = retry.Policy{Attempts: 5, Initial: 2 * time.Second, Max: 60 * time.Second, Jitter: 0.2}

// Config configures the process modeler client.
type Config struct {
	Tenant            string
	AuthToken         string
	StorageCollection string
	Facet             string
	LCID              int

	// NavigatorCollectionID is the data collection shown in the navigator.
	NavigatorCollectionID string
	NavigatorBaseURL      string

	// BaseURL overrides https://{tenant}.symbioweb.com/{tenant}/{collection}.
	BaseURL string

	RateLimit float64
	Burst     int
	Timeout   time.Duration
	Retry     retry.Policy
}

// Client talks to the process modeler REST API.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *metrics.Registry
}

// NewClient creates a client. m may be nil.
func NewClient(cfg Config, m *metrics.Registry) (*Client, error) {
	if cfg.Tenant == "" && cfg.BaseURL == "" {
		return nil, errors.New("celonis tenant is required")
	}
	if cfg.StorageCollection == "" {
		cfg.StorageCollection = DefaultStorageCollection
	}
	if cfg.Facet == "" {
		cfg.Facet = DefaultFacet
	}
	if cfg.LCID == 0 {
		cfg.LCID = DefaultLCID
	}
	if cfg.NavigatorBaseURL == "" {
		cfg.NavigatorBaseURL = defaultNavigator
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retry.Attempts == 0 {
		cfg.Retry = DefaultRetryPolicy
	}

	base := cfg.BaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s.symbioweb.com/%s/%s", cfg.Tenant, cfg.Tenant, cfg.StorageCollection)
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		cfg:        cfg,
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, burst),
		metrics:    m,
	}, nil
}

// Attribute is one attribute of a process element.
type Attribute struct {
	Key    string           `json:"key"`
	Values []map[string]any `json:"values"`
}

type element struct {
	ID         string      `json:"id"`
	Attributes []Attribute `json:"attributes"`
	Children   []struct {
		ID         string         `json:"id"`
		Properties map[string]any `json:"properties"`
	} `json:"children"`
}

// Fetch loads a process element with the IDs of its child processes.
func (c *Client) Fetch(ctx context.Context, id string) (domain.RawProcess, error) {
	body, err := c.get(ctx, "fetch_process", c.baseURL+dataPath+"/"+url.PathEscape(id), nil)
	if err != nil {
		return domain.RawProcess{}, err
	}

	var el element
	if err := json.Unmarshal(body, &el); err != nil {
		return domain.RawProcess{}, fmt.Errorf("decode process %s: %w", id, err)
	}

	raw := domain.RawProcess{ID: id, Attributes: FlattenAttributes(el.Attributes)}
	seen := make(map[string]bool)
	for _, child := range el.Children {
		if facet, _ := child.Properties["facetName"].(string); facet != c.cfg.Facet {
			continue
		}
		if child.ID == "" || seen[child.ID] {
			continue
		}
		seen[child.ID] = true
		raw.ChildIDs = append(raw.ChildIDs, child.ID)
	}
	return raw, nil
}

// ResolveOwnerGroup reads the owner group attribute from the detail view of
// a diagram. It returns "" when the attribute is not set.
func (c *Client) ResolveOwnerGroup(ctx context.Context, diagramID string) (string, error) {
	value, err := c.customAttribute(ctx, diagramID, domain.AttrOwnerGroup)
	if err != nil {
		return "", err
	}
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []any:
		if len(v) > 0 {
			s, _ := v[0].(string)
			return s, nil
		}
		return "", nil
	default:
		return fmt.Sprint(v), nil
	}
}

func (c *Client) customAttribute(ctx context.Context, id, key string) (any, error) {
	body, err := c.get(ctx, "custom_attribute", c.baseURL+dataPath+"/"+url.PathEscape(id), url.Values{"View": {"detail"}})
	if err != nil {
		return nil, err
	}
	var el element
	if err := json.Unmarshal(body, &el); err != nil {
		return nil, fmt.Errorf("decode process %s: %w", id, err)
	}
	for _, a := range el.Attributes {
		if a.Key == key {
			return attributeValue(a), nil
		}
	}
	return nil, nil
}

// FetchDiagram returns the raw BPMN markup of a diagram.
func (c *Client) FetchDiagram(ctx context.Context, diagramID string) (string, error) {
	body, err := c.get(ctx, "fetch_diagram", c.baseURL+bpmnPath+"/"+url.PathEscape(diagramID), url.Values{"exportRepositoryElements": {"true"}})
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// NavigatorURL links to the journal page of a diagram in the navigator.
func (c *Client) NavigatorURL(diagramID string) string {
	return fmt.Sprintf("%s/%s/%s/journal/%s", strings.TrimRight(c.cfg.NavigatorBaseURL, "/"), c.cfg.Tenant, c.cfg.NavigatorCollectionID, diagramID)
}

// DesignerURL links to a diagram in the process designer.
func (c *Client) DesignerURL(diagramID string) string {
	return fmt.Sprintf("%s/%d/BasePlugin/GoTo/Processes/treeanddiagram/%s", c.baseURL, c.cfg.LCID, diagramID)
}

// FlattenAttributes turns the attribute list of an element into a key/value
// map: one value becomes a scalar, several a list, none nil. Tile images are
// dropped and the diagram ID is derived from the goto URL.
func FlattenAttributes(attrs []Attribute) map[string]any {
	kv := make(map[string]any, len(attrs))
	for _, a := range attrs {
		if a.Key == tileImageKey {
			continue
		}
		v := attributeValue(a)
		kv[a.Key] = v
		if a.Key == domain.AttrGotoURL {
			if s, ok := v.(string); ok {
				parts := strings.Split(s, "/")
				kv[domain.AttrDiagramID] = parts[len(parts)-1]
			}
		}
	}
	return kv
}

func attributeValue(a Attribute) any {
	var values []any
	for _, v := range a.Values {
		if value, ok := v["value"]; ok {
			values = append(values, value)
		}
	}
	switch len(values) {
	case 0:
		return nil
	case 1:
		return values[0]
	default:
		return values
	}
}

// get performs a rate-limited GET with retries on transport errors, 429 and
// 5xx responses.
func (c *Client) get(ctx context.Context, op, endpoint string, args url.Values) ([]byte, error) {
	logger := logging.NewLogger(ctx)

	q := url.Values{}
	q.Set("Facet", c.cfg.Facet)
	q.Set("Lcid", strconv.Itoa(c.cfg.LCID))
	for k, vs := range args {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	reqURL := endpoint + "?" + q.Encode()

	var body []byte
	err := retry.Do(ctx, c.cfg.Retry, func(int) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}
		b, err := c.do(ctx, reqURL)
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

func (c *Client) do(ctx context.Context, reqURL string) ([]byte, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set(authHeader, c.cfg.AuthToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(0, start)
		if ctx.Err() != nil {
			return nil, retry.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()
	c.record(resp.StatusCode, start)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, retry.Permanent(domain.ErrProcessNotFound)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, retry.Permanent(fmt.Errorf("%w: process modeler returned status %d", domain.ErrUnauthorized, resp.StatusCode))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("process modeler returned status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, retry.Permanent(fmt.Errorf("process modeler returned status %d: %s", resp.StatusCode, truncate(body, 200)))
	}
	return body, nil
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
