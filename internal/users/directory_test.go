package users

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ea-integrations/process-sync/internal/process_sync/domain"
	"github.com/ea-integrations/process-sync/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastRetry = retry.Policy{Attempts: 3, Initial: time.Millisecond, Max: 2 * time.Millisecond}

type fakeGraph struct {
	srv        *httptest.Server
	mu         sync.Mutex
	filters    []string
	selects    []string
	failures   atomic.Int32
	rejectAuth bool
}

func newFakeGraph(t *testing.T) *fakeGraph {
	t.Helper()
	g := &fakeGraph{}
	mux := http.NewServeMux()
	mux.HandleFunc("/tenant-1/oauth2/v2.0/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if g.rejectAuth || r.PostForm.Get("client_secret") != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"graph-token","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/v1.0/users", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer graph-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if g.failures.Load() > 0 {
			g.failures.Add(-1)
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		filter := r.URL.Query().Get("$filter")
		g.mu.Lock()
		g.filters = append(g.filters, filter)
		g.selects = append(g.selects, r.URL.Query().Get("$select"))
		g.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch filter {
		case "displayName eq 'Jane Doe'":
			_, _ = w.Write([]byte(`{"value":[{"displayName":"Jane Doe","mail":"jane.doe@example.com","surname":"Doe","givenName":"Jane","jobTitle":"Process Owner"}]}`))
		case "displayName eq 'Sam Smith'":
			_, _ = w.Write([]byte(`{"value":[{"displayName":"Sam Smith","mail":"sam1@example.com"},{"displayName":"Sam Smith","mail":"sam2@example.com"}]}`))
		default:
			_, _ = w.Write([]byte(`{"value":[]}`))
		}
	})
	g.srv = httptest.NewServer(mux)
	t.Cleanup(g.srv.Close)
	return g
}

func (g *fakeGraph) last() (filter, sel string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.filters) == 0 {
		return "", ""
	}
	return g.filters[len(g.filters)-1], g.selects[len(g.selects)-1]
}

func newTestDirectory(t *testing.T, g *fakeGraph) *Directory {
	t.Helper()
	d, err := NewDirectory(Config{
		TenantID:     "tenant-1",
		ClientID:     "client-1",
		ClientSecret: "s3cret",
		GraphURL:     g.srv.URL,
		AuthorityURL: g.srv.URL,
		Retry:        fastRetry,
	}, nil)
	require.NoError(t, err)
	return d
}

func TestNewDirectory_RequiresCredentials(t *testing.T) {
	_, err := NewDirectory(Config{TenantID: "t", ClientID: "c"}, nil)
	assert.Error(t, err)
}

func TestDirectory_SearchByName(t *testing.T) {
	g := newFakeGraph(t)
	d := newTestDirectory(t, g)
	ctx := context.Background()

	t.Run("single match", func(t *testing.T) {
		people, err := d.SearchByName(ctx, "Jane Doe")
		require.NoError(t, err)
		require.Len(t, people, 1)
		assert.Equal(t, domain.Person{
			DisplayName: "Jane Doe",
			Email:       "jane.doe@example.com",
			Surname:     "Doe",
			GivenName:   "Jane",
			JobTitle:    "Process Owner",
		}, people[0])
		_, sel := g.last()
		assert.Equal(t, "displayName,mail,surname,givenName,jobTitle", sel)
	})

	t.Run("ambiguous name", func(t *testing.T) {
		people, err := d.SearchByName(ctx, "Sam Smith")
		require.NoError(t, err)
		assert.Len(t, people, 2)
	})

	t.Run("no match", func(t *testing.T) {
		people, err := d.SearchByName(ctx, "Nobody")
		require.NoError(t, err)
		assert.Empty(t, people)
	})

	t.Run("quotes are escaped", func(t *testing.T) {
		_, err := d.SearchByName(ctx, "Pat O'Brien")
		require.NoError(t, err)
		filter, _ := g.last()
		assert.Equal(t, "displayName eq 'Pat O''Brien'", filter)
	})
}

func TestDirectory_RetriesThrottling(t *testing.T) {
	g := newFakeGraph(t)
	d := newTestDirectory(t, g)
	g.failures.Store(2)

	people, err := d.SearchByName(context.Background(), "Jane Doe")
	require.NoError(t, err)
	assert.Len(t, people, 1)
}

func TestDirectory_InvalidCredentials(t *testing.T) {
	g := newFakeGraph(t)
	g.rejectAuth = true
	d := newTestDirectory(t, g)

	_, err := d.SearchByName(context.Background(), "Jane Doe")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	filter, _ := g.last()
	assert.Empty(t, filter)
}
