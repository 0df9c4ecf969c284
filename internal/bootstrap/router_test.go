package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ea-integrations/process-sync/internal/metrics"
	"github.com/ea-integrations/process-sync/internal/process_sync/domain"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type idleRuns struct{}

func (idleRuns) Start(ctx context.Context, job domain.Job) (string, error) { return "run-1", nil }
func (idleRuns) Summary(ctx context.Context, runID string) (*domain.RunSummary, error) {
	return nil, domain.ErrRunNotFound
}
func (idleRuns) ClearCache(ctx context.Context, job domain.Job) error { return nil }
func (idleRuns) Running() bool                                        { return false }

func TestBuildRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := BuildRouter(RouterDeps{
		ServiceName: "process-sync",
		Version:     "test",
		Runs:        idleRuns{},
		Jobs:        []domain.Job{{Name: "default", RootProcessID: "root", MaxDepth: 4}},
		Metrics:     metrics.NewRegistry(),
	})

	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/api/v1/process-sync/jobs", http.StatusOK},
		{http.MethodPost, "/api/v1/process-sync/jobs/default/runs", http.StatusAccepted},
		{http.MethodGet, "/api/v1/process-sync/runs/unknown", http.StatusNotFound},
		{http.MethodDelete, "/api/v1/process-sync/jobs/default/cache", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, rr.Code)
			assert.NotEmpty(t, rr.Header().Get("X-Request-Id"))
		})
	}

	t.Run("metrics", func(t *testing.T) {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "processsync_http_requests_total")
	})
}
