package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/ea-integrations/process-sync/internal/logging"
	"github.com/ea-integrations/process-sync/internal/process_sync/domain"
	"github.com/gin-gonic/gin"
)

// RunService is the part of service.Runner the status API drives.
type RunService interface {
	Start(ctx context.Context, job domain.Job) (string, error)
	Summary(ctx context.Context, runID string) (*domain.RunSummary, error)
	ClearCache(ctx context.Context, job domain.Job) error
	Running() bool
}

type Handler struct {
	runs RunService
	jobs map[string]domain.Job
	// names keeps the configured order for listing.
	names []string
}

func New(runs RunService, jobs []domain.Job) *Handler {
	h := &Handler{runs: runs, jobs: make(map[string]domain.Job, len(jobs))}
	for _, j := range jobs {
		h.jobs[j.Name] = j
		h.names = append(h.names, j.Name)
	}
	return h
}

type jobResponse struct {
	Name          string `json:"name"`
	RootProcessID string `json:"root_process_id"`
	MaxDepth      int    `json:"max_depth"`
	AttachLinks   bool   `json:"attach_links"`
	Schedule      string `json:"schedule,omitempty"`
}

// ListJobs returns the configured jobs
func (h *Handler) ListJobs(c *gin.Context) {
	out := make([]jobResponse, 0, len(h.names))
	for _, name := range h.names {
		j := h.jobs[name]
		out = append(out, jobResponse{
			Name:          j.Name,
			RootProcessID: j.RootProcessID,
			MaxDepth:      j.MaxDepth,
			AttachLinks:   j.AttachLinks,
			Schedule:      j.Schedule,
		})
	}
	c.JSON(http.StatusOK, gin.H{"jobs": out, "running": h.runs.Running()})
}

// StartRun starts a synchronization run of a job in the background
func (h *Handler) StartRun(c *gin.Context) {
	job, ok := h.job(c)
	if !ok {
		return
	}

	runID, err := h.runs.Start(c.Request.Context(), job)
	if err != nil {
		if errors.Is(err, domain.ErrRunInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": "a synchronization run is already in progress"})
			return
		}
		logging.NewLogger(c.Request.Context()).LogErrorf("start_run", "job=%s error=%v", job.Name, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start run"})
		return
	}

	c.Header("Location", "/api/v1/process-sync/runs/"+runID)
	c.JSON(http.StatusAccepted, gin.H{"run_id": runID, "job": job.Name})
}

// GetRun returns the summary of a run
func (h *Handler) GetRun(c *gin.Context) {
	runID := c.Param("id")
	if runID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "run ID is required"})
		return
	}

	summary, err := h.runs.Summary(c.Request.Context(), runID)
	if err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		logging.NewLogger(c.Request.Context()).LogErrorf("get_run", "run=%s error=%v", runID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get run"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"run": summary})
}

// ClearCache drops the cached tree of a job so the next run rebuilds it
func (h *Handler) ClearCache(c *gin.Context) {
	job, ok := h.job(c)
	if !ok {
		return
	}
	if h.runs.Running() {
		c.JSON(http.StatusConflict, gin.H{"error": "a synchronization run is in progress"})
		return
	}

	if err := h.runs.ClearCache(c.Request.Context(), job); err != nil {
		logging.NewLogger(c.Request.Context()).LogErrorf("clear_cache", "job=%s error=%v", job.Name, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear cache"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) job(c *gin.Context) (domain.Job, bool) {
	name := c.Param("job")
	job, ok := h.jobs[name]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found: " + name})
		return domain.Job{}, false
	}
	return job, true
}
