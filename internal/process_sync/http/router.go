package http

import "github.com/gin-gonic/gin"

// Register registers the process sync routes
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/jobs", h.ListJobs)
	rg.POST("/jobs/:job/runs", h.StartRun)
	rg.DELETE("/jobs/:job/cache", h.ClearCache)
	rg.GET("/runs/:id", h.GetRun)
}
