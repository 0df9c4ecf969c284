package bootstrap

import (
	"database/sql"

	httpapi "github.com/ea-integrations/process-sync/internal/api/http"
	"github.com/ea-integrations/process-sync/internal/api/http/middleware"
	"github.com/ea-integrations/process-sync/internal/metrics"
	"github.com/ea-integrations/process-sync/internal/process_sync/domain"
	synchttp "github.com/ea-integrations/process-sync/internal/process_sync/http"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type RouterDeps struct {
	ServiceName string
	Version     string
	Runs        synchttp.RunService
	Jobs        []domain.Job
	Metrics     *metrics.Registry
	DB          *sql.DB
	Redis       *redis.Client
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())
	r.Use(middleware.RequestIDMiddleware())
	if dep.Metrics != nil {
		r.Use(middleware.MetricsMiddleware(dep.Metrics))
		r.GET("/metrics", gin.WrapH(dep.Metrics.Handler()))
	}

	var db, cache httpapi.Pinger
	if dep.DB != nil {
		db = dep.DB
	}
	if dep.Redis != nil {
		cache = redisPinger{client: dep.Redis}
	}
	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Version, db, cache)
	healthHandler.RegisterRoutes(r)

	api := r.Group("/api/v1")
	syncHandler := synchttp.New(dep.Runs, dep.Jobs)
	syncHandler.Register(api.Group("/process-sync"))

	return r
}
