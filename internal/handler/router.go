package handler

import (
	"github.com/ad-tracker/engagement-exchange-go/internal/middleware"
	"github.com/ad-tracker/engagement-exchange-go/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterConfig collects what NewRouter wires together.
type RouterConfig struct {
	Exchange     *service.Exchange
	AdminAPIKeys []string
	Health       *HealthHandler
	// Bans short-circuits requests from banned users on the pool and upload
	// routes; nil leaves the check to the services.
	Bans middleware.BanChecker
	// Gatherer backs /metrics; nil leaves the route out.
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// NewRouter builds the gin engine with the intent, admin, health and metrics
// routes.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger))

	health := cfg.Health
	if health == nil {
		health = NewHealthHandler(nil, nil)
	}
	r.GET("/health/live", health.LivenessProbe)
	r.GET("/health/ready", health.ReadinessProbe)

	if cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	ex := NewExchangeHandler(cfg.Exchange, logger)
	gate := middleware.BanGate(cfg.Bans, logger)
	api := r.Group("/api/v1", middleware.UserIdentity())
	{
		api.POST("/users", ex.Register)
		api.POST("/ready", gate, ex.Ready)
		api.POST("/pause", ex.Pause)
		api.POST("/resume", ex.Resume)
		api.GET("/status", ex.Status)

		api.POST("/videos", gate, ex.UploadVideo)
		api.GET("/videos", ex.ListVideos)
		api.DELETE("/videos/:id", ex.RemoveVideo)

		api.GET("/tasks/current", ex.CurrentTask)
		api.POST("/tasks/:id/proof", ex.SubmitProof)
		api.POST("/tasks/:id/review", ex.Review)
	}

	admin := NewAdminHandler(cfg.Exchange, logger)
	auth := middleware.NewAPIKeyAuth(cfg.AdminAPIKeys, logger)
	adm := r.Group("/api/v1/admin", auth.Handler())
	{
		adm.GET("/users", admin.ListUsers)
		adm.GET("/users/:id", admin.GetUser())
		adm.POST("/users/:id/ban", admin.Ban())
		adm.POST("/users/:id/unban", admin.Unban())
		adm.POST("/users/:id/strike", admin.Strike())
		adm.POST("/users/:id/remove-strike", admin.RemoveStrike())

		adm.GET("/tasks/:id", admin.GetTask)
		adm.DELETE("/videos/:id", admin.TakedownVideo)

		adm.GET("/stats", admin.Stats)
		adm.GET("/complaints", admin.ListComplaints)
		adm.POST("/complaints/:id/close", admin.CloseComplaint)
		adm.POST("/sweep", admin.Sweep)
	}

	return r
}
