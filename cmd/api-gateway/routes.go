package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/drivematch-api/api/swagger"
	"github.com/noah-isme/drivematch-api/internal/handler"
	"github.com/noah-isme/drivematch-api/internal/middleware"
	"github.com/noah-isme/drivematch-api/internal/models"
	"github.com/noah-isme/drivematch-api/internal/service"
	"github.com/noah-isme/drivematch-api/pkg/config"
	"github.com/noah-isme/drivematch-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/drivematch-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/drivematch-api/pkg/middleware/requestid"
)

type routerDeps struct {
	tokens      *service.TokenService
	metrics     *service.MetricsService
	matching    *handler.MatchingHandler
	performance *handler.PerformanceHandler
	probes      *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", deps.probes.Health)
	r.GET("/ready", deps.probes.Ready)
	r.GET("/metrics", deps.probes.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	staff := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleStaff)
	admins := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)

	api := r.Group(cfg.APIPrefix, middleware.JWT(deps.tokens))
	api.GET("/metrics/summary", admins, deps.probes.Summary)

	matching := api.Group("/matching")
	matching.POST("/preview", staff, deps.matching.Preview)
	matching.POST("/runs", staff, deps.matching.Run)
	matching.GET("/runs", staff, deps.matching.List)
	matching.GET("/runs/:id", staff, deps.matching.Get)
	matching.GET("/runs/:id/export", staff, deps.matching.Export)
	matching.POST("/runs/:id/apply", admins, deps.matching.Apply)
	matching.POST("/runs/:id/cancel", admins, deps.matching.Cancel)

	reports := api.Group("/reports")
	reports.GET("/instructor-performance", staff, deps.performance.Instructors)

	return r
}
