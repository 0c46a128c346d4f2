// Package server configures the HTTP server and routes.
package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/course-service/internal/config"
	"github.com/fleveque/course-service/internal/handler"
	"github.com/fleveque/course-service/internal/middleware"
	"github.com/fleveque/course-service/internal/search"
	"github.com/fleveque/course-service/internal/service"
)

// Deps are the wired components the routes need.
type Deps struct {
	CourseService *service.CourseService
	Searcher      search.Searcher // nil when search is not configured
	Health        map[string]handler.Pinger
}

// RegisterRoutes sets up all HTTP routes on the Gin engine.
func RegisterRoutes(r *gin.Engine, cfg *config.Config, deps Deps, logger *zap.Logger) {
	healthHandler := handler.NewHealthHandler(deps.Health, logger)
	docHandler := handler.NewDocumentHandler(deps.CourseService, logger)
	searchHandler := handler.NewSearchHandler(deps.Searcher, logger)
	adminHandler := handler.NewAdminHandler(deps.CourseService, logger)

	// Probes are public
	r.GET("/healthz", healthHandler.Healthz)
	r.GET("/readyz", healthHandler.Readyz)

	api := r.Group("/api/v1")
	api.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

	authed := api.Group("")
	authed.Use(middleware.APIKeyAuth(cfg.Auth.APIKeys, cfg.Auth.AdminKeys))
	authed.Use(middleware.RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	{
		authed.POST("/documents", docHandler.Create)
		authed.GET("/documents", docHandler.List)
		authed.GET("/documents/:id", docHandler.Get)
		authed.DELETE("/documents/:id", docHandler.Delete)
		authed.POST("/documents/:id/update", docHandler.Update)
		authed.POST("/documents/:id/actions/:action", docHandler.Action)
		authed.POST("/documents/:id/suggestions", docHandler.Suggestions)
		authed.POST("/documents/:id/search-panel", docHandler.ToggleSearchPanel)
		authed.GET("/documents/:id/versions", docHandler.Versions)
		authed.GET("/documents/:id/versions/:version", docHandler.Version)
		authed.GET("/documents/:id/versions/:version/download", docHandler.VersionDownload)
		authed.GET("/documents/:id/download", docHandler.Download)
		authed.GET("/documents/:id/print", docHandler.Print)
		authed.GET("/documents/:id/outline", docHandler.Outline)

		authed.POST("/search", searchHandler.Search)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AdminKeyAuth(cfg.Auth.APIKeys, cfg.Auth.AdminKeys))
	{
		admin.GET("/stats", adminHandler.Stats)
	}
}
