package api

import (
	"medicine_importer/internal/config"
	"medicine_importer/internal/metrics"

	"github.com/gin-gonic/gin"
)

// SetupRouter creates the gin engine with the function routes.
func SetupRouter(cfg config.ServerConfig, handler *Handler) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(MetricsMiddleware())
	router.Use(CORSMiddleware(cfg.AllowedOrigins))

	router.GET("/health", handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))
	router.GET("/storage/*path", handler.ServeObject)

	functions := router.Group("/functions/v1")
	{
		functions.POST("/import-medicine-from-url", handler.ImportMedicine)
		functions.POST("/crawl-1mg-popular", handler.Crawl)
		functions.POST("/merge-medicine-data", handler.MergeMedicine)
	}

	return router
}
