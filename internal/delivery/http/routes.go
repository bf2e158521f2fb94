package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hxinn/amazon-listing-ai-assistant/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, log *zap.Logger) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware(log))
	router.Use(MetricsMiddleware())
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check and metrics endpoints
	router.GET("/health", handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		verification := v1.Group("/verification")
		{
			verification.POST("/start", handler.StartVerification)
			verification.POST("/pause", handler.PauseVerification)
			verification.POST("/retry-failed", handler.RetryFailed)
			verification.POST("/cleanup", handler.CleanupResults)
			verification.POST("/sync", handler.SyncAll)
			verification.GET("/status", handler.GetStatus)
			verification.GET("/results", handler.GetResults)
			verification.GET("/stats", handler.GetStats)
			verification.DELETE("/results/:id", handler.DeleteResult)
		}
	}

	return router
}
