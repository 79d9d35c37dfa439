package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/risecheckout/orderengine/internal/api/handlers"
	"github.com/risecheckout/orderengine/internal/api/middleware"
	"github.com/risecheckout/orderengine/internal/config"
	"github.com/risecheckout/orderengine/internal/ratelimit"
)

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, svc handlers.OrderService, limiter ratelimit.Limiter, logger *zap.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/v1")
	{
		v1.POST("/orders", middleware.RateLimit(limiter, logger), handlers.HandleCreateOrder(svc, logger))
		v1.GET("/orders/:id", handlers.HandleGetOrder(svc, logger))
		v1.POST("/orders/:id/charge", middleware.RateLimit(limiter, logger), handlers.HandleRetryCharge(svc, logger))
	}

	return router
}
