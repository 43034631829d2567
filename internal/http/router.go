package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func NewRouter(handler *Handler, authMiddleware gin.HandlerFunc, ping func(context.Context) error, env string) *gin.Engine {
	if env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"*"},
		ExposeHeaders:   []string{"Content-Type"},
		MaxAge:          12 * time.Hour,
	}))

	router.GET("/healthz", func(c *gin.Context) {
		if err := ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	protected := router.Group("/api/deviation-approvals")
	protected.Use(authMiddleware)
	{
		protected.GET("/dashboard", handler.dashboard)
		protected.PATCH("/bulk/status", handler.bulkUpdateStatus)

		protected.GET("", handler.listDeviations)
		protected.POST("", handler.createDeviation)
		protected.GET("/:id", handler.getDeviation)
		protected.PATCH("/:id", handler.updateDeviation)
		protected.DELETE("/:id", handler.deleteDeviation)
		protected.PATCH("/:id/approve", handler.approveDeviation)
		protected.PATCH("/:id/reject", handler.rejectDeviation)
	}

	return router
}
