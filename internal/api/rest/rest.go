package rest

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures the relay routes. The middlewares guard the api group only.
func SetupRoutes(router *gin.Engine, handler Handler, middlewares ...gin.HandlerFunc) {
	// Health check endpoint (no version prefix)
	router.GET("/health", handler.HealthCheck)

	api := router.Group("/api", middlewares...)
	{
		api.POST("/send-email", handler.SendEmail)
	}
}
