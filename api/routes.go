// Package api exposes the analysis engine over HTTP with gin.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/siriwat/flight-season-api/pkg/cache"
	"github.com/siriwat/flight-season-api/pkg/middleware"
)

// RegisterRoutes wires the middleware stack and all API routes.
// cacheManager may be nil to disable result caching.
func RegisterRoutes(router *gin.Engine, analyzer Analyzer, cacheManager *cache.Manager) {
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		v1.POST("/analyze", AnalyzeFlightPrices(analyzer, cacheManager))
		v1.GET("/airports", GetAirports(cacheManager))
	}
}
