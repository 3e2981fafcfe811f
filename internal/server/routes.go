package server

import (
	"log/slog"
	"net/http"

	controllersV1 "github.com/USA-RedDragon/crashgate/internal/server/controllers/v1"
	"github.com/gin-gonic/gin"
)

func applyRoutes(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	apiV1 := r.Group("/api/v1")
	v1(apiV1)

	r.NoRoute(func(c *gin.Context) {
		slog.Warn("Not Found", "path", c.Request.URL.Path)
		c.JSON(http.StatusNotFound, gin.H{"error": "Not Found"})
	})
}

func v1(group *gin.RouterGroup) {
	group.POST("/events", controllersV1.POSTEvent)
	group.GET("/reports", requireHistory(), controllersV1.GETReports)
	group.GET("/reports/:report_id", requireHistory(), controllersV1.GETReport)
	group.GET("/uploads", requireHistory(), controllersV1.GETUploads)
	group.GET("/uploads/:id", requireHistory(), controllersV1.GETUpload)
}

func requireHistory() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get("db"); !ok {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "History is disabled"})
			return
		}
		c.Next()
	}
}
