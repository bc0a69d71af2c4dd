package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jgarciagalvez/car-finder-ai-sub000/pkg/metrics"
	"github.com/jgarciagalvez/car-finder-ai-sub000/pkg/repository"
)

func SetupRouter(repo repository.VehicleRepository, appMetrics *metrics.ApplicationMetrics) *gin.Engine {
	r := gin.Default()
	if appMetrics != nil {
		r.Use(metricsMiddleware(appMetrics))
	}
	h := NewHandler(repo)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/vehicles", h.ListVehicles)
	r.GET("/vehicles/:id", h.GetVehicle)
	r.PATCH("/vehicles/:id", h.UpdateVehicle)

	return r
}

// metricsMiddleware records request counts and latency per route. The route
// template is used as the path label so ids do not explode cardinality.
func metricsMiddleware(m *metrics.ApplicationMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
