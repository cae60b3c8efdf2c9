package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/allocation-service/pkg/logging"
	"github.com/wms-platform/allocation-service/pkg/metrics"
)

// Setup wires the standard middleware chain onto the engine.
func Setup(router *gin.Engine, logger *logging.Logger, m *metrics.Metrics) {
	router.Use(Recovery(logger))
	router.Use(RequestID())
	router.Use(CorrelationID())
	router.Use(CompanyID())
	router.Use(Logger(logger))
	router.Use(ErrorHandler(logger))
	router.Use(CORS())
	if m != nil {
		router.Use(Metrics(m))
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, APIErrorResponse{
			Code:    "ROUTE_NOT_FOUND",
			Message: "the requested route does not exist",
		})
	})
	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, APIErrorResponse{
			Code:    "METHOD_NOT_ALLOWED",
			Message: "method not allowed for this route",
		})
	})
}

// CORS returns a permissive CORS middleware
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, X-Correlation-ID, X-Company-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// HealthCheck returns a liveness handler
func HealthCheck(serviceName, version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   serviceName,
			"version":   version,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// ReadinessCheck returns a readiness handler probing the given dependencies.
func ReadinessCheck(checks map[string]func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = "unhealthy: " + err.Error()
				status = http.StatusServiceUnavailable
			} else {
				results[name] = "healthy"
			}
		}

		c.JSON(status, gin.H{
			"status": map[bool]string{true: "ready", false: "not ready"}[status == http.StatusOK],
			"checks": results,
		})
	}
}
