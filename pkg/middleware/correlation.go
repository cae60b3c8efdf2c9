package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wms-platform/allocation-service/pkg/logging"
)

const (
	HeaderRequestID     = "X-Request-ID"
	HeaderCorrelationID = "X-Correlation-ID"
	HeaderCompanyID     = "X-Company-ID"
	HeaderUserID        = "X-User-ID"
)

// RequestID assigns each request a unique id, honouring an inbound header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(string(logging.RequestIDKey), requestID)
		c.Header(HeaderRequestID, requestID)

		ctx := context.WithValue(c.Request.Context(), logging.RequestIDKey, requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// CorrelationID propagates the cross-service correlation id.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(HeaderCorrelationID)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		c.Set(string(logging.CorrelationIDKey), correlationID)
		c.Header(HeaderCorrelationID, correlationID)

		ctx := context.WithValue(c.Request.Context(), logging.CorrelationIDKey, correlationID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// CompanyID extracts the tenant identifier into the request context. Routes
// requiring a tenant enforce presence via RequireCompanyID.
func CompanyID() gin.HandlerFunc {
	return func(c *gin.Context) {
		companyID := c.GetHeader(HeaderCompanyID)
		if companyID != "" {
			c.Set(string(logging.CompanyIDKey), companyID)
			ctx := context.WithValue(c.Request.Context(), logging.CompanyIDKey, companyID)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

// RequireCompanyID rejects requests without a tenant header.
func RequireCompanyID() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader(HeaderCompanyID) == "" {
			c.AbortWithStatusJSON(400, APIErrorResponse{
				Code:    "MISSING_COMPANY_ID",
				Message: "X-Company-ID header is required",
			})
			return
		}
		c.Next()
	}
}

// GetCompanyID returns the tenant id set by CompanyID middleware.
func GetCompanyID(c *gin.Context) string {
	return c.GetString(string(logging.CompanyIDKey))
}

// GetUserID returns the acting user id, if any.
func GetUserID(c *gin.Context) string {
	return c.GetHeader(HeaderUserID)
}

// Logger logs each request with latency and status.
func Logger(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		entry := logger.WithContext(c.Request.Context()).With(
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latencyMs", latency.Milliseconds(),
			"clientIp", c.ClientIP(),
		)

		switch {
		case status >= 500:
			entry.Error("Request failed")
		case status >= 400:
			entry.Warn("Request rejected")
		default:
			entry.Info("Request completed")
		}
	}
}

// Recovery recovers from panics and returns a 500 response.
func Recovery(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if recovered := recover(); recovered != nil {
				logger.Panic(c.Request.Context(), recovered)
				c.AbortWithStatusJSON(500, APIErrorResponse{
					Code:    "INTERNAL_ERROR",
					Message: "an unexpected error occurred",
				})
			}
		}()
		c.Next()
	}
}
