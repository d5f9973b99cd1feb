package api

import (
	"medicine_importer/internal/metrics"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const allowedHeaders = "authorization, x-client-info, apikey, content-type"

// CORSMiddleware answers preflight requests with 204. A "*" entry in
// allowedOrigins allows every origin without credentials.
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		switch {
		case allowsAny(allowedOrigins):
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case isAllowedOrigin(origin, allowedOrigins):
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", allowedHeaders)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func allowsAny(allowedOrigins []string) bool {
	for _, o := range allowedOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}

// isAllowedOrigin supports a trailing "*" as a prefix wildcard.
func isAllowedOrigin(origin string, allowedOrigins []string) bool {
	if origin == "" {
		return false
	}
	for _, allowed := range allowedOrigins {
		if strings.HasSuffix(allowed, "*") {
			if strings.HasPrefix(origin, strings.TrimSuffix(allowed, "*")) {
				return true
			}
		} else if origin == allowed {
			return true
		}
	}
	return false
}

// MetricsMiddleware records every request under its route template.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.RecordRequest(c.Request.Method, endpoint, c.Writer.Status(), time.Since(start))
	}
}
