package paas

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func envFlag(name string) bool {
	v := strings.TrimSpace(os.Getenv(name))
	return strings.EqualFold(v, "true") || v == "1"
}

// RequireBearerMiddleware keeps /api/* behind the gateway's bearer token.
// Paths in open bypass the check; the oracle callback carries its own token.
func RequireBearerMiddleware(open ...string) gin.HandlerFunc {
	disabled := envFlag("RAFFLE_AUTH_DISABLED")
	requireGatewayHeader := envFlag("RAFFLE_REQUIRE_GATEWAY")
	openPaths := make(map[string]struct{}, len(open))
	for _, p := range open {
		openPaths[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if disabled {
			c.Next()
			return
		}
		p := c.Request.URL.Path
		if p == "/healthz" || p == "/readyz" || p == "/docs" {
			c.Next()
			return
		}
		if _, ok := openPaths[p]; ok {
			c.Next()
			return
		}
		if strings.HasPrefix(p, "/api/") {
			auth := strings.TrimSpace(c.GetHeader("Authorization"))
			if !strings.HasPrefix(auth, "Bearer ") {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
				return
			}
			if requireGatewayHeader && strings.TrimSpace(c.GetHeader("X-Easyweb3-Project")) == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing X-Easyweb3-Project"})
				return
			}
		}
		c.Next()
	}
}

// WriteAuditMiddleware records every mutating /api/* call in the PaaS log.
func WriteAuditMiddleware(p *Client, logger *zap.Logger) gin.HandlerFunc {
	if p == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		method := strings.ToUpper(c.Request.Method)
		if !strings.HasPrefix(path, "/api/") {
			return
		}
		if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
			return
		}

		status := c.Writer.Status()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err := p.CreateLog(ctx, CreateLogRequest{
			Action: "raffle_http_write",
			Level:  LevelFromStatus(status),
			Details: map[string]any{
				"method":   method,
				"path":     c.FullPath(),
				"status":   status,
				"duration": time.Since(start).String(),
				"project":  strings.TrimSpace(c.GetHeader("X-Easyweb3-Project")),
				"role":     strings.TrimSpace(c.GetHeader("X-Easyweb3-Role")),
			},
		})
		if err != nil && logger != nil {
			logger.Debug("paas audit log failed", zap.Error(err))
		}
	}
}

func LevelFromStatus(status int) string {
	if status >= 500 {
		return "error"
	}
	if status >= 400 {
		return "warn"
	}
	return "info"
}
