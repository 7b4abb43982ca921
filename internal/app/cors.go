package app

import (
	"net/url"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mx-space/folio/internal/config"
)

// newCORS allows every origin in development or when no allow-list is set.
// Patterns may be exact hosts, "*.example.com" or "localhost:*".
func newCORS(cfg *config.AppConfig) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "x-idempotence"},
		ExposeHeaders:    []string{"Content-Length", "x-folio-cache", "Retry-After"},
		AllowCredentials: true,
	}
	if len(cfg.AllowedOrigins) > 0 && !cfg.IsDev() {
		patterns := make([]string, len(cfg.AllowedOrigins))
		for i, p := range cfg.AllowedOrigins {
			patterns[i] = extractOriginHost(p)
		}
		corsConfig.AllowOriginFunc = func(origin string) bool {
			host := extractOriginHost(origin)
			for _, pattern := range patterns {
				if matchOriginPattern(pattern, host) {
					return true
				}
			}
			return false
		}
	} else {
		corsConfig.AllowOriginFunc = func(string) bool { return true }
	}
	return cors.New(corsConfig)
}

// extractOriginHost returns the "host[:port]" portion of an origin URL.
func extractOriginHost(origin string) string {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return origin
	}
	return u.Host
}

// matchOriginPattern reports whether host matches the given wildcard pattern.
func matchOriginPattern(pattern, host string) bool {
	if pattern == host {
		return true
	}
	if strings.HasPrefix(pattern, "*.") {
		return strings.HasSuffix(host, pattern[1:])
	}
	if strings.HasSuffix(pattern, ":*") {
		return strings.HasPrefix(host, pattern[:len(pattern)-1])
	}
	return false
}
