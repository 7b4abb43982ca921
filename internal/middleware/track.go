package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/folio/internal/models"
	"github.com/mx-space/folio/internal/pkg/clientinfo"
)

// Tracker accepts analytics events without blocking.
type Tracker interface {
	Track(event models.AnalyticsEvent)
}

var trackSkipPrefixes = []string{"/metrics", "/api/admin", "/api/analytics-track"}

// Track records a request-completed event for public API requests. Admin
// traffic, bots and loopback callers are ignored.
func Track(t Tracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		if path != "/api" && !strings.HasPrefix(path, "/api/") {
			return
		}
		for _, prefix := range trackSkipPrefixes {
			if strings.HasPrefix(path, prefix) {
				return
			}
		}
		if IsAdmin(c) {
			return
		}

		origin := clientinfo.FromGin(c)
		if origin.Device == "bot" || isLoopback(origin.IP) {
			return
		}

		t.Track(models.AnalyticsEvent{
			Kind:      models.EventRequestCompleted,
			Path:      path,
			Method:    c.Request.Method,
			Status:    c.Writer.Status(),
			LatencyMS: time.Since(start).Milliseconds(),
			Origin:    origin,
			Timestamp: start.UTC(),
		})
	}
}

func isLoopback(ip string) bool {
	return ip == "" || ip == "127.0.0.1" || ip == "::1" || ip == "localhost"
}
