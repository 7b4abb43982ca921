package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/folio/internal/config"
	pkgcron "github.com/mx-space/folio/internal/pkg/cron"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMatchOriginPattern(t *testing.T) {
	tests := []struct {
		pattern, host string
		want          bool
	}{
		{"folio.dev", "folio.dev", true},
		{"*.folio.dev", "admin.folio.dev", true},
		{"*.folio.dev", "folio.dev.evil.com", false},
		{"localhost:*", "localhost:3000", true},
		{"folio.dev", "evil.dev", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchOriginPattern(tt.pattern, tt.host), "%s vs %s", tt.pattern, tt.host)
	}
}

func TestCORSAllowList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.AppConfig{Env: "production", AllowedOrigins: []string{"https://folio.dev", "*.folio.dev"}}
	r := gin.New()
	r.Use(newCORS(cfg))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	for origin, allowed := range map[string]bool{
		"https://folio.dev":       true,
		"https://admin.folio.dev": true,
		"https://evil.dev":        false,
	} {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Origin", origin)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if allowed {
			assert.Equal(t, origin, w.Header().Get("Access-Control-Allow-Origin"), origin)
		} else {
			assert.Equal(t, http.StatusForbidden, w.Code, origin)
		}
	}
}

func TestHumanizeDuration(t *testing.T) {
	assert.Equal(t, "42s", humanizeDuration(42*time.Second+300*time.Millisecond))
	assert.Equal(t, "5m0s", humanizeDuration(5*time.Minute+10*time.Second))
	assert.Equal(t, "48h0m0s", humanizeDuration(50*time.Hour))
}

func TestNewStartsWithoutDatabase(t *testing.T) {
	cfg := &config.AppConfig{
		Port:      8080,
		Env:       "production",
		JWTSecret: "test-secret",
		Timezone:  "UTC",
		Mongo:     config.MongoConfig{Database: "folio_test", Timeout: time.Second},
		Scraper:   config.ScraperConfig{Timeout: time.Second},
		TempMail:  config.TempMailConfig{DailyLimit: 5, TTL: time.Hour},
		Chat:      config.ChatConfig{Provider: "openai", SessionTTL: time.Hour},
	}
	application, err := New(zap.NewNop(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		application.Shutdown(ctx)
	})
	assert.False(t, application.bootstrapped.Load())

	w := httptest.NewRecorder()
	application.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/services", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Success  bool            `json:"success"`
		Services map[string]any `json:"services"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, true, body.Services["tempMail"])

	job, err := application.sched.Get("bootstrap")
	require.NoError(t, err)
	assert.Equal(t, "@every 1m", job.Spec)
	require.NoError(t, application.sched.RunSync(context.Background(), "bootstrap"))
	job, err = application.sched.Get("bootstrap")
	require.NoError(t, err)
	assert.Equal(t, pkgcron.StatusReject, job.Status)
	assert.False(t, application.bootstrapped.Load())
}
