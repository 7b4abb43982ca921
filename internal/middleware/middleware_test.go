package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/folio/internal/models"
	"github.com/mx-space/folio/internal/pkg/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

type memKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemKV() *memKV { return &memKV{data: map[string][]byte{}} }

func (m *memKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memKV) SetNX(_ context.Context, key string, value []byte, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value
	return true, nil
}

func (m *memKV) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memKV) DeletePrefix(_ context.Context, prefix string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

type fixedCounter struct {
	count int64
	err   error
}

func (f *fixedCounter) CountInWindow(context.Context, string, time.Duration, time.Time) (int64, error) {
	return f.count, f.err
}

type stubFlags struct {
	flags models.FeatureFlags
	err   error
}

func (s stubFlags) GetFeatureFlags(_ context.Context, fallback models.FeatureFlags) (models.FeatureFlags, error) {
	if s.err != nil {
		return fallback, s.err
	}
	return s.flags, nil
}

type recordingTracker struct {
	events []models.AnalyticsEvent
}

func (r *recordingTracker) Track(e models.AnalyticsEvent) { r.events = append(r.events, e) }

func serve(r *gin.Engine, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "203.0.113.5:1234"
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAdminAuth(t *testing.T) {
	signer, err := jwt.NewSigner("secret")
	require.NoError(t, err)
	token, _, err := signer.Sign(time.Hour)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/admin", AdminAuth(signer), func(c *gin.Context) {
		assert.True(t, IsAdmin(c))
		c.Status(http.StatusNoContent)
	})

	assert.Equal(t, http.StatusUnauthorized, serve(r, "GET", "/admin", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "GET", "/admin", http.Header{"Authorization": {"Bearer nope"}}).Code)
	assert.Equal(t, http.StatusNoContent, serve(r, "GET", "/admin", http.Header{"Authorization": {"Bearer " + token}}).Code)
	assert.Equal(t, http.StatusNoContent, serve(r, "GET", "/admin?token="+token, nil).Code)
}

func TestRequireFeature(t *testing.T) {
	tests := []struct {
		name   string
		flags  FlagReader
		status int
	}{
		{"enabled", stubFlags{flags: models.FeatureFlags{TempMail: true}}, http.StatusOK},
		{"disabled", stubFlags{flags: models.FeatureFlags{TempMail: false}}, http.StatusForbidden},
		{"store failure falls back to enabled", stubFlags{err: errors.New("down")}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/x", RequireFeature(tt.flags, models.FeatureTempMail, nil), func(c *gin.Context) { c.Status(http.StatusOK) })
			w := serve(r, "GET", "/x", nil)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusForbidden {
				assert.JSONEq(t, `{"success":false,"error":"tempMail is disabled"}`, w.Body.String())
			}
		})
	}
}

func TestRateLimitMemory(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(RateLimitOptions{PerSecond: 1, Burst: 2}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, "GET", "/x", nil).Code)
	assert.Equal(t, http.StatusOK, serve(r, "GET", "/x", nil).Code)
	w := serve(r, "GET", "/x", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestRateLimitCounter(t *testing.T) {
	counter := &fixedCounter{count: 3}
	r := gin.New()
	r.Use(RateLimit(RateLimitOptions{Counter: counter, PerSecond: 1, Burst: 1}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusTooManyRequests, serve(r, "GET", "/x", nil).Code)

	counter.count = 2
	assert.Equal(t, http.StatusOK, serve(r, "GET", "/x", nil).Code)

	counter.err = errors.New("redis down")
	counter.count = 100
	assert.Equal(t, http.StatusOK, serve(r, "GET", "/x", nil).Code)
}

func TestHTTPCache(t *testing.T) {
	store := newMemKV()
	calls := 0
	r := gin.New()
	r.Use(HTTPCache(store, HTTPCacheOptions{TTL: time.Minute}))
	r.GET("/api/content/blog", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"success": true, "calls": calls})
	})

	first := serve(r, "GET", "/api/content/blog", nil)
	second := serve(r, "GET", "/api/content/blog", nil)
	assert.Equal(t, 1, calls)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "hit", second.Header().Get("x-folio-cache"))

	n, err := PurgeHTTPCache(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	serve(r, "GET", "/api/content/blog", nil)
	assert.Equal(t, 2, calls)
}

func TestHTTPCacheSkipsErrors(t *testing.T) {
	store := newMemKV()
	r := gin.New()
	r.Use(HTTPCache(store, HTTPCacheOptions{}))
	r.GET("/x", func(c *gin.Context) { c.JSON(http.StatusInternalServerError, gin.H{"success": false}) })

	serve(r, "GET", "/x", nil)
	assert.Empty(t, store.data)
}

func TestHTTPCacheSkipsDegradedAnswers(t *testing.T) {
	store := newMemKV()
	healthy := false
	calls := 0
	r := gin.New()
	r.Use(HTTPCache(store, HTTPCacheOptions{TTL: time.Minute}))
	r.GET("/api/services", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"success": healthy, "services": gin.H{"tempMail": true}})
	})

	first := serve(r, "GET", "/api/services", nil)
	assert.Contains(t, first.Body.String(), `"success":false`)
	assert.Empty(t, store.data)

	healthy = true
	second := serve(r, "GET", "/api/services", nil)
	assert.Equal(t, 2, calls)
	assert.Contains(t, second.Body.String(), `"success":true`)
	assert.Len(t, store.data, 1)

	serve(r, "GET", "/api/services", nil)
	assert.Equal(t, 2, calls)
}

func TestIdempotence(t *testing.T) {
	store := newMemKV()
	status := http.StatusOK
	r := gin.New()
	r.Use(Idempotence(store))
	r.POST("/x", func(c *gin.Context) { c.Status(status) })

	hdr := http.Header{"X-Idempotence": {"abc"}}
	assert.Equal(t, http.StatusOK, serve(r, "POST", "/x", hdr).Code)
	w := serve(r, "POST", "/x", hdr)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "already succeeded")

	status = http.StatusBadGateway
	other := http.Header{"X-Idempotence": {"def"}}
	assert.Equal(t, http.StatusBadGateway, serve(r, "POST", "/x", other).Code)
	assert.Equal(t, http.StatusBadGateway, serve(r, "POST", "/x", other).Code, "failed requests release the key")
}

func TestIdempotenceInFlight(t *testing.T) {
	store := newMemKV()
	_ = store.Set(context.Background(), idempotencePrefix+"busy", stateProcessing, time.Minute)
	r := gin.New()
	r.Use(Idempotence(store))
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, "POST", "/x", http.Header{"X-Idempotence": {"busy"}})
	assert.Equal(t, http.StatusConflict, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "the same request is still being processed", body["error"])
}

func TestTrack(t *testing.T) {
	tracker := &recordingTracker{}
	r := gin.New()
	r.Use(Track(tracker))
	r.GET("/api/services", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/admin/activity", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	chrome := http.Header{"User-Agent": {"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"}}
	serve(r, "GET", "/api/services", chrome)
	serve(r, "GET", "/api/admin/activity", chrome)
	serve(r, "GET", "/healthz", chrome)

	require.Len(t, tracker.events, 1)
	e := tracker.events[0]
	assert.Equal(t, models.EventRequestCompleted, e.Kind)
	assert.Equal(t, "/api/services", e.Path)
	assert.Equal(t, http.StatusOK, e.Status)
	assert.Equal(t, "203.0.113.5", e.Origin.IP)
}
