package middleware

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
)

const (
	APICachePrefix          = "folio:api-cache:"
	defaultHTTPCacheTTL     = 15 * time.Second
	defaultHTTPCacheMaxBody = 1 << 20 // 1 MiB
	staleWhileRevalidate    = 60
)

// CacheStore is the key-value surface the response cache needs.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
}

type HTTPCacheOptions struct {
	TTL          time.Duration
	Disable      bool
	MaxBodyBytes int
}

type cachedHTTPResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	BodyBase64  string `json:"body_base64"`
}

type cacheBodyWriter struct {
	gin.ResponseWriter
	body         []byte
	maxBodyBytes int
	overflow     bool
}

func (w *cacheBodyWriter) Write(data []byte) (int, error) {
	w.capture(data)
	return w.ResponseWriter.Write(data)
}

func (w *cacheBodyWriter) WriteString(s string) (int, error) {
	w.capture([]byte(s))
	return w.ResponseWriter.WriteString(s)
}

func (w *cacheBodyWriter) capture(data []byte) {
	if w.overflow || len(data) == 0 {
		return
	}
	if len(w.body)+len(data) > w.maxBodyBytes {
		w.overflow = true
		w.body = nil
		return
	}
	w.body = append(w.body, data...)
}

// HTTPCache serves successful anonymous GET responses from the store for
// TTL. A nil store disables caching.
func HTTPCache(store CacheStore, opts HTTPCacheOptions) gin.HandlerFunc {
	if opts.TTL <= 0 {
		opts.TTL = defaultHTTPCacheTTL
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultHTTPCacheMaxBody
	}
	ttlSeconds := int(opts.TTL / time.Second)

	return func(c *gin.Context) {
		if opts.Disable || store == nil || c.Request.Method != http.MethodGet {
			c.Next()
			return
		}
		if IsAdmin(c) {
			c.Next()
			setPrivateCacheHeader(c.Writer)
			return
		}

		ctx := c.Request.Context()
		key := APICachePrefix + c.Request.URL.RequestURI()
		if status, contentType, body, ok := readCachedResponse(ctx, store, key); ok {
			c.Header("x-folio-cache", "hit")
			setPublicCacheHeader(c.Writer, ttlSeconds)
			c.Data(status, contentType, body)
			c.Abort()
			return
		}

		buffer := &cacheBodyWriter{ResponseWriter: c.Writer, maxBodyBytes: opts.MaxBodyBytes}
		c.Writer = buffer
		c.Next()

		if c.Writer.Status() != http.StatusOK || buffer.overflow || len(buffer.body) == 0 {
			return
		}
		// Degraded answers are 200 with success=false; they must not outlive
		// the outage.
		if success := gjson.GetBytes(buffer.body, "success"); success.Exists() && !success.Bool() {
			return
		}
		raw, err := json.Marshal(cachedHTTPResponse{
			Status:      http.StatusOK,
			ContentType: c.Writer.Header().Get("Content-Type"),
			BodyBase64:  base64.StdEncoding.EncodeToString(buffer.body),
		})
		if err != nil {
			return
		}
		_ = store.Set(ctx, key, raw, opts.TTL)
	}
}

// PurgeHTTPCache drops every cached response.
func PurgeHTTPCache(ctx context.Context, store CacheStore) (int64, error) {
	if store == nil {
		return 0, nil
	}
	return store.DeletePrefix(ctx, APICachePrefix)
}

func readCachedResponse(ctx context.Context, store CacheStore, key string) (int, string, []byte, bool) {
	raw, ok, err := store.Get(ctx, key)
	if err != nil || !ok {
		return 0, "", nil, false
	}
	var payload cachedHTTPResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return 0, "", nil, false
	}
	body, err := base64.StdEncoding.DecodeString(payload.BodyBase64)
	if err != nil {
		return 0, "", nil, false
	}
	if payload.Status <= 0 {
		payload.Status = http.StatusOK
	}
	if payload.ContentType == "" {
		payload.ContentType = "application/json; charset=utf-8"
	}
	return payload.Status, payload.ContentType, body, true
}

func setPrivateCacheHeader(w gin.ResponseWriter) {
	if w.Status() != http.StatusOK {
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=0, no-cache, no-store, must-revalidate")
}

func setPublicCacheHeader(w gin.ResponseWriter, ttlSeconds int) {
	w.Header().Set("Cache-Control", "s-maxage="+strconv.Itoa(ttlSeconds)+", stale-while-revalidate="+strconv.Itoa(staleWhileRevalidate))
}
