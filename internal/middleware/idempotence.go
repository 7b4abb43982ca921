package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/folio/internal/pkg/response"
)

const (
	idempotenceHeader = "x-idempotence"
	idempotencePrefix = "folio:idempotence:"
	idempotenceTTL    = 60 * time.Second
	maxHashedBody     = 1 << 20
)

var (
	stateProcessing = []byte("0")
	stateDone       = []byte("1")
)

// IdempotenceStore is the key-value surface the duplicate guard needs.
type IdempotenceStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

// Idempotence rejects a repeated POST with 409 while the first one is in
// flight and for a minute after it succeeded. The key is the x-idempotence
// header, or a hash of the request and caller. A nil store disables it.
func Idempotence(store IdempotenceStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}
		key, err := resolveIdempotenceKey(c)
		if err != nil || key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		redisKey := idempotencePrefix + key
		claimed, err := store.SetNX(ctx, redisKey, stateProcessing, idempotenceTTL)
		if err != nil {
			c.Next()
			return
		}
		if !claimed {
			msg := "the same request already succeeded, retry in a minute"
			if state, ok, _ := store.Get(ctx, redisKey); ok && bytes.Equal(state, stateProcessing) {
				msg = "the same request is still being processed"
			}
			response.Fail(c, http.StatusConflict, msg)
			return
		}

		c.Next()

		// The request context may already be cancelled once the handler
		// returns.
		bg := context.WithoutCancel(ctx)
		if status := c.Writer.Status(); status >= 200 && status < 300 {
			_ = store.Set(bg, redisKey, stateDone, idempotenceTTL)
			return
		}
		_ = store.Del(bg, redisKey)
	}
}

func resolveIdempotenceKey(c *gin.Context) (string, error) {
	if hdr := c.GetHeader(idempotenceHeader); hdr != "" {
		return hdr, nil
	}
	if c.Request.ContentLength > maxHashedBody {
		return "", nil
	}

	var body []byte
	if c.Request.Body != nil {
		var err error
		body, err = io.ReadAll(c.Request.Body)
		if err != nil {
			return "", err
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
	}

	raw := c.Request.Method + "|" + c.Request.URL.String() + "|" + string(body) + "|" +
		c.Request.UserAgent() + "|" + c.ClientIP() + "|" + extractToken(c)
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:]), nil
}
