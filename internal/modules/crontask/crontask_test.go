package crontask

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	pkgcron "github.com/mx-space/folio/internal/pkg/cron"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stats struct{}

func (stats) Dropped() int64 { return 3 }
func (stats) Failed() int64  { return 1 }

func passthrough(c *gin.Context) { c.Next() }

func TestRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sched := pkgcron.New(nil, nil)
	var runs atomic.Int32
	require.NoError(t, sched.Register(pkgcron.Job{Name: "sweep_sessions", Spec: "@every 10m", Fn: func(context.Context) error {
		runs.Add(1)
		return nil
	}}))

	r := gin.New()
	NewHandler(sched, stats{}).RegisterRoutes(r.Group("/api"), passthrough)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admin/cron", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Jobs  []pkgcron.ListItem `json:"jobs"`
		Queue map[string]int64   `json:"queue"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Jobs, 1)
	assert.Equal(t, "@every 10m", body.Jobs[0].Spec)
	assert.EqualValues(t, 3, body.Queue["dropped"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/admin/cron/sweep_sessions/run", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 10*time.Millisecond)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admin/cron/sweep_sessions", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admin/cron/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/admin/cron/missing/run", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
