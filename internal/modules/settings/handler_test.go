package settings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/folio/internal/models"
	"github.com/mx-space/folio/internal/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedActivity struct{ entries []models.ActivityLogEntry }

func (r *recordedActivity) RecordActivity(e models.ActivityLogEntry) { r.entries = append(r.entries, e) }

func newTestRouter(store Store) (*gin.Engine, *recordedActivity, *int) {
	gin.SetMode(gin.TestMode)
	activity := &recordedActivity{}
	changes := 0
	svc := NewService(store)
	svc.SetFlagsCacheTTL(0)
	h := NewHandler(svc, activity, nil)
	h.OnChange(func(_ context.Context) { changes++ })

	r := gin.New()
	h.RegisterRoutes(r.Group("/api"), func(c *gin.Context) { c.Next() })
	return r, activity, &changes
}

func do(r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestServicesEndpoint(t *testing.T) {
	r, _, _ := newTestRouter(&memStore{flags: &models.FeatureFlags{MusicPlayer: true}})
	w, body := do(r, "GET", "/api/services", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	services := body["services"].(map[string]any)
	assert.Equal(t, true, services["musicPlayer"])
	assert.Equal(t, false, services["tempMail"])
}

func TestServicesEndpointStoreDown(t *testing.T) {
	r, _, _ := newTestRouter(&memStore{err: apperr.Connection(nil, "database unreachable")})
	w, body := do(r, "GET", "/api/services", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "database unreachable", body["error"])
	services := body["services"].(map[string]any)
	for _, name := range models.FeatureNames {
		assert.Equal(t, true, services[name], name)
	}
}

func TestSetFeatureEndpoint(t *testing.T) {
	r, activity, changes := newTestRouter(&memStore{})

	w, _ := do(r, "PUT", "/api/admin/features/aiImage", `{"enabled":false}`)
	require.Equal(t, http.StatusOK, w.Code)

	_, body := do(r, "GET", "/api/services", "")
	assert.Equal(t, false, body["services"].(map[string]any)["aiImage"])

	require.Len(t, activity.entries, 1)
	assert.Equal(t, models.EntitySettings, activity.entries[0].Entity)
	assert.Equal(t, "aiImage disabled", activity.entries[0].Description)
	assert.Equal(t, 1, *changes)

	w, _ = do(r, "PUT", "/api/admin/features/unknown", `{"enabled":true}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = do(r, "PUT", "/api/admin/features/aiImage", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPatchSettingsEndpoint(t *testing.T) {
	r, activity, _ := newTestRouter(&memStore{})

	w, body := do(r, "PATCH", "/api/admin/settings", `{"name":"Ada","bio":"hello *world*"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Ada", body["data"].(map[string]any)["name"])
	assert.Len(t, activity.entries, 1)

	_, body = do(r, "GET", "/api/settings", "")
	data := body["data"].(map[string]any)
	assert.Contains(t, data["bioHtml"], "<em>world</em>")
	assert.NotContains(t, data, "adminPasswordHash")

	w, _ = do(r, "PATCH", "/api/admin/settings", `{"email":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, activity.entries, 1)
}

func TestPatchSettingsRejectsBadFormats(t *testing.T) {
	r, activity, _ := newTestRouter(&memStore{})

	for name, body := range map[string]string{
		"bad email":    `{"email":"not-an-email"}`,
		"ftp avatar":   `{"avatar":"ftp://host/a.png"}`,
		"bad resume":   `{"resumeUrl":"resume.pdf"}`,
		"script link":  `{"socials":{"x":"javascript:alert(1)"}}`,
		"empty key":    `{"socials":{"":"https://x.com/ada"}}`,
		"relative url": `{"socials":{"github":"/ada"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			w, out := do(r, "PATCH", "/api/admin/settings", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, false, out["success"])
		})
	}
	assert.Empty(t, activity.entries)
}

func TestPatchSettingsAcceptsFormatsAndClears(t *testing.T) {
	r, _, _ := newTestRouter(&memStore{})

	w, body := do(r, "PATCH", "/api/admin/settings",
		`{"email":"ada@example.com","avatar":"https://cdn.example.com/a.png","socials":{"github":"https://github.com/ada"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, "ada@example.com", data["email"])
	assert.Equal(t, "https://github.com/ada", data["socials"].(map[string]any)["github"])

	w, body = do(r, "PATCH", "/api/admin/settings", `{"avatar":"","email":""}`)
	require.Equal(t, http.StatusOK, w.Code)
	data = body["data"].(map[string]any)
	assert.Empty(t, data["avatar"])
	assert.Empty(t, data["email"])
}
