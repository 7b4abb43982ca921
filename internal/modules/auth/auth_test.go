package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/folio/internal/models"
	"github.com/mx-space/folio/internal/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memPasswords struct {
	site    models.SiteSettings
	err     error
	setErr  error
	setCall int
}

func (m *memPasswords) GetSiteSettings(context.Context) (models.SiteSettings, error) {
	return m.site, m.err
}

func (m *memPasswords) SetAdminPasswordHash(_ context.Context, hash string) error {
	m.setCall++
	if m.setErr != nil {
		return m.setErr
	}
	m.site.AdminPasswordHash = hash
	m.site.LegacyAdminPassword = ""
	return nil
}

type stubSigner struct{}

func (stubSigner) Sign(ttl time.Duration) (string, time.Time, error) {
	return "signed-token", time.Now().Add(ttl), nil
}

type recorded struct{ entries []models.ActivityLogEntry }

func (r *recorded) RecordActivity(e models.ActivityLogEntry) { r.entries = append(r.entries, e) }

func newService(store PasswordStore) *Service {
	svc := NewService(store, stubSigner{}, 7*24*time.Hour, nil)
	svc.cost = bcrypt.MinCost
	return svc
}

func hashOf(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestLoginWithHash(t *testing.T) {
	store := &memPasswords{site: models.SiteSettings{AdminPasswordHash: hashOf(t, "correct horse")}}
	svc := newService(store)

	token, expires, err := svc.Login(context.Background(), "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "signed-token", token)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), expires, time.Minute)

	_, _, err = svc.Login(context.Background(), "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginMigratesLegacyPlaintext(t *testing.T) {
	store := &memPasswords{site: models.SiteSettings{LegacyAdminPassword: "old-secret"}}
	svc := newService(store)

	_, _, err := svc.Login(context.Background(), "not-it")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Zero(t, store.setCall)

	_, _, err = svc.Login(context.Background(), "old-secret")
	require.NoError(t, err)
	assert.Equal(t, 1, store.setCall)
	assert.Empty(t, store.site.LegacyAdminPassword)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(store.site.AdminPasswordHash), []byte("old-secret")))
}

func TestLoginSucceedsWhenMigrationFails(t *testing.T) {
	store := &memPasswords{site: models.SiteSettings{LegacyAdminPassword: "old-secret"}, setErr: errors.New("write failed")}
	_, _, err := newService(store).Login(context.Background(), "old-secret")
	assert.NoError(t, err)
}

func TestLoginWithoutPassword(t *testing.T) {
	_, _, err := newService(&memPasswords{}).Login(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestChangePassword(t *testing.T) {
	store := &memPasswords{site: models.SiteSettings{AdminPasswordHash: hashOf(t, "first-pass")}}
	svc := newService(store)
	ctx := context.Background()

	assert.ErrorIs(t, svc.ChangePassword(ctx, "first-pass", "short"), apperr.ErrValidation)
	assert.ErrorIs(t, svc.ChangePassword(ctx, "wrong-pass", "second-pass"), ErrInvalidCredentials)
	require.NoError(t, svc.ChangePassword(ctx, "first-pass", "second-pass"))

	_, _, err := svc.Login(ctx, "second-pass")
	assert.NoError(t, err)
}

func TestChangePasswordRejectsOverlongInput(t *testing.T) {
	store := &memPasswords{site: models.SiteSettings{AdminPasswordHash: hashOf(t, "first-pass")}}
	svc := newService(store)
	ctx := context.Background()

	err := svc.ChangePassword(ctx, "first-pass", strings.Repeat("p", MaxPasswordLength+1))
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, http.StatusBadRequest, apperr.Status(err))
	assert.Zero(t, store.setCall)

	// Multi-byte runes count by bytes: 25 runes of 3 bytes each exceed the limit.
	assert.ErrorIs(t, svc.ChangePassword(ctx, "first-pass", strings.Repeat("密", 25)), apperr.ErrValidation)

	longest := strings.Repeat("p", MaxPasswordLength)
	require.NoError(t, svc.ChangePassword(ctx, "first-pass", longest))
	_, _, err = svc.Login(ctx, longest)
	assert.NoError(t, err)
}

func TestChangePasswordEndpointOverlong(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &memPasswords{site: models.SiteSettings{AdminPasswordHash: hashOf(t, "first-pass")}}
	r := gin.New()
	pass := func(c *gin.Context) { c.Next() }
	NewHandler(newService(store), &recorded{}, nil).RegisterRoutes(r.Group("/api"), pass, pass)

	body := `{"current":"first-pass","next":"` + strings.Repeat("x", 100) + `"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/admin/password", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "at most 72 bytes")
}

func TestBootstrap(t *testing.T) {
	ctx := context.Background()

	wrote, err := newService(&memPasswords{}).Bootstrap(ctx, "")
	require.NoError(t, err)
	assert.False(t, wrote)

	store := &memPasswords{}
	wrote, err = newService(store).Bootstrap(ctx, "initial-pass")
	require.NoError(t, err)
	assert.True(t, wrote)
	assert.NotEmpty(t, store.site.AdminPasswordHash)

	existing := &memPasswords{site: models.SiteSettings{AdminPasswordHash: "x"}}
	wrote, err = newService(existing).Bootstrap(ctx, "initial-pass")
	require.NoError(t, err)
	assert.False(t, wrote)
	assert.Equal(t, "x", existing.site.AdminPasswordHash)
}

func TestLoginEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &memPasswords{site: models.SiteSettings{AdminPasswordHash: hashOf(t, "correct horse")}}
	activity := &recorded{}
	r := gin.New()
	pass := func(c *gin.Context) { c.Next() }
	NewHandler(newService(store), activity, nil).RegisterRoutes(r.Group("/api"), pass, pass)

	post := func(body string) (int, map[string]any) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/admin/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		var out map[string]any
		_ = json.Unmarshal(w.Body.Bytes(), &out)
		return w.Code, out
	}

	code, body := post(`{"password":"correct horse"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "signed-token", body["data"].(map[string]any)["token"])
	require.Len(t, activity.entries, 1)
	assert.Equal(t, models.ActionLogin, activity.entries[0].Action)

	code, body = post(`{"password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, false, body["success"])

	code, _ = post(`{}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Len(t, activity.entries, 1)
}
