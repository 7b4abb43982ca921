package objectstore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/mx-space/folio/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
	types   map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = string(body)
		f.types[r.URL.Path] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		delete(f.objects, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func testConfig(endpoint string) config.S3Config {
	return config.S3Config{
		Endpoint:        endpoint,
		Region:          "us-east-1",
		Bucket:          "folio",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
	}
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(config.S3Config{Bucket: "b"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestPutAndDelete(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{}, types: map[string]string{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	store, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	url, err := store.Put(context.Background(), "/files//2026/cv.pdf", strings.NewReader("%PDF"), 4, "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/folio/files/2026/cv.pdf", url)
	assert.Contains(t, fake.objects["/folio/files/2026/cv.pdf"], "%PDF")
	assert.Equal(t, "application/pdf", fake.types["/folio/files/2026/cv.pdf"])

	require.NoError(t, store.Delete(context.Background(), "files/2026/cv.pdf"))
	assert.Empty(t, fake.objects)
}

func TestPublicURL(t *testing.T) {
	cfg := testConfig("")
	store, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "https://folio.s3.us-east-1.amazonaws.com/a/b%20c.png", store.PublicURL("a/b c.png"))

	cfg.PublicBaseURL = "https://cdn.example.com/"
	store, err = New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/a/b.png", store.PublicURL("/a/b.png"))
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "a/b/c", NormalizeKey(` \a//b\c `))
}
