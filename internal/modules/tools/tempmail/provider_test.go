package tempmail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mx-space/folio/internal/pkg/apperr"
	"github.com/mx-space/folio/internal/pkg/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMailTMServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /domains", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"hydra:member":[{"domain":"old.example","isActive":false},{"domain":"mail.example","isActive":true}]}`))
	})
	mux.HandleFunc("POST /accounts", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, strings.HasSuffix(body["address"], "@mail.example"))
		assert.NotEmpty(t, body["password"])
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "acc-1", "address": body["address"]})
	})
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"acc-1","token":"tok-1"}`))
	})
	mux.HandleFunc("GET /messages", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`[{"id":"m1","from":{"address":"a@b.c","name":"A"},"subject":"hi","intro":"hello","seen":false,"createdAt":"2026-01-02T03:04:05+00:00"}]`))
	})
	mux.HandleFunc("DELETE /accounts/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "acc-1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	return httptest.NewServer(mux)
}

func newMailTM(url string) *MailTM {
	return NewMailTM(upstream.New(upstream.Options{Name: "tempmail", Timeout: time.Second}, nil), url)
}

func TestMailTMLifecycle(t *testing.T) {
	srv := newMailTMServer(t)
	defer srv.Close()
	m := newMailTM(srv.URL)
	ctx := context.Background()

	mb, err := m.CreateMailbox(ctx)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", mb.ID)
	assert.Equal(t, "tok-1", mb.Token)
	assert.True(t, strings.HasSuffix(mb.Address, "@mail.example"))

	msgs, err := m.Messages(ctx, mb.Token)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "a@b.c", msgs[0].From)
	assert.Equal(t, "hi", msgs[0].Subject)
	assert.Equal(t, 2026, msgs[0].CreatedAt.Year())

	require.NoError(t, m.DeleteMailbox(ctx, mb))
	require.NoError(t, m.DeleteMailbox(ctx, Mailbox{ID: "gone"}))
	require.NoError(t, m.DeleteMailbox(ctx, Mailbox{}))
}

func TestMailTMRejectedToken(t *testing.T) {
	srv := newMailTMServer(t)
	defer srv.Close()

	_, err := newMailTM(srv.URL).Messages(context.Background(), "stale")
	assert.ErrorIs(t, err, apperr.ErrUpstream)
}
