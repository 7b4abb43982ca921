package apperr

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", Validation("text is required"), http.StatusBadRequest},
		{"invalid batch", InvalidBatch("events must not be empty"), http.StatusBadRequest},
		{"not found", NotFound("session not found"), http.StatusNotFound},
		{"duplicate", DuplicateOwner("session exists"), http.StatusConflict},
		{"limit", LimitExceeded("daily limit reached"), http.StatusTooManyRequests},
		{"timeout", UpstreamTimeout(context.DeadlineExceeded, "instagram timed out"), http.StatusGatewayTimeout},
		{"upstream", Upstream(errors.New("502"), "instagram failed"), http.StatusBadGateway},
		{"connection", Connection(errors.New("dial"), "store unavailable"), http.StatusInternalServerError},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Status(tt.err))
		})
	}
}

func TestErrorUnwrapsKindAndCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Connection(cause, "settings: store unavailable")

	assert.ErrorIs(t, err, ErrConnection)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "settings: store unavailable", err.Error())
}

func TestMessageHidesUntypedErrors(t *testing.T) {
	assert.Equal(t, "internal server error", Message(errors.New("raw driver text")))
	assert.Equal(t, "text is required", Message(Validation("text is required")))
}

func TestFromStore(t *testing.T) {
	assert.NoError(t, FromStore("op", nil))

	err := FromStore("usage.increment", context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrUpstreamTimeout)

	typed := LimitExceeded("daily limit reached")
	assert.Same(t, typed, FromStore("usage.increment", typed))

	plain := FromStore("events.insert", errors.New("boom"))
	assert.EqualError(t, plain, "events.insert: boom")
}
