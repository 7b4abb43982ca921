// Package upstream is the HTTP client for third-party collaborators. Every
// call is bounded by a timeout and guarded by a circuit breaker; nothing is
// retried.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/mx-space/folio/internal/pkg/apperr"
	"github.com/mx-space/folio/internal/pkg/metrics"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const (
	DefaultTimeout          = 30 * time.Second
	defaultMaxBody          = 4 << 20
	defaultFailureThreshold = 5
	defaultOpenTimeout      = 30 * time.Second
)

type Options struct {
	// Name labels errors, logs and metrics.
	Name      string
	Timeout   time.Duration
	UserAgent string
	MaxBody   int64
	// FailureThreshold consecutive failures open the breaker for OpenTimeout.
	FailureThreshold uint32
	OpenTimeout      time.Duration
	Transport        http.RoundTripper
}

// Response is a fully read upstream reply.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

type Client struct {
	name      string
	userAgent string
	maxBody   int64
	http      *http.Client
	breaker   *gobreaker.CircuitBreaker[Response]
}

func New(opts Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBody <= 0 {
		opts.MaxBody = defaultMaxBody
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = defaultFailureThreshold
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = defaultOpenTimeout
	}
	log := logger.Named("Upstream").With(zap.String("service", opts.Name))
	breaker := gobreaker.NewCircuitBreaker[Response](gobreaker.Settings{
		Name:    opts.Name,
		Timeout: opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.FailureThreshold
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed", zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	return &Client{
		name:      opts.Name,
		userAgent: opts.UserAgent,
		maxBody:   opts.MaxBody,
		http:      &http.Client{Timeout: opts.Timeout, Transport: opts.Transport},
		breaker:   breaker,
	}
}

// Do sends req. A non-2xx reply is returned alongside an ErrUpstream error
// so callers can still inspect it.
func (c *Client) Do(ctx context.Context, req *http.Request) (Response, error) {
	req = req.WithContext(ctx)
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	started := time.Now()
	resp, err := c.breaker.Execute(func() (Response, error) {
		r, err := c.http.Do(req)
		if err != nil {
			return Response{}, err
		}
		defer r.Body.Close()
		body, err := io.ReadAll(io.LimitReader(r.Body, c.maxBody))
		if err != nil {
			return Response{}, err
		}
		out := Response{StatusCode: r.StatusCode, Header: r.Header, Body: body}
		// Only server-side failures count against the breaker.
		if r.StatusCode >= 500 {
			return out, fmt.Errorf("status %d", r.StatusCode)
		}
		return out, nil
	})

	err = c.classify(ctx, resp, err)
	outcome := "ok"
	switch {
	case errors.Is(err, apperr.ErrUpstreamTimeout):
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	}
	metrics.UpstreamDuration.WithLabelValues(c.name, outcome).Observe(time.Since(started).Seconds())
	return resp, err
}

// JSON sends a request with an optional JSON body.
func (c *Client) JSON(ctx context.Context, method, url string, body any, header http.Header) (Response, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return Response{}, err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return Response{}, err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return c.Do(ctx, req)
}

func (c *Client) classify(ctx context.Context, resp Response, err error) error {
	switch {
	case err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return apperr.Upstream(err, "%s is temporarily unavailable", c.name)
	case err != nil && isTimeout(ctx, err):
		return apperr.UpstreamTimeout(err, "%s timed out", c.name)
	case resp.StatusCode != 0:
		return apperr.Upstream(err, "%s responded with status %d", c.name, resp.StatusCode)
	default:
		return apperr.Upstream(err, "%s request failed", c.name)
	}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
