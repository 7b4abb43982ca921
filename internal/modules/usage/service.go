package usage

import (
	"context"
	"strings"
	"time"

	"github.com/mx-space/folio/internal/pkg/apperr"
	"github.com/mx-space/folio/internal/pkg/metrics"
)

// DayLayout is the calendar-day key format. Days are cut at midnight in the
// service's location.
const DayLayout = "2006-01-02"

// Service is the Usage Limiter: a per-source daily quota backed by one
// atomic conditional increment per call.
type Service struct {
	store Store
	loc   *time.Location
	now   func() time.Time
}

// NewService returns a limiter that cuts days in loc (UTC when nil).
func NewService(store Store, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, loc: loc, now: time.Now}
}

// DayKey returns the calendar-day key for t.
func (s *Service) DayKey(t time.Time) string {
	return t.In(s.loc).Format(DayLayout)
}

// CheckAndIncrement consumes one use for sourceID today and returns the new
// count, or fails with LimitExceeded once limit uses were consumed. The
// check and the increment are one store operation, so concurrent callers
// can never push the count past limit.
func (s *Service) CheckAndIncrement(ctx context.Context, sourceID string, limit int) (int, error) {
	sourceID = strings.TrimSpace(sourceID)
	if sourceID == "" {
		return 0, apperr.Validation("usage source is required")
	}
	if limit <= 0 {
		s.denied(sourceID)
		return 0, apperr.LimitExceeded("daily limit reached")
	}

	now := s.now()
	count, ok, err := s.store.Increment(ctx, sourceID, s.DayKey(now), limit, now.UTC(), s.expiry(now))
	if err != nil {
		return 0, err
	}
	if !ok {
		s.denied(sourceID)
		return 0, apperr.LimitExceeded("daily limit of %d reached", limit)
	}
	return count, nil
}

// Count returns how many uses sourceID consumed today.
func (s *Service) Count(ctx context.Context, sourceID string) (int, error) {
	if strings.TrimSpace(sourceID) == "" {
		return 0, apperr.Validation("usage source is required")
	}
	return s.store.Count(ctx, sourceID, s.DayKey(s.now()))
}

// expiry keeps a counter one extra day past the end of its own day so
// late readers still see it.
func (s *Service) expiry(now time.Time) time.Time {
	local := now.In(s.loc)
	nextDay := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, s.loc)
	return nextDay.Add(24 * time.Hour).UTC()
}

func (s *Service) denied(sourceID string) {
	feature := "default"
	if i := strings.IndexByte(sourceID, ':'); i > 0 {
		feature = sourceID[:i]
	}
	metrics.UsageDenied.WithLabelValues(feature).Inc()
}
