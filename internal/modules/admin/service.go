package admin

import (
	"context"
	"time"

	"github.com/mx-space/folio/internal/models"
	"github.com/mx-space/folio/internal/pkg/apperr"
	"go.uber.org/zap"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

type Sort string

const (
	SortDesc Sort = "desc"
	SortAsc  Sort = "asc"
)

// ParseSort accepts "", "desc" and "asc".
func ParseSort(raw string) (Sort, error) {
	switch Sort(raw) {
	case "", SortDesc:
		return SortDesc, nil
	case SortAsc:
		return SortAsc, nil
	}
	return "", apperr.Validation("sort must be asc or desc")
}

type ActivityFilter struct {
	Action models.ActivityAction
	Entity models.EntityKind
	Since  time.Time
	Until  time.Time
	Limit  int
}

type AnalyticsFilter struct {
	Kind  models.EventKind
	Path  string
	Since time.Time
	Until time.Time
	Limit int
}

// Result is one panel of the admin view. A failed read leaves Items empty
// and sets Err, so sibling panels are unaffected.
type Result[T any] struct {
	Items []T
	Err   error
}

// Message returns the client-safe error message, or "" on success.
func (r Result[T]) Message() string {
	if r.Err == nil {
		return ""
	}
	return apperr.Message(r.Err)
}

// SessionLister is the part of the session store the admin view reads.
type SessionLister interface {
	List(ctx context.Context, kind models.SessionKind, limit int) ([]models.EphemeralSession, error)
}

// Service is the read-only Admin Read API.
type Service struct {
	store    Store
	sessions SessionLister
	logger   *zap.Logger
}

func NewService(store Store, sessions SessionLister, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, sessions: sessions, logger: logger.Named("AdminService")}
}

func (s *Service) ListActivity(ctx context.Context, f ActivityFilter, order Sort) Result[models.ActivityLogEntry] {
	f.Limit = clampLimit(f.Limit)
	items, err := s.store.FindActivity(ctx, f, order)
	return newResult(s.logger, "activity", items, err)
}

func (s *Service) ListAnalytics(ctx context.Context, f AnalyticsFilter, order Sort) Result[models.AnalyticsEvent] {
	f.Limit = clampLimit(f.Limit)
	items, err := s.store.FindAnalytics(ctx, f, order)
	return newResult(s.logger, "analytics", items, err)
}

// ListSessions returns unexpired sessions of kind, newest first.
func (s *Service) ListSessions(ctx context.Context, kind models.SessionKind, limit int) Result[models.EphemeralSession] {
	items, err := s.sessions.List(ctx, kind, clampLimit(limit))
	return newResult(s.logger, "sessions", items, err)
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

func newResult[T any](logger *zap.Logger, panel string, items []T, err error) Result[T] {
	if err != nil {
		logger.Warn("admin panel read failed", zap.String("panel", panel), zap.Error(err))
		return Result[T]{Items: []T{}, Err: err}
	}
	if items == nil {
		items = []T{}
	}
	return Result[T]{Items: items}
}
