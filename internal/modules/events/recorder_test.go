package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mx-space/folio/internal/models"
	"github.com/mx-space/folio/internal/pkg/apperr"
	"github.com/mx-space/folio/internal/pkg/taskqueue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func pageView(path string) models.AnalyticsEvent {
	return models.AnalyticsEvent{Kind: models.EventPageViewed, Path: path}
}

func TestRecordBatchValidation(t *testing.T) {
	rec := NewRecorder(newMemStore(), &syncDispatcher{}, nil)
	ctx := context.Background()

	tooMany := make([]models.AnalyticsEvent, MaxBatchSize+1)
	for i := range tooMany {
		tooMany[i] = pageView("/")
	}

	cases := map[string][]models.AnalyticsEvent{
		"empty":        nil,
		"too many":     tooMany,
		"unknown kind": {{Kind: "clicked", Path: "/"}},
		"blank path":   {{Kind: models.EventPageViewed, Path: "  "}},
	}
	for name, batch := range cases {
		t.Run(name, func(t *testing.T) {
			n, err := rec.RecordBatch(ctx, batch)
			assert.Zero(t, n)
			assert.ErrorIs(t, err, apperr.ErrInvalidBatch)
		})
	}
}

func TestRecordBatchFillsDefaults(t *testing.T) {
	store := newMemStore()
	rec := NewRecorder(store, &syncDispatcher{}, nil)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec.now = func() time.Time { return fixed }

	explicit := fixed.Add(-time.Hour)
	n, err := rec.RecordBatch(context.Background(), []models.AnalyticsEvent{
		pageView("/blog"),
		{Kind: models.EventPageViewed, Path: "/about", Timestamp: explicit},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, store.analytics, 2)
	assert.NotEmpty(t, store.analytics[0].ID)
	assert.Equal(t, fixed, store.analytics[0].Timestamp)
	assert.Equal(t, explicit, store.analytics[1].Timestamp)
}

func TestRecordBatchReportsWrittenPrefix(t *testing.T) {
	store := newMemStore()
	store.failAt = 2
	rec := NewRecorder(store, &syncDispatcher{}, nil)

	n, err := rec.RecordBatch(context.Background(), []models.AnalyticsEvent{
		pageView("/a"), pageView("/b"), pageView("/c"), pageView("/d"),
	})
	require.Error(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, store.analyticsCount())
}

func TestRecordActivity(t *testing.T) {
	store := newMemStore()
	rec := NewRecorder(store, &syncDispatcher{}, nil)

	rec.RecordActivity(models.ActivityLogEntry{Action: models.ActionCreate, Entity: models.EntityBlog, Description: "created post"})
	require.Equal(t, 1, store.activityCount())
	assert.NotEmpty(t, store.activity[0].ID)
	assert.False(t, store.activity[0].Timestamp.IsZero())

	// Invalid entries are dropped before they reach the store.
	rec.RecordActivity(models.ActivityLogEntry{Action: "explode", Entity: models.EntityBlog})
	rec.RecordActivity(models.ActivityLogEntry{Action: models.ActionCreate, Entity: "planet"})
	assert.Equal(t, 1, store.activityCount())
}

func TestRecordActivityNeverPropagatesFailures(t *testing.T) {
	store := newMemStore()
	store.activityErr = errors.New("disk full")
	disp := &syncDispatcher{}
	rec := NewRecorder(store, disp, nil)

	assert.NotPanics(t, func() {
		rec.RecordActivity(models.ActivityLogEntry{Action: models.ActionDelete, Entity: models.EntityFile})
	})
	require.Len(t, disp.errs, 1)
	assert.EqualError(t, disp.errs[0], "disk full")

	full := NewRecorder(newMemStore(), &syncDispatcher{full: true}, nil)
	assert.NotPanics(t, func() {
		full.RecordActivity(models.ActivityLogEntry{Action: models.ActionDelete, Entity: models.EntityFile})
	})
}

func TestRecordActivityThroughDispatcher(t *testing.T) {
	store := newMemStore()
	d := taskqueue.NewDispatcher(DispatcherOptions(2, 16), zap.NewNop())
	rec := NewRecorder(store, d, nil)

	for i := 0; i < 10; i++ {
		rec.RecordActivity(models.ActivityLogEntry{Action: models.ActionView, Entity: models.EntityRequest})
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))
	assert.Equal(t, 10, store.activityCount())
}

func TestTrack(t *testing.T) {
	store := newMemStore()
	rec := NewRecorder(store, &syncDispatcher{}, nil)

	rec.Track(models.AnalyticsEvent{Kind: models.EventRequestCompleted, Path: "/api/services", Method: "GET", Status: 200})
	rec.Track(models.AnalyticsEvent{Kind: models.EventRequestCompleted})
	assert.Equal(t, 1, store.analyticsCount())
}

func TestPurgeAnalytics(t *testing.T) {
	store := newMemStore()
	rec := NewRecorder(store, &syncDispatcher{}, nil)
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	rec.now = func() time.Time { return now }

	_, err := rec.RecordBatch(context.Background(), []models.AnalyticsEvent{
		{Kind: models.EventPageViewed, Path: "/old", Timestamp: now.AddDate(0, 0, -100)},
		{Kind: models.EventPageViewed, Path: "/new", Timestamp: now.AddDate(0, 0, -1)},
	})
	require.NoError(t, err)

	n, err := rec.PurgeAnalytics(context.Background(), 90*24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, "/new", store.analytics[0].Path)

	_, err = rec.PurgeAnalytics(context.Background(), 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
