//go:build integration

package events

import (
	"context"
	"testing"
	"time"

	"github.com/mx-space/folio/internal/models"
	"github.com/mx-space/folio/internal/testinfra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMongoOrderedInsertCountsPrefix(t *testing.T) {
	ctx := context.Background()
	store := NewMongoStore(testinfra.Mongo(t))
	rec := NewRecorder(store, &syncDispatcher{}, nil)

	n, err := rec.RecordBatch(ctx, []models.AnalyticsEvent{{ID: "dup", Kind: models.EventPageViewed, Path: "/"}})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = rec.RecordBatch(ctx, []models.AnalyticsEvent{
		pageView("/a"),
		pageView("/b"),
		{ID: "dup", Kind: models.EventPageViewed, Path: "/c"},
		pageView("/d"),
	})
	require.Error(t, err)
	assert.Equal(t, 2, n)
}

func TestMongoPurgeAndActivity(t *testing.T) {
	ctx := context.Background()
	store := NewMongoStore(testinfra.Mongo(t))
	rec := NewRecorder(store, &syncDispatcher{}, nil)
	now := time.Now().UTC()

	_, err := rec.RecordBatch(ctx, []models.AnalyticsEvent{
		{Kind: models.EventPageViewed, Path: "/old", Timestamp: now.AddDate(0, 0, -120)},
		{Kind: models.EventPageViewed, Path: "/new", Timestamp: now},
	})
	require.NoError(t, err)

	n, err := rec.PurgeAnalytics(ctx, 90*24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.NoError(t, store.InsertActivity(ctx, models.ActivityLogEntry{
		ID: "a1", Action: models.ActionLogin, Entity: models.EntitySettings, Timestamp: now,
	}))
}
