package admin

import (
	"context"
	"time"

	"github.com/mx-space/folio/internal/database"
	"github.com/mx-space/folio/internal/models"
	"github.com/mx-space/folio/internal/pkg/apperr"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store reads the append-only event collections.
type Store interface {
	FindActivity(ctx context.Context, f ActivityFilter, order Sort) ([]models.ActivityLogEntry, error)
	FindAnalytics(ctx context.Context, f AnalyticsFilter, order Sort) ([]models.AnalyticsEvent, error)
}

type mongoStore struct {
	db *database.Manager
}

func NewMongoStore(db *database.Manager) Store {
	return &mongoStore{db: db}
}

func (s *mongoStore) FindActivity(ctx context.Context, f ActivityFilter, order Sort) ([]models.ActivityLogEntry, error) {
	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()
	col, err := s.db.Collection(ctx, database.ColActivity)
	if err != nil {
		return nil, err
	}

	q := timeRange(f.Since, f.Until)
	if f.Action != "" {
		q["action"] = f.Action
	}
	if f.Entity != "" {
		q["entity"] = f.Entity
	}
	cur, err := col.Find(ctx, q, findOptions(f.Limit, order))
	if err != nil {
		return nil, apperr.FromStore("admin.activity.find", err)
	}
	var out []models.ActivityLogEntry
	if err := cur.All(ctx, &out); err != nil {
		return nil, apperr.FromStore("admin.activity.decode", err)
	}
	return out, nil
}

func (s *mongoStore) FindAnalytics(ctx context.Context, f AnalyticsFilter, order Sort) ([]models.AnalyticsEvent, error) {
	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()
	col, err := s.db.Collection(ctx, database.ColAnalytics)
	if err != nil {
		return nil, err
	}

	q := timeRange(f.Since, f.Until)
	if f.Kind != "" {
		q["kind"] = f.Kind
	}
	if f.Path != "" {
		q["path"] = f.Path
	}
	cur, err := col.Find(ctx, q, findOptions(f.Limit, order))
	if err != nil {
		return nil, apperr.FromStore("admin.analytics.find", err)
	}
	var out []models.AnalyticsEvent
	if err := cur.All(ctx, &out); err != nil {
		return nil, apperr.FromStore("admin.analytics.decode", err)
	}
	return out, nil
}

func timeRange(since, until time.Time) bson.M {
	q := bson.M{}
	ts := bson.M{}
	if !since.IsZero() {
		ts["$gte"] = since
	}
	if !until.IsZero() {
		ts["$lt"] = until
	}
	if len(ts) > 0 {
		q["timestamp"] = ts
	}
	return q
}

func findOptions(limit int, order Sort) *options.FindOptions {
	dir := -1
	if order == SortAsc {
		dir = 1
	}
	return options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: dir}, {Key: "_id", Value: dir}}).
		SetLimit(int64(limit))
}
