package events

import (
	"context"
	"errors"
	"time"

	"github.com/mx-space/folio/internal/database"
	"github.com/mx-space/folio/internal/models"
	"github.com/mx-space/folio/internal/pkg/apperr"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store appends analytics events and activity entries.
type Store interface {
	// InsertAnalytics writes events in order and returns how many were
	// durably written, also when it fails part way.
	InsertAnalytics(ctx context.Context, events []models.AnalyticsEvent) (int, error)
	InsertActivity(ctx context.Context, entry models.ActivityLogEntry) error
	DeleteAnalyticsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type mongoStore struct {
	db *database.Manager
}

func NewMongoStore(db *database.Manager) Store {
	return &mongoStore{db: db}
}

func (s *mongoStore) InsertAnalytics(ctx context.Context, events []models.AnalyticsEvent) (int, error) {
	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()
	col, err := s.db.Collection(ctx, database.ColAnalytics)
	if err != nil {
		return 0, err
	}
	docs := make([]any, len(events))
	for i := range events {
		docs[i] = events[i]
	}
	res, err := col.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	if err != nil {
		return writtenBeforeFailure(err), apperr.FromStore("events.analytics.insert", err)
	}
	return len(res.InsertedIDs), nil
}

// writtenBeforeFailure returns the prefix length an ordered insert managed
// to write. An ordered insert stops at its first write error, so that
// error's index equals the number of documents written before it.
func writtenBeforeFailure(err error) int {
	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) || len(bwe.WriteErrors) == 0 {
		return 0
	}
	first := bwe.WriteErrors[0].Index
	for _, we := range bwe.WriteErrors[1:] {
		if we.Index < first {
			first = we.Index
		}
	}
	return first
}

func (s *mongoStore) InsertActivity(ctx context.Context, entry models.ActivityLogEntry) error {
	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()
	col, err := s.db.Collection(ctx, database.ColActivity)
	if err != nil {
		return err
	}
	_, err = col.InsertOne(ctx, entry)
	return apperr.FromStore("events.activity.insert", err)
}

func (s *mongoStore) DeleteAnalyticsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()
	col, err := s.db.Collection(ctx, database.ColAnalytics)
	if err != nil {
		return 0, err
	}
	res, err := col.DeleteMany(ctx, bson.M{"timestamp": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, apperr.FromStore("events.analytics.purge", err)
	}
	return res.DeletedCount, nil
}
