package usage

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

// Store keeps one counter per (source, day).
type Store interface {
	// Increment adds one to the counter when it is below limit, creating it
	// if needed, and returns the new count. ok is false when the counter is
	// already at or above limit; nothing is written in that case.
	Increment(ctx context.Context, source, day string, limit int, now, expiresAt time.Time) (count int, ok bool, err error)
	// Count returns the current value, 0 when the counter does not exist.
	Count(ctx context.Context, source, day string) (int, error)
}

type mongoStore struct {
	db *database.Manager
}

func NewMongoStore(db *database.Manager) Store {
	return &mongoStore{db: db}
}

func (s *mongoStore) Increment(ctx context.Context, source, day string, limit int, now, expiresAt time.Time) (int, bool, error) {
	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()
	col, err := s.db.Collection(ctx, database.ColUsage)
	if err != nil {
		return 0, false, err
	}

	filter := bson.M{"source": source, "day": day, "count": bson.M{"$lt": limit}}
	update := bson.M{
		"$inc":         bson.M{"count": 1},
		"$setOnInsert": bson.M{"created_at": now, "expires_at": expiresAt},
	}
	after := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var counter models.UsageCounter
	err = col.FindOneAndUpdate(ctx, filter, update, options.FindOneAndUpdate().
		SetUpsert(true).SetReturnDocument(options.After)).Decode(&counter)
	if apperr.IsDuplicateKey(err) {
		// Either the counter exists and is at the limit, so the upsert tried
		// to insert a second one, or a concurrent first use inserted it.
		// Retrying without upsert resolves both.
		err = col.FindOneAndUpdate(ctx, filter, update, after).Decode(&counter)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, false, nil
		}
	}
	if err != nil {
		return 0, false, apperr.FromStore("usage.increment", err)
	}
	return counter.Count, true, nil
}

func (s *mongoStore) Count(ctx context.Context, source, day string) (int, error) {
	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()
	col, err := s.db.Collection(ctx, database.ColUsage)
	if err != nil {
		return 0, err
	}
	var counter models.UsageCounter
	err = col.FindOne(ctx, bson.M{"source": source, "day": day}).Decode(&counter)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, apperr.FromStore("usage.count", err)
	}
	return counter.Count, nil
}
