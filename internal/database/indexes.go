package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	ColSettings  = "settings"
	ColUsage     = "usage_counters"
	ColSessions  = "sessions"
	ColAnalytics = "analytics_events"
	ColActivity  = "activity_logs"
	ColFiles     = "files"
	ColContents  = "contents"
)

func indexSpecs() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		ColUsage: {
			{Keys: bson.D{{Key: "source", Value: 1}, {Key: "day", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		},
		ColSessions: {
			{Keys: bson.D{{Key: "kind", Value: 1}, {Key: "owner", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
			{Keys: bson.D{{Key: "kind", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		ColAnalytics: {
			{Keys: bson.D{{Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "kind", Value: 1}, {Key: "path", Value: 1}}},
		},
		ColActivity: {
			{Keys: bson.D{{Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "action", Value: 1}, {Key: "entity", Value: 1}}},
		},
		ColFiles: {
			{Keys: bson.D{{Key: "public_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		ColContents: {
			{Keys: bson.D{{Key: "kind", Value: 1}, {Key: "created_at", Value: -1}}},
			{
				Keys:    bson.D{{Key: "kind", Value: 1}, {Key: "slug", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"slug": bson.M{"$gt": ""}}),
			},
		},
	}
}

// EnsureIndexes creates the uniqueness and TTL indexes the stores rely on.
func (m *Manager) EnsureIndexes(ctx context.Context) error {
	db, err := m.Database(ctx)
	if err != nil {
		return err
	}
	for name, models := range indexSpecs() {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}
