package session

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

// errOwnerTaken is returned by Store.Insert when (kind, owner) already has
// a record, expired or not.
var errOwnerTaken = errors.New("owner already has a session")

// Store persists ephemeral sessions. (kind, owner) is unique.
type Store interface {
	Insert(ctx context.Context, s models.EphemeralSession) error
	// TakeOverExpired overwrites the existing record for (kind, owner) with
	// s only when that record is expired at now. It returns nil when the
	// existing record is still live.
	TakeOverExpired(ctx context.Context, s models.EphemeralSession, now time.Time) (*models.EphemeralSession, error)
	// FindActive returns nil when there is no unexpired record.
	FindActive(ctx context.Context, kind models.SessionKind, owner string, now time.Time) (*models.EphemeralSession, error)
	// UpdatePayload returns nil when there is no unexpired record.
	UpdatePayload(ctx context.Context, kind models.SessionKind, owner string, payload models.SessionPayload, now time.Time) (*models.EphemeralSession, error)
	Delete(ctx context.Context, kind models.SessionKind, owner string) (bool, error)
	// ListActive returns unexpired records newest first. An empty kind
	// lists every kind.
	ListActive(ctx context.Context, kind models.SessionKind, now time.Time, limit int) ([]models.EphemeralSession, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type mongoStore struct {
	db *database.Manager
}

func NewMongoStore(db *database.Manager) Store {
	return &mongoStore{db: db}
}

func (s *mongoStore) collection(ctx context.Context) (*mongo.Collection, error) {
	return s.db.Collection(ctx, database.ColSessions)
}

func (s *mongoStore) Insert(ctx context.Context, sess models.EphemeralSession) error {
	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()
	col, err := s.collection(ctx)
	if err != nil {
		return err
	}
	_, err = col.InsertOne(ctx, sess)
	if apperr.IsDuplicateKey(err) {
		return errOwnerTaken
	}
	return apperr.FromStore("session.insert", err)
}

func (s *mongoStore) TakeOverExpired(ctx context.Context, sess models.EphemeralSession, now time.Time) (*models.EphemeralSession, error) {
	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()
	col, err := s.collection(ctx)
	if err != nil {
		return nil, err
	}
	filter := bson.M{"kind": sess.Kind, "owner": sess.Owner, "expires_at": bson.M{"$lte": now}}
	update := bson.M{"$set": bson.M{
		"payload":    sess.Payload,
		"created_at": sess.CreatedAt,
		"expires_at": sess.ExpiresAt,
	}}
	var out models.EphemeralSession
	err = col.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.FromStore("session.takeover", err)
	}
	return &out, nil
}

func (s *mongoStore) FindActive(ctx context.Context, kind models.SessionKind, owner string, now time.Time) (*models.EphemeralSession, error) {
	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()
	col, err := s.collection(ctx)
	if err != nil {
		return nil, err
	}
	var out models.EphemeralSession
	err = col.FindOne(ctx, activeFilter(kind, owner, now)).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.FromStore("session.get", err)
	}
	return &out, nil
}

func (s *mongoStore) UpdatePayload(ctx context.Context, kind models.SessionKind, owner string, payload models.SessionPayload, now time.Time) (*models.EphemeralSession, error) {
	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()
	col, err := s.collection(ctx)
	if err != nil {
		return nil, err
	}
	var out models.EphemeralSession
	err = col.FindOneAndUpdate(ctx, activeFilter(kind, owner, now),
		bson.M{"$set": bson.M{"payload": payload}},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.FromStore("session.update", err)
	}
	return &out, nil
}

func (s *mongoStore) Delete(ctx context.Context, kind models.SessionKind, owner string) (bool, error) {
	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()
	col, err := s.collection(ctx)
	if err != nil {
		return false, err
	}
	res, err := col.DeleteOne(ctx, bson.M{"kind": kind, "owner": owner})
	if err != nil {
		return false, apperr.FromStore("session.delete", err)
	}
	return res.DeletedCount > 0, nil
}

func (s *mongoStore) ListActive(ctx context.Context, kind models.SessionKind, now time.Time, limit int) ([]models.EphemeralSession, error) {
	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()
	col, err := s.collection(ctx)
	if err != nil {
		return nil, err
	}
	filter := bson.M{"expires_at": bson.M{"$gt": now}}
	if kind != "" {
		filter["kind"] = kind
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, apperr.FromStore("session.list", err)
	}
	out := make([]models.EphemeralSession, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, apperr.FromStore("session.list", err)
	}
	return out, nil
}

func (s *mongoStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()
	col, err := s.collection(ctx)
	if err != nil {
		return 0, err
	}
	res, err := col.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": now}})
	if err != nil {
		return 0, apperr.FromStore("session.sweep", err)
	}
	return res.DeletedCount, nil
}

func activeFilter(kind models.SessionKind, owner string, now time.Time) bson.M {
	return bson.M{"kind": kind, "owner": owner, "expires_at": bson.M{"$gt": now}}
}
