package content

import (
	"context"
	"errors"

	"github.com/mx-space/folio/internal/database"
	"github.com/mx-space/folio/internal/models"
	"github.com/mx-space/folio/internal/pkg/apperr"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store persists content items of every kind in one collection.
type Store interface {
	List(ctx context.Context, kind models.ContentKind, publishedOnly bool) ([]models.ContentItem, error)
	// Find looks an item up by id or slug. A miss returns nil, nil.
	Find(ctx context.Context, kind models.ContentKind, idOrSlug string) (*models.ContentItem, error)
	Insert(ctx context.Context, item models.ContentItem) error
	Update(ctx context.Context, kind models.ContentKind, id string, set bson.M) (*models.ContentItem, error)
	Delete(ctx context.Context, kind models.ContentKind, id string) (bool, error)
	IncViews(ctx context.Context, kind models.ContentKind, id string) error
}

var errSlugTaken = errors.New("slug taken")

type mongoStore struct {
	db *database.Manager
}

func NewMongoStore(db *database.Manager) Store {
	return &mongoStore{db: db}
}

func (s *mongoStore) List(ctx context.Context, kind models.ContentKind, publishedOnly bool) ([]models.ContentItem, error) {
	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()
	col, err := s.db.Collection(ctx, database.ColContents)
	if err != nil {
		return nil, err
	}
	q := bson.M{"kind": kind}
	if publishedOnly {
		q["published"] = true
	}
	opts := options.Find().SetSort(bson.D{{Key: "order", Value: 1}, {Key: "created_at", Value: -1}})
	cur, err := col.Find(ctx, q, opts)
	if err != nil {
		return nil, apperr.FromStore("content.list", err)
	}
	var out []models.ContentItem
	if err := cur.All(ctx, &out); err != nil {
		return nil, apperr.FromStore("content.list", err)
	}
	return out, nil
}

func (s *mongoStore) Find(ctx context.Context, kind models.ContentKind, idOrSlug string) (*models.ContentItem, error) {
	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()
	col, err := s.db.Collection(ctx, database.ColContents)
	if err != nil {
		return nil, err
	}
	q := bson.M{"kind": kind, "$or": bson.A{bson.M{"_id": idOrSlug}, bson.M{"slug": idOrSlug}}}
	var item models.ContentItem
	if err := col.FindOne(ctx, q).Decode(&item); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, apperr.FromStore("content.find", err)
	}
	return &item, nil
}

func (s *mongoStore) Insert(ctx context.Context, item models.ContentItem) error {
	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()
	col, err := s.db.Collection(ctx, database.ColContents)
	if err != nil {
		return err
	}
	if _, err := col.InsertOne(ctx, item); err != nil {
		if apperr.IsDuplicateKey(err) {
			return errSlugTaken
		}
		return apperr.FromStore("content.insert", err)
	}
	return nil
}

func (s *mongoStore) Update(ctx context.Context, kind models.ContentKind, id string, set bson.M) (*models.ContentItem, error) {
	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()
	col, err := s.db.Collection(ctx, database.ColContents)
	if err != nil {
		return nil, err
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var item models.ContentItem
	err = col.FindOneAndUpdate(ctx, bson.M{"_id": id, "kind": kind}, bson.M{"$set": set}, opts).Decode(&item)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, nil
	case apperr.IsDuplicateKey(err):
		return nil, errSlugTaken
	case err != nil:
		return nil, apperr.FromStore("content.update", err)
	}
	return &item, nil
}

func (s *mongoStore) Delete(ctx context.Context, kind models.ContentKind, id string) (bool, error) {
	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()
	col, err := s.db.Collection(ctx, database.ColContents)
	if err != nil {
		return false, err
	}
	res, err := col.DeleteOne(ctx, bson.M{"_id": id, "kind": kind})
	if err != nil {
		return false, apperr.FromStore("content.delete", err)
	}
	return res.DeletedCount > 0, nil
}

func (s *mongoStore) IncViews(ctx context.Context, kind models.ContentKind, id string) error {
	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()
	col, err := s.db.Collection(ctx, database.ColContents)
	if err != nil {
		return err
	}
	_, err = col.UpdateOne(ctx, bson.M{"_id": id, "kind": kind}, bson.M{"$inc": bson.M{"views": 1}})
	return apperr.FromStore("content.views", err)
}
