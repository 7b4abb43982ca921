package files

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

// Store holds file metadata; the bytes live in object storage.
type Store interface {
	Insert(ctx context.Context, f models.FileModel) error
	List(ctx context.Context) ([]models.FileModel, error)
	// Get returns nil, nil when publicID is unknown.
	Get(ctx context.Context, publicID string) (*models.FileModel, error)
	Delete(ctx context.Context, publicID string) (bool, error)
	// IncDownloads reports whether a document matched.
	IncDownloads(ctx context.Context, publicID string) (bool, error)
}

var errPublicIDTaken = errors.New("public id taken")

type mongoStore struct {
	db *database.Manager
}

func NewMongoStore(db *database.Manager) Store {
	return &mongoStore{db: db}
}

func (s *mongoStore) Insert(ctx context.Context, f models.FileModel) error {
	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()
	col, err := s.db.Collection(ctx, database.ColFiles)
	if err != nil {
		return err
	}
	if _, err := col.InsertOne(ctx, f); err != nil {
		if apperr.IsDuplicateKey(err) {
			return errPublicIDTaken
		}
		return apperr.FromStore("files.insert", err)
	}
	return nil
}

func (s *mongoStore) List(ctx context.Context) ([]models.FileModel, error) {
	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()
	col, err := s.db.Collection(ctx, database.ColFiles)
	if err != nil {
		return nil, err
	}
	cur, err := col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, apperr.FromStore("files.list", err)
	}
	var out []models.FileModel
	if err := cur.All(ctx, &out); err != nil {
		return nil, apperr.FromStore("files.list", err)
	}
	return out, nil
}

func (s *mongoStore) Get(ctx context.Context, publicID string) (*models.FileModel, error) {
	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()
	col, err := s.db.Collection(ctx, database.ColFiles)
	if err != nil {
		return nil, err
	}
	var f models.FileModel
	if err := col.FindOne(ctx, bson.M{"public_id": publicID}).Decode(&f); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, apperr.FromStore("files.get", err)
	}
	return &f, nil
}

func (s *mongoStore) Delete(ctx context.Context, publicID string) (bool, error) {
	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()
	col, err := s.db.Collection(ctx, database.ColFiles)
	if err != nil {
		return false, err
	}
	res, err := col.DeleteOne(ctx, bson.M{"public_id": publicID})
	if err != nil {
		return false, apperr.FromStore("files.delete", err)
	}
	return res.DeletedCount > 0, nil
}

func (s *mongoStore) IncDownloads(ctx context.Context, publicID string) (bool, error) {
	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()
	col, err := s.db.Collection(ctx, database.ColFiles)
	if err != nil {
		return false, err
	}
	res, err := col.UpdateOne(ctx, bson.M{"public_id": publicID}, bson.M{"$inc": bson.M{"downloads": 1}})
	if err != nil {
		return false, apperr.FromStore("files.downloads", err)
	}
	return res.MatchedCount > 0, nil
}
