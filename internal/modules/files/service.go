package files

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"math/big"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mx-space/folio/internal/models"
	"github.com/mx-space/folio/internal/pkg/apperr"
	"go.uber.org/zap"
)

const (
	publicIDLength   = 10
	publicIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	maxIDAttempts    = 3
)

// ErrStorageDisabled is returned for writes when no object store is set up.
var ErrStorageDisabled = errors.New("file storage is not configured")

// ObjectStore is the S3 surface the service needs.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.ReadSeeker, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// Upload is a file received from a client.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.ReadSeeker
}

type Service struct {
	store   Store
	objects ObjectStore
	logger  *zap.Logger
	now     func() time.Time
}

// NewService builds the service. objects may be nil, in which case reads
// work and writes fail with ErrStorageDisabled.
func NewService(store Store, objects ObjectStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, objects: objects, logger: logger.Named("FileService"), now: time.Now}
}

func (s *Service) Upload(ctx context.Context, up Upload) (models.FileModel, error) {
	if s.objects == nil {
		return models.FileModel{}, ErrStorageDisabled
	}
	name := filepath.Base(strings.TrimSpace(up.Name))
	if name == "" || name == "." || name == "/" {
		return models.FileModel{}, apperr.Validation("file name is required")
	}
	if up.Size <= 0 {
		return models.FileModel{}, apperr.Validation("file is empty")
	}

	now := s.now().UTC()
	key := objectKey(name, now)
	url, err := s.objects.Put(ctx, key, up.Body, up.Size, up.ContentType)
	if err != nil {
		return models.FileModel{}, apperr.Upstream(err, "object storage rejected the upload")
	}

	f := models.FileModel{
		Name:        name,
		Key:         key,
		URL:         url,
		Size:        up.Size,
		ContentType: up.ContentType,
	}
	f.Touch(now)
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		f.PublicID, err = newPublicID()
		if err != nil {
			break
		}
		err = s.store.Insert(ctx, f)
		if !errors.Is(err, errPublicIDTaken) {
			break
		}
	}
	if err != nil {
		if delErr := s.objects.Delete(ctx, key); delErr != nil {
			s.logger.Warn("orphaned object after failed insert", zap.String("key", key), zap.Error(delErr))
		}
		return models.FileModel{}, err
	}
	return f, nil
}

func (s *Service) List(ctx context.Context) ([]models.FileModel, error) {
	items, err := s.store.List(ctx)
	if items == nil && err == nil {
		items = []models.FileModel{}
	}
	return items, err
}

func (s *Service) Get(ctx context.Context, publicID string) (models.FileModel, error) {
	f, err := s.store.Get(ctx, publicID)
	if err != nil {
		return models.FileModel{}, err
	}
	if f == nil {
		return models.FileModel{}, apperr.NotFound("file not found")
	}
	return *f, nil
}

// Delete removes the metadata and then the object. A failed object delete
// is logged; the file is already gone from every listing.
func (s *Service) Delete(ctx context.Context, publicID string) (models.FileModel, error) {
	if s.objects == nil {
		return models.FileModel{}, ErrStorageDisabled
	}
	f, err := s.Get(ctx, publicID)
	if err != nil {
		return models.FileModel{}, err
	}
	ok, err := s.store.Delete(ctx, publicID)
	if err != nil {
		return models.FileModel{}, err
	}
	if !ok {
		return models.FileModel{}, apperr.NotFound("file not found")
	}
	if err := s.objects.Delete(ctx, f.Key); err != nil {
		s.logger.Warn("delete object", zap.String("key", f.Key), zap.Error(err))
	}
	return f, nil
}

// CountDownload bumps the download counter. An unknown id is not an error.
func (s *Service) CountDownload(ctx context.Context, publicID string) error {
	matched, err := s.store.IncDownloads(ctx, publicID)
	if err != nil {
		return err
	}
	if !matched {
		s.logger.Debug("download counted for unknown file", zap.String("publicId", publicID))
	}
	return nil
}

func objectKey(name string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" || len(ext) > 10 {
		ext = ".dat"
	}
	return "files/" + now.Format("2006/01") + "/" + strings.ReplaceAll(uuid.NewString(), "-", "")[:18] + ext
}

func newPublicID() (string, error) {
	var b strings.Builder
	size := big.NewInt(int64(len(publicIDAlphabet)))
	for i := 0; i < publicIDLength; i++ {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", err
		}
		b.WriteByte(publicIDAlphabet[n.Int64()])
	}
	return b.String(), nil
}
