package database

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mx-space/folio/internal/config"
	"github.com/mx-space/folio/internal/pkg/apperr"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Manager lazily opens one MongoDB client per process and hands out the
// cached database handle. The driver owns pooling and request safety.
type Manager struct {
	cfg    config.MongoConfig
	logger *zap.Logger

	mu     sync.Mutex
	client *mongo.Client
	db     *mongo.Database
}

func NewManager(cfg config.MongoConfig, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{cfg: cfg, logger: logger.Named("Database")}
}

// Database returns the shared handle, connecting on first use. A failed
// attempt is not cached; the next call tries again.
func (m *Manager) Database(ctx context.Context) (*mongo.Database, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db != nil {
		return m.db, nil
	}
	if m.cfg.URI == "" {
		return nil, apperr.Connection(nil, "database connection string is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, m.OpTimeout())
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(m.cfg.URI).
		SetServerSelectionTimeout(m.OpTimeout()))
	if err != nil {
		return nil, apperr.Connection(err, "database connection failed")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, apperr.Connection(err, "database unreachable")
	}

	m.client = client
	m.db = client.Database(m.cfg.Database)
	m.logger.Info("connected", zap.String("database", m.cfg.Database))
	return m.db, nil
}

// Collection resolves a collection on the shared handle.
func (m *Manager) Collection(ctx context.Context, name string) (*mongo.Collection, error) {
	db, err := m.Database(ctx)
	if err != nil {
		return nil, err
	}
	return db.Collection(name), nil
}

// OpTimeout bounds each store round trip.
func (m *Manager) OpTimeout() time.Duration {
	if m.cfg.Timeout <= 0 {
		return 10 * time.Second
	}
	return m.cfg.Timeout
}

// WithTimeout derives a context bounded by OpTimeout.
func (m *Manager) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.OpTimeout())
}

// Close disconnects the client if one was opened.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		return nil
	}
	err := m.client.Disconnect(ctx)
	m.client, m.db = nil, nil
	if err != nil && !errors.Is(err, mongo.ErrClientDisconnected) {
		return err
	}
	return nil
}
