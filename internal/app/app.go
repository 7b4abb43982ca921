package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/folio/internal/config"
	"github.com/mx-space/folio/internal/database"
	"github.com/mx-space/folio/internal/middleware"
	"github.com/mx-space/folio/internal/modules/auth"
	"github.com/mx-space/folio/internal/modules/events"
	"github.com/mx-space/folio/internal/modules/session"
	"github.com/mx-space/folio/internal/modules/settings"
	pkgcron "github.com/mx-space/folio/internal/pkg/cron"
	jwtpkg "github.com/mx-space/folio/internal/pkg/jwt"
	pkgredis "github.com/mx-space/folio/internal/pkg/redis"
	"github.com/mx-space/folio/internal/pkg/taskqueue"
	"go.uber.org/zap"
)

const (
	auditWorkers   = 2
	auditQueueSize = 512
	bootstrapLimit = 30 * time.Second
)

// App holds all application dependencies.
type App struct {
	cfg        *config.AppConfig
	router     *gin.Engine
	logger     *zap.Logger
	db         *database.Manager
	rc         *pkgredis.Client
	signer     *jwtpkg.Signer
	dispatcher *taskqueue.Dispatcher
	sched      *pkgcron.Scheduler
	cancel     context.CancelFunc

	// bootstrapped flips once indexes, default records and the admin
	// password are in place.
	bootstrapped atomic.Bool

	settings *settings.Service
	sessions *session.Service
	recorder *events.Recorder
}

// New initializes the application: stores, background workers, routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	signer, err := jwtpkg.NewSigner(cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("jwt: %w", err)
	}

	var rc *pkgredis.Client
	if cfg.RedisURL != "" {
		rc, err = pkgredis.Connect(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
	} else {
		logger.Warn("redis_url is empty, using in-process rate limiting without response cache")
	}

	db := database.NewManager(cfg.Mongo, logger)
	dispatcher := taskqueue.NewDispatcher(events.DispatcherOptions(auditWorkers, auditQueueSize), logger)

	a := &App{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		rc:         rc,
		signer:     signer,
		dispatcher: dispatcher,
		sched:      pkgcron.New(logger, cfg.Location()),
		settings:   settings.NewService(settings.NewMongoStore(db)),
		sessions:   session.NewService(session.NewMongoStore(db)),
	}
	a.recorder = events.NewRecorder(events.NewMongoStore(db), dispatcher, logger)

	// The store may be down at startup; reads fall back to defaults and the
	// bootstrap job retries until it succeeds.
	ctx, cancel := context.WithTimeout(context.Background(), bootstrapLimit)
	err = a.ensureBootstrap(ctx)
	cancel()
	if err != nil {
		logger.Warn("bootstrap deferred until the database is reachable", zap.Error(err))
	}

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Metrics())
	router.Use(middleware.Logger(logger))
	router.Use(newCORS(cfg))
	a.router = router
	a.registerRoutes()

	if err := a.registerCronJobs(); err != nil {
		ctx, cancel := context.WithTimeout(context.Background(), bootstrapLimit)
		defer cancel()
		a.release(ctx)
		return nil, fmt.Errorf("cron: %w", err)
	}
	runCtx, stop := context.WithCancel(context.Background())
	a.cancel = stop
	a.sched.Start(runCtx)

	return a, nil
}

// ensureBootstrap runs bootstrap until it has succeeded once.
func (a *App) ensureBootstrap(ctx context.Context) error {
	if a.bootstrapped.Load() {
		return nil
	}
	if err := a.bootstrap(ctx); err != nil {
		return err
	}
	if a.bootstrapped.CompareAndSwap(false, true) {
		a.logger.Info("bootstrap completed")
	}
	return nil
}

// bootstrap prepares indexes, singleton records and the admin password.
// Every step is idempotent.
func (a *App) bootstrap(ctx context.Context) error {
	if err := a.db.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("database indexes: %w", err)
	}
	if err := a.settings.EnsureDefault(ctx); err != nil {
		return fmt.Errorf("default settings: %w", err)
	}
	authSvc := auth.NewService(a.settings, a.signer, a.cfg.Admin.TokenTTL, a.logger)
	seeded, err := authSvc.Bootstrap(ctx, a.cfg.Admin.InitialPassword)
	if err != nil {
		return fmt.Errorf("admin password: %w", err)
	}
	if seeded {
		a.logger.Info("admin password initialized from config")
	}
	return nil
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown stops the scheduler, drains queued audit writes and closes the
// store connections, all bounded by ctx.
func (a *App) Shutdown(ctx context.Context) {
	if a.cancel != nil {
		a.cancel()
	}
	a.sched.Wait()
	a.release(ctx)
}

// release drains queued audit writes and closes the store connections.
func (a *App) release(ctx context.Context) {
	if err := a.dispatcher.Close(ctx); err != nil {
		a.logger.Warn("audit queue not drained", zap.Int64("dropped", a.dispatcher.Dropped()), zap.Error(err))
	}
	if err := a.db.Close(ctx); err != nil {
		a.logger.Warn("close database", zap.Error(err))
	}
	if a.rc != nil {
		_ = a.rc.Close()
	}
}
