package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/folio/internal/middleware"
	"github.com/mx-space/folio/internal/models"
	"github.com/mx-space/folio/internal/modules/admin"
	"github.com/mx-space/folio/internal/modules/auth"
	"github.com/mx-space/folio/internal/modules/chat"
	"github.com/mx-space/folio/internal/modules/content"
	"github.com/mx-space/folio/internal/modules/crontask"
	"github.com/mx-space/folio/internal/modules/events"
	"github.com/mx-space/folio/internal/modules/files"
	"github.com/mx-space/folio/internal/modules/servertime"
	"github.com/mx-space/folio/internal/modules/settings"
	"github.com/mx-space/folio/internal/modules/tools/aiimage"
	"github.com/mx-space/folio/internal/modules/tools/games"
	"github.com/mx-space/folio/internal/modules/tools/instagram"
	"github.com/mx-space/folio/internal/modules/tools/qrcode"
	"github.com/mx-space/folio/internal/modules/tools/tempmail"
	"github.com/mx-space/folio/internal/modules/usage"
	"github.com/mx-space/folio/internal/pkg/objectstore"
	"github.com/mx-space/folio/internal/pkg/response"
	"github.com/mx-space/folio/internal/pkg/upstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	httpCacheTTL   = 15 * time.Second
	loginPerSecond = 1
	loginBurst     = 5
)

func (a *App) registerRoutes() {
	r := a.router
	cfg := a.cfg
	log := a.logger

	r.NoRoute(func(c *gin.Context) { response.NotFound(c) })
	r.NoMethod(func(c *gin.Context) { response.MethodNotAllowed(c) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Redis-backed middleware degrades to pass-through (or in-process
	// limiting) when no Redis is configured.
	var (
		cacheStore middleware.CacheStore
		idemStore  middleware.IdempotenceStore
		counter    middleware.WindowCounter
	)
	if a.rc != nil {
		cacheStore, idemStore, counter = a.rc, a.rc, a.rc
	}

	authMW := middleware.AdminAuth(a.signer)
	optionalAuthMW := middleware.OptionalAdmin(a.signer)
	idempotent := middleware.Idempotence(idemStore)
	loginMW := middleware.RateLimit(middleware.RateLimitOptions{
		Name: "login", Counter: counter, PerSecond: loginPerSecond, Burst: loginBurst, Logger: log,
	})
	toolsLimit := middleware.RateLimit(middleware.RateLimitOptions{
		Name: "tools", Counter: counter, PerSecond: cfg.RateLimit.PerSecond, Burst: cfg.RateLimit.Burst, Logger: log,
	})
	feature := func(name string) gin.HandlerFunc { return middleware.RequireFeature(a.settings, name, log) }
	purge := func(ctx context.Context) {
		if _, err := middleware.PurgeHTTPCache(context.WithoutCancel(ctx), cacheStore); err != nil {
			log.Warn("purge response cache", zap.Error(err))
		}
	}

	api := r.Group("/api", optionalAuthMW, middleware.Track(a.recorder))
	api.GET("/ping", func(c *gin.Context) { response.Data(c, "pong") })
	api.GET("/uptime", a.uptime)
	servertime.NewHandler(cfg.Location()).RegisterRoutes(api)

	// Public reads that are safe to share between anonymous visitors.
	cached := api.Group("", middleware.HTTPCache(cacheStore, middleware.HTTPCacheOptions{
		TTL:     httpCacheTTL,
		Disable: cfg.IsDev(),
	}))

	settingsHandler := settings.NewHandler(a.settings, a.recorder, log)
	settingsHandler.OnChange(purge)
	settingsHandler.RegisterRoutes(cached, authMW)

	contentHandler := content.NewHandler(content.NewService(content.NewMongoStore(a.db)), a.settings, a.recorder, log)
	contentHandler.OnChange(purge)
	contentHandler.RegisterRoutes(cached, authMW, optionalAuthMW)

	objects, err := objectstore.New(cfg.Storage.S3)
	var fileObjects files.ObjectStore
	if err == nil {
		fileObjects = objects
	} else {
		log.Info("object storage disabled", zap.Error(err))
	}
	filesHandler := files.NewHandler(
		files.NewService(files.NewMongoStore(a.db), fileObjects, log),
		a.recorder,
		int64(cfg.Storage.MaxUploadMB)<<20,
		log,
	)
	filesHandler.OnChange(purge)
	filesHandler.RegisterRoutes(cached, authMW, feature(models.FeatureUploader), idempotent)

	events.NewHandler(a.recorder, log).RegisterRoutes(api)
	auth.NewHandler(auth.NewService(a.settings, a.signer, cfg.Admin.TokenTTL, log), a.recorder, log).
		RegisterRoutes(api, authMW, loginMW)

	adminSvc := admin.NewService(admin.NewMongoStore(a.db), a.sessions, log)
	admin.NewHandler(adminSvc, a.settings, log).RegisterRoutes(api, authMW)
	crontask.NewHandler(a.sched, a.dispatcher).RegisterRoutes(api, authMW)

	chatSvc := chat.NewService(chat.NewModel(cfg.Chat, cfg.Scraper.Timeout), a.sessions, cfg.Chat.System, cfg.Chat.SessionTTL)
	chat.NewHandler(chatSvc, log).RegisterRoutes(api, toolsLimit)

	tools := api.Group("/tools", toolsLimit)
	qrcode.NewHandler(log).RegisterRoutes(tools)

	scraperOpts := func(name string) upstream.Options {
		return upstream.Options{Name: name, Timeout: cfg.Scraper.Timeout, UserAgent: cfg.Scraper.UserAgent}
	}
	instagram.NewHandler(
		instagram.NewScraper(upstream.New(scraperOpts("instagram"), log), cfg.Scraper.InstagramURL, cfg.Scraper.InstagramApp),
		log,
	).RegisterRoutes(tools)
	games.NewHandler(games.NewScraper(upstream.New(scraperOpts("games"), log), cfg.Scraper.GamesURL), log).
		RegisterRoutes(tools)

	mailProvider := tempmail.NewMailTM(upstream.New(upstream.Options{Name: "tempmail", Timeout: cfg.Scraper.Timeout}, log), cfg.TempMail.BaseURL)
	limiter := usage.NewService(usage.NewMongoStore(a.db), cfg.Location())
	tempmail.NewHandler(
		tempmail.NewService(mailProvider, limiter, a.sessions, cfg.TempMail.DailyLimit, cfg.TempMail.TTL, log),
		log,
	).RegisterRoutes(tools, feature(models.FeatureTempMail))

	aiimage.NewHandler(aiimage.NewGenerator(cfg.AIImage, cfg.Scraper.Timeout), log).
		RegisterRoutes(tools, feature(models.FeatureAIImage), idempotent)
}

func (a *App) uptime(c *gin.Context) {
	up := time.Since(processStart)
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"uptimeMs": up.Milliseconds(),
		"humanize": humanizeDuration(up),
	})
}
