package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mx-space/folio/internal/app"
	"github.com/mx-space/folio/internal/config"
	"github.com/mx-space/folio/internal/pkg/nativelog"
	"github.com/mx-space/folio/internal/pkg/proctitle"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "Path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		boot, _ := zap.NewProduction()
		boot.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := nativelog.NewZapLogger(cfg.LogDir(), cfg.Log.Level, cfg.IsDev())
	if err != nil {
		logger, _ = zap.NewProduction()
		logger.Warn("native log pipeline unavailable, fallback to zap production logger", zap.Error(err))
	}
	defer logger.Sync()

	if err := proctitle.Set(proctitle.Title("folio", cfg.Env)); err != nil {
		logger.Debug("set process title", zap.Error(err))
	}

	application, err := app.New(logger, cfg)
	if err != nil {
		logger.Fatal("failed to initialize app", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              application.Addr(),
		Handler:           application.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
	application.Shutdown(ctx)
	logger.Info("server exited")
}
