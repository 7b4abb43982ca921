package app

import (
	"context"
	"time"

	pkgcron "github.com/mx-space/folio/internal/pkg/cron"
	"go.uber.org/zap"
)

// registerCronJobs registers all scheduled background jobs.
func (a *App) registerCronJobs() error {
	cronLogger := a.logger.Named("CronService")
	retention := time.Duration(a.cfg.Analytics.RetentionDays) * 24 * time.Hour

	jobs := []pkgcron.Job{
		{
			Name:        "bootstrap",
			Description: "Create indexes, default records and the admin password once the database is reachable",
			Spec:        "@every 1m",
			Fn:          a.ensureBootstrap,
		},
		{
			Name:        "cleanup_analytics",
			Description: "Delete analytics events past the retention window",
			Spec:        "0 3 * * *",
			Fn: func(ctx context.Context) error {
				deleted, err := a.recorder.PurgeAnalytics(ctx, retention)
				if err != nil {
					return err
				}
				cronLogger.Info("analytics cleaned up", zap.Int64("deleted", deleted), zap.Int("retention_days", a.cfg.Analytics.RetentionDays))
				return nil
			},
		},
		{
			Name:        "sweep_sessions",
			Description: "Delete expired temp-mail and chat sessions",
			Spec:        "@every 10m",
			Fn: func(ctx context.Context) error {
				deleted, err := a.sessions.Sweep(ctx)
				if err != nil {
					return err
				}
				if deleted > 0 {
					cronLogger.Info("expired sessions swept", zap.Int64("deleted", deleted))
				}
				return nil
			},
		},
	}
	for _, job := range jobs {
		if err := a.sched.Register(job); err != nil {
			return err
		}
	}
	return nil
}
