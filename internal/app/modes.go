package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/optionsdesk/internal/auth"
	"github.com/alanyoungcy/optionsdesk/internal/domain"
	"github.com/alanyoungcy/optionsdesk/internal/server"
	"github.com/alanyoungcy/optionsdesk/internal/server/handler"
	"github.com/alanyoungcy/optionsdesk/internal/server/ws"
	"github.com/alanyoungcy/optionsdesk/internal/service"
)

// ServerMode serves the REST API and websocket feed, and runs the backup
// schedule when enabled, until ctx is cancelled.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	jwt, err := auth.New(auth.Config{
		Secret:   a.cfg.Auth.JWTSecret,
		Issuer:   a.cfg.Auth.Issuer,
		Audience: a.cfg.Auth.Audience,
		TokenTTL: a.cfg.Auth.TokenTTL.Duration,
	})
	if err != nil {
		return fmt.Errorf("app: auth: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	svcLogger := a.logger.With(slog.String("component", "service"))
	trades := service.NewTradeService(deps.TradeStore, deps.PortfolioStore, deps.EventBus, deps.AuditStore, svcLogger)
	portfolios := service.NewPortfolioService(
		deps.PortfolioStore, deps.PositionStore, deps.TradeStore,
		deps.LockManager, deps.EventBus, deps.AuditStore, svcLogger,
	)
	positions := service.NewPositionService(deps.PositionStore, deps.PortfolioStore, deps.EventBus, deps.AuditStore, svcLogger)
	exports := service.NewExportService(deps.TradeStore, deps.BlobWriter, deps.BlobReader, deps.AuditStore, svcLogger)

	httpLogger := a.logger.With(slog.String("component", "http"))
	hub := ws.NewHub(deps.EventBus, a.cfg.Server.CORSOrigins, a.logger.With(slog.String("component", "ws")))
	g.Go(func() error {
		if err := hub.Run(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("ws hub: %w", err)
		}
		return nil
	})

	srv := server.NewServer(
		server.Config{
			Port:            a.cfg.Server.Port,
			CORSOrigins:     a.cfg.Server.CORSOrigins,
			RateLimit:       a.cfg.RateLimit.Requests,
			RateLimitWindow: a.cfg.RateLimit.Window.Duration,
		},
		server.Handlers{
			Health:     handler.NewHealthHandler(deps.Checks, httpLogger),
			Trades:     handler.NewTradeHandler(trades, httpLogger),
			Portfolios: handler.NewPortfolioHandler(portfolios, httpLogger),
			Positions:  handler.NewPositionHandler(positions, httpLogger),
			Exports:    handler.NewExportHandler(exports, httpLogger),
			Auth:       handler.NewAuthHandler(deps.TokenBlacklist, httpLogger),
		},
		server.Security{
			Verifier:  jwt,
			Blacklist: deps.TokenBlacklist,
			Limiter:   deps.RateLimiter,
		},
		hub,
		httpLogger,
	)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		timeout := a.cfg.Server.ShutdownTimeout.Duration
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	if a.cfg.Archive.Enabled && deps.Backuper != nil {
		if err := a.startBackupSchedule(ctx, g, deps.Backuper); err != nil {
			return err
		}
	}

	return g.Wait()
}

// MigrateMode applies pending schema migrations and exits.
func (a *App) MigrateMode(ctx context.Context, deps *Dependencies) error {
	if deps.Postgres == nil {
		return fmt.Errorf("app: migrate mode requires postgres storage")
	}
	a.logger.InfoContext(ctx, "applying migrations")
	if err := deps.Postgres.RunMigrations(ctx); err != nil {
		return fmt.Errorf("app: migrate: %w", err)
	}
	a.logger.InfoContext(ctx, "migrations applied")
	return nil
}

// BackupMode runs a single backup and exits.
func (a *App) BackupMode(ctx context.Context, deps *Dependencies) error {
	if deps.Backuper == nil {
		return fmt.Errorf("app: backup mode requires s3 storage")
	}
	return a.runBackup(ctx, deps.Backuper)
}

// startBackupSchedule runs backups on the archive cron until ctx is done.
func (a *App) startBackupSchedule(ctx context.Context, g *errgroup.Group, b domain.Backuper) error {
	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(a.cfg.Archive.Cron, func() {
		if err := a.runBackup(ctx, b); err != nil {
			a.logger.ErrorContext(ctx, "backup: scheduled run failed", slog.String("error", err.Error()))
		}
	}); err != nil {
		return fmt.Errorf("app: archive cron %q: %w", a.cfg.Archive.Cron, err)
	}

	g.Go(func() error {
		c.Start()
		a.logger.InfoContext(ctx, "backup: schedule started", slog.String("cron", a.cfg.Archive.Cron))
		<-ctx.Done()
		<-c.Stop().Done()
		return nil
	})
	return nil
}

func (a *App) runBackup(ctx context.Context, b domain.Backuper) error {
	start := time.Now()
	res, err := b.Backup(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("app: backup: %w", err)
	}
	a.logger.InfoContext(ctx, "backup: completed",
		slog.String("trades_path", res.TradesPath),
		slog.Int("trades", res.Trades),
		slog.String("positions_path", res.PositionsPath),
		slog.Int("positions", res.Positions),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}
