package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/optionsdesk/internal/blob/s3"
	"github.com/alanyoungcy/optionsdesk/internal/cache/local"
	"github.com/alanyoungcy/optionsdesk/internal/cache/redis"
	"github.com/alanyoungcy/optionsdesk/internal/config"
	"github.com/alanyoungcy/optionsdesk/internal/domain"
	"github.com/alanyoungcy/optionsdesk/internal/server/handler"
	"github.com/alanyoungcy/optionsdesk/internal/store/memory"
	"github.com/alanyoungcy/optionsdesk/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application modes
// need to operate. It is constructed by Wire and torn down by the returned
// cleanup function.
type Dependencies struct {
	// Stores
	TradeStore     domain.TradeStore
	PortfolioStore domain.PortfolioStore
	PositionStore  domain.PositionStore
	AuditStore     domain.AuditStore

	// Caches
	RateLimiter    domain.RateLimiter
	LockManager    domain.LockManager
	EventBus       domain.EventBus
	TokenBlacklist domain.TokenBlacklist

	// Blob storage. Nil when s3 is disabled.
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Backuper   domain.Backuper

	// Postgres is nil for the memory driver.
	Postgres *postgres.Client

	// Checks feed the health endpoint.
	Checks map[string]handler.Check
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{Checks: map[string]handler.Check{}}

	// --- Ledger storage ---
	switch cfg.Storage.Driver {
	case "memory":
		logger.WarnContext(ctx, "wire: using in-memory storage; data is lost on restart")
		st := memory.New()
		deps.TradeStore = st.Trades()
		deps.PortfolioStore = st.Portfolios()
		deps.PositionStore = st.Positions()
		deps.AuditStore = st.Audit()
	default:
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)
		deps.Postgres = pgClient
		deps.Checks["postgres"] = pgClient.Ping

		// Migrate mode applies migrations itself and reports the result.
		if cfg.Postgres.RunMigrations && cfg.Mode != "migrate" {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.TradeStore = postgres.NewTradeStore(pool)
		deps.PortfolioStore = postgres.NewPortfolioStore(pool)
		deps.PositionStore = postgres.NewPositionStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
	}

	// --- Redis, or in-process replacements ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.Checks["redis"] = redisClient.Ping

		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.EventBus = redis.NewEventBus(redisClient)
		deps.TokenBlacklist = redis.NewTokenBlacklist(redisClient)
	} else {
		logger.WarnContext(ctx, "wire: redis disabled; limits, locks, events and revocations are per process")
		deps.RateLimiter = local.NewRateLimiter()
		deps.LockManager = local.NewLockManager()
		deps.EventBus = local.NewEventBus()
		deps.TokenBlacklist = local.NewTokenBlacklist()
	}

	// --- S3 blob storage ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Checks["s3"] = s3Client.Health

		writer := s3blob.NewWriter(s3Client)
		deps.BlobWriter = writer
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.Backuper = s3blob.NewBackup(writer, deps.TradeStore, deps.PositionStore, deps.AuditStore)
	}

	return deps, cleanup, nil
}
