package app

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/alanyoungcy/optionsdesk/internal/config"
)

func TestWireMemoryWithoutRedis(t *testing.T) {
	cfg := config.Defaults()
	cfg.Storage.Driver = "memory"
	cfg.Redis.Enabled = false
	cfg.Auth.JWTSecret = "secret"

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	deps, cleanup, err := Wire(context.Background(), &cfg, logger)
	if err != nil {
		t.Fatalf("wire: %v", err)
	}
	defer cleanup()

	if deps.TradeStore == nil || deps.PortfolioStore == nil || deps.PositionStore == nil || deps.AuditStore == nil {
		t.Fatalf("stores not wired: %+v", deps)
	}
	if deps.RateLimiter == nil || deps.LockManager == nil || deps.EventBus == nil || deps.TokenBlacklist == nil {
		t.Fatalf("caches not wired: %+v", deps)
	}
	if deps.BlobWriter != nil || deps.BlobReader != nil || deps.Backuper != nil {
		t.Fatalf("blob storage wired while s3 disabled")
	}
	if deps.Postgres != nil {
		t.Fatalf("postgres wired for memory driver")
	}
	if len(deps.Checks) != 0 {
		t.Fatalf("checks=%v want none", deps.Checks)
	}
}

func TestModesRequireBackends(t *testing.T) {
	cfg := config.Defaults()
	a := New(&cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := a.MigrateMode(context.Background(), &Dependencies{}); err == nil || !strings.Contains(err.Error(), "postgres") {
		t.Fatalf("migrate err=%v want postgres requirement", err)
	}
	if err := a.BackupMode(context.Background(), &Dependencies{}); err == nil || !strings.Contains(err.Error(), "s3") {
		t.Fatalf("backup err=%v want s3 requirement", err)
	}
}

func TestRunRejectsUnknownMode(t *testing.T) {
	cfg := config.Defaults()
	cfg.Storage.Driver = "memory"
	cfg.Redis.Enabled = false
	cfg.Mode = "trade"
	a := New(&cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer a.Close()

	if err := a.Run(context.Background()); err == nil || !strings.Contains(err.Error(), "unsupported mode") {
		t.Fatalf("err=%v want unsupported mode", err)
	}
}
