package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies OPTIONSDESK_* environment variable overrides, and
// returns the final Config. An empty path skips the file and relies on
// defaults plus environment. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known OPTIONSDESK_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Storage ──
	setStr(&cfg.Storage.Driver, "OPTIONSDESK_STORAGE_DRIVER")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "OPTIONSDESK_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // platform convention
	setStr(&cfg.Postgres.Host, "OPTIONSDESK_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "OPTIONSDESK_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "OPTIONSDESK_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "OPTIONSDESK_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "OPTIONSDESK_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "OPTIONSDESK_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "OPTIONSDESK_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "OPTIONSDESK_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "OPTIONSDESK_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "OPTIONSDESK_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "OPTIONSDESK_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "OPTIONSDESK_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "OPTIONSDESK_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "OPTIONSDESK_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "OPTIONSDESK_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "OPTIONSDESK_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "OPTIONSDESK_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "OPTIONSDESK_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "OPTIONSDESK_S3_REGION")
	setStr(&cfg.S3.Bucket, "OPTIONSDESK_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "OPTIONSDESK_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "OPTIONSDESK_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "OPTIONSDESK_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "OPTIONSDESK_S3_FORCE_PATH_STYLE")

	// ── Auth ──
	setStr(&cfg.Auth.JWTSecret, "OPTIONSDESK_AUTH_JWT_SECRET")
	setStr(&cfg.Auth.JWTSecret, "JWT_SECRET") // shared with the account service
	setStr(&cfg.Auth.Issuer, "OPTIONSDESK_AUTH_ISSUER")
	setStr(&cfg.Auth.Audience, "OPTIONSDESK_AUTH_AUDIENCE")
	setDuration(&cfg.Auth.TokenTTL, "OPTIONSDESK_AUTH_TOKEN_TTL")

	// ── Server ──
	setInt(&cfg.Server.Port, "OPTIONSDESK_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "OPTIONSDESK_SERVER_CORS_ORIGINS")
	setDuration(&cfg.Server.ShutdownTimeout, "OPTIONSDESK_SERVER_SHUTDOWN_TIMEOUT")

	// ── Rate limit ──
	setInt(&cfg.RateLimit.Requests, "OPTIONSDESK_RATE_LIMIT_REQUESTS")
	setDuration(&cfg.RateLimit.Window, "OPTIONSDESK_RATE_LIMIT_WINDOW")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "OPTIONSDESK_ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Cron, "OPTIONSDESK_ARCHIVE_CRON")

	// ── Top-level ──
	setStr(&cfg.Mode, "OPTIONSDESK_MODE")
	setStr(&cfg.LogLevel, "OPTIONSDESK_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
