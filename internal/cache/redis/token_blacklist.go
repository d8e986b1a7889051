package redis

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/alanyoungcy/optionsdesk/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
)

// TokenBlacklist implements domain.TokenBlacklist. Each revoked token is a
// key that expires together with the token, so the set never needs pruning.
type TokenBlacklist struct {
	rdb *redis.Client
}

// NewTokenBlacklist creates a TokenBlacklist backed by the given Client.
func NewTokenBlacklist(c *Client) *TokenBlacklist {
	return &TokenBlacklist{rdb: c.Underlying()}
}

// Raw bearer tokens are never written to Redis; the key is a digest.
func blacklistKey(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return "revoked:" + hex.EncodeToString(sum[:])
}

// Revoke blacklists token until expiresAt. Tokens that already expired are
// ignored.
func (b *TokenBlacklist) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := b.rdb.Set(ctx, blacklistKey(token), expiresAt.Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("redis: revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether token is on the blacklist.
func (b *TokenBlacklist) IsRevoked(ctx context.Context, token string) (bool, error) {
	err := b.rdb.Get(ctx, blacklistKey(token)).Err()
	switch {
	case err == redis.Nil:
		return false, nil
	case err != nil:
		return false, fmt.Errorf("redis: check revoked token: %w", err)
	}
	return true, nil
}

var _ domain.TokenBlacklist = (*TokenBlacklist)(nil)
