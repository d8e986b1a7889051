// Package local provides single-process implementations of the cache
// interfaces. They back the server when Redis is disabled and keep the
// tests hermetic.
package local

import (
	"context"
	"sync"
	"time"

	"github.com/alanyoungcy/optionsdesk/internal/domain"
)

// RateLimiter is a per-key sliding window held in memory.
type RateLimiter struct {
	mu   sync.Mutex
	hits map[string][]time.Time
	now  func() time.Time
}

// NewRateLimiter returns an empty RateLimiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{hits: make(map[string][]time.Time), now: time.Now}
}

// Allow reports whether one more request for key fits in the window.
func (l *RateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-window)
	kept := l.hits[key][:0]
	for _, t := range l.hits[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= limit {
		l.hits[key] = kept
		return false, nil
	}
	l.hits[key] = append(kept, now)
	return true, nil
}

// LockManager hands out exclusive in-process locks with a TTL.
type LockManager struct {
	mu    sync.Mutex
	held  map[string]lease
	now   func() time.Time
	token uint64
}

type lease struct {
	token   uint64
	expires time.Time
}

// NewLockManager returns an empty LockManager.
func NewLockManager() *LockManager {
	return &LockManager{held: make(map[string]lease), now: time.Now}
}

// Acquire takes key until ttl elapses or the release func runs.
func (m *LockManager) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if l, ok := m.held[key]; ok && now.Before(l.expires) {
		return nil, domain.ErrLockHeld
	}
	m.token++
	tok := m.token
	m.held[key] = lease{token: tok, expires: now.Add(ttl)}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if l, ok := m.held[key]; ok && l.token == tok {
				delete(m.held, key)
			}
		})
	}, nil
}

// TokenBlacklist remembers revoked tokens until they expire.
type TokenBlacklist struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
	now     func() time.Time
}

// NewTokenBlacklist returns an empty TokenBlacklist.
func NewTokenBlacklist() *TokenBlacklist {
	return &TokenBlacklist{revoked: make(map[string]time.Time), now: time.Now}
}

// Revoke blacklists token until expiresAt.
func (b *TokenBlacklist) Revoke(_ context.Context, token string, expiresAt time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	for tok, exp := range b.revoked {
		if !exp.After(now) {
			delete(b.revoked, tok)
		}
	}
	if expiresAt.After(now) {
		b.revoked[token] = expiresAt
	}
	return nil
}

// IsRevoked reports whether token is blacklisted and not yet expired.
func (b *TokenBlacklist) IsRevoked(_ context.Context, token string) (bool, error) {
	b.mu.RLock()
	exp, ok := b.revoked[token]
	b.mu.RUnlock()
	return ok && exp.After(b.now()), nil
}

// EventBus fans published payloads out to in-process subscribers. Slow
// subscribers drop messages rather than block publishers.
type EventBus struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

// NewEventBus returns an EventBus with no subscribers.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[string]map[chan []byte]struct{})}
}

// Publish delivers payload to every current subscriber of channel.
func (b *EventBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[channel] {
		msg := append([]byte(nil), payload...)
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribe registers for channel until ctx is done.
func (b *EventBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 128)
	b.mu.Lock()
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[chan []byte]struct{})
	}
	b.subs[channel][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs[channel], ch)
		if len(b.subs[channel]) == 0 {
			delete(b.subs, channel)
		}
		b.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

var (
	_ domain.RateLimiter    = (*RateLimiter)(nil)
	_ domain.LockManager    = (*LockManager)(nil)
	_ domain.TokenBlacklist = (*TokenBlacklist)(nil)
	_ domain.EventBus       = (*EventBus)(nil)
)
