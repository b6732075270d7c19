package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/M365x55907051/juice-shop/internal/cache"
	"github.com/M365x55907051/juice-shop/internal/models"
)

// ErrSessionNotFound is returned when a token is not in the registry
var ErrSessionNotFound = errors.New("session not found")

// Session is the caller identity resolved for a request. User is nil for
// anonymous callers.
type Session struct {
	User       *models.User
	Token      string
	RemoteAddr string
}

// Authenticated reports whether the session belongs to a user
func (s *Session) Authenticated() bool {
	return s != nil && s.User != nil
}

// SessionStore is the registry of issued, unexpired tokens
type SessionStore interface {
	Put(ctx context.Context, token, userID string, ttl time.Duration) error
	Lookup(ctx context.Context, token string) (string, error)
	Revoke(ctx context.Context, token string) error
}

type memoryEntry struct {
	userID    string
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory session registry
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]memoryEntry),
		now:      time.Now,
	}
}

// Put registers a token until ttl elapses
func (m *MemoryStore) Put(_ context.Context, token, userID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, e := range m.sessions {
		if !now.Before(e.expiresAt) {
			delete(m.sessions, k)
		}
	}
	m.sessions[token] = memoryEntry{userID: userID, expiresAt: now.Add(ttl)}
	return nil
}

// Lookup returns the user bound to a live token
func (m *MemoryStore) Lookup(_ context.Context, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[token]
	if !ok {
		return "", ErrSessionNotFound
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.sessions, token)
		return "", ErrSessionNotFound
	}
	return e.userID, nil
}

// Revoke forgets a token
func (m *MemoryStore) Revoke(_ context.Context, token string) error {
	m.mu.Lock()
	delete(m.sessions, token)
	m.mu.Unlock()
	return nil
}

// RedisStore keeps sessions in Redis so they survive restarts and are shared
// between replicas
type RedisStore struct {
	redis *cache.RedisClient
}

// NewRedisStore creates a Redis-backed session registry
func NewRedisStore(client *cache.RedisClient) *RedisStore {
	return &RedisStore{redis: client}
}

func sessionKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "session:" + hex.EncodeToString(sum[:])
}

// Put registers a token with a Redis expiry
func (r *RedisStore) Put(ctx context.Context, token, userID string, ttl time.Duration) error {
	return r.redis.SetEx(ctx, sessionKey(token), userID, ttl)
}

// Lookup returns the user bound to a live token
func (r *RedisStore) Lookup(ctx context.Context, token string) (string, error) {
	userID, err := r.redis.Get(ctx, sessionKey(token))
	if errors.Is(err, cache.ErrCacheMiss) {
		return "", ErrSessionNotFound
	}
	return userID, err
}

// Revoke deletes a token
func (r *RedisStore) Revoke(ctx context.Context, token string) error {
	return r.redis.Del(ctx, sessionKey(token))
}

var (
	_ SessionStore = (*MemoryStore)(nil)
	_ SessionStore = (*RedisStore)(nil)
)
