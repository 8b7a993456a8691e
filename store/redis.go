package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	honeypot "github.com/decoynet/honeypot-agent-go"
)

// RedisSessionStore implements honeypot.SessionStore on Redis.
// Sessions are stored as JSON under "{prefix}:conversation:{id}" with a
// TTL refreshed on every write (SET with expiration is atomic, so readers
// never observe a partial session).
type RedisSessionStore struct {
	client redis.UniversalClient
	prefix string
}

// RedisConfig configures the Redis session store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // key prefix, default "honeypot"
	// DialTimeout bounds the connection attempt so an outage degrades to
	// the fallback tier instead of blocking the conversation lock.
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewRedisSessionStore creates a store with its own client.
func NewRedisSessionStore(cfg RedisConfig) *RedisSessionStore {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 2 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 2 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxRetries:   0, // fallback activation, not retries, handles outages
	})
	return NewRedisSessionStoreWithClient(client, cfg.Prefix)
}

// NewRedisSessionStoreWithClient wraps an existing client (also accepts
// ClusterClient and Ring).
func NewRedisSessionStoreWithClient(client redis.UniversalClient, prefix string) *RedisSessionStore {
	if prefix == "" {
		prefix = "honeypot"
	}
	return &RedisSessionStore{client: client, prefix: prefix}
}

func (s *RedisSessionStore) key(id string) string {
	return fmt.Sprintf("%s:conversation:%s", s.prefix, id)
}

// Get loads a session. Missing keys map to honeypot.ErrSessionNotFound;
// any other failure means the backend is unreachable or corrupt.
func (s *RedisSessionStore) Get(ctx context.Context, id string) (*honeypot.ConversationSession, error) {
	data, err := s.client.Get(ctx, s.key(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, honeypot.ErrSessionNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var sess honeypot.ConversationSession
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("redis get: decode session %q: %w", id, err)
	}
	return &sess, nil
}

// Put writes the session and resets its TTL in one atomic SET.
func (s *RedisSessionStore) Put(ctx context.Context, id string, session *honeypot.ConversationSession, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = honeypot.DefaultSessionTTL
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("redis put: encode session %q: %w", id, err)
	}
	if err := s.client.Set(ctx, s.key(id), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis put: %w", err)
	}
	return nil
}

// Ping reports backend reachability, for health checks.
func (s *RedisSessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (s *RedisSessionStore) Close() error {
	return s.client.Close()
}

var _ honeypot.SessionStore = (*RedisSessionStore)(nil)
