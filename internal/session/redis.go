package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/gomodule/redigo/redis"
	"github.com/rs/zerolog/log"
	"github.com/thebtf/inkingi-ussd/pkg/models"
)

// KeyPrefix namespaces session keys in Redis.
const KeyPrefix = "inkingi:session:"

// RedisStore keeps sessions in Redis with the TTL refreshed on every merge.
// Errors are logged; reads degrade to empty sessions and writes are dropped.
type RedisStore struct {
	pool *redis.Pool
	now  func() time.Time
	ttl  time.Duration
}

// NewRedisStore connects a pool to rawURL (redis://[:password@]host:port/db).
func NewRedisStore(rawURL string, ttl time.Duration) (*RedisStore, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	pool := &redis.Pool{
		MaxIdle:     8,
		IdleTimeout: 4 * time.Minute,
		Dial: func() (redis.Conn, error) {
			return redis.DialURL(rawURL,
				redis.DialConnectTimeout(2*time.Second),
				redis.DialReadTimeout(2*time.Second),
				redis.DialWriteTimeout(2*time.Second),
			)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}

	conn := pool.Get()
	defer conn.Close()
	if _, err := conn.Do("PING"); err != nil {
		_ = pool.Close()
		return nil, err
	}

	return &RedisStore{pool: pool, now: time.Now, ttl: ttl}, nil
}

// Close releases the pool.
func (r *RedisStore) Close() error {
	return r.pool.Close()
}

func key(id string) string {
	return KeyPrefix + id
}

// load reads the session for id. A missing or undecodable value yields an
// empty session; only a failed read is returned as an error.
func (r *RedisStore) load(ctx context.Context, conn redis.Conn, id string) (models.Session, error) {
	data, err := redis.Bytes(redis.DoContext(conn, ctx, "GET", key(id)))
	if err != nil {
		if errors.Is(err, redis.ErrNil) {
			return models.Session{ID: id}, nil
		}
		return models.Session{ID: id}, fmt.Errorf("get session: %w", err)
	}
	s, err := decode(data)
	if err != nil {
		log.Warn().Err(err).Str("sessionId", id).Msg("Discarding undecodable session")
		return models.Session{ID: id}, nil
	}
	s.ID = id
	return s, nil
}

// Get returns the stored session or an empty one.
func (r *RedisStore) Get(ctx context.Context, id string) models.Session {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to get redis connection")
		return models.Session{ID: id}
	}
	defer conn.Close()
	s, err := r.load(ctx, conn, id)
	if err != nil {
		log.Warn().Err(err).Str("sessionId", id).Msg("Failed to read session from redis")
	}
	return s
}

// Merge reads, patches and writes back the session with a fresh TTL.
func (r *RedisStore) Merge(ctx context.Context, id string, patch models.Patch) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to get redis connection")
		return
	}
	defer conn.Close()

	s, err := r.load(ctx, conn, id)
	if err != nil {
		// Writing now would replace the stored session with a blank one.
		log.Warn().Err(err).Str("sessionId", id).Msg("Skipping session write after failed read")
		return
	}
	patch.Apply(&s, r.now())

	data, err := encode(s)
	if err != nil {
		log.Error().Err(err).Str("sessionId", id).Msg("Failed to encode session")
		return
	}
	seconds := int(r.ttl / time.Second)
	if _, err := redis.DoContext(conn, ctx, "SET", key(id), data, "EX", seconds); err != nil {
		log.Warn().Err(err).Str("sessionId", id).Msg("Failed to write session to redis")
	}
}

// SetLocale stores the session locale.
func (r *RedisStore) SetLocale(ctx context.Context, id, locale string) {
	r.Merge(ctx, id, models.Patch{Locale: &locale})
}

// Delete removes the session key.
func (r *RedisStore) Delete(ctx context.Context, id string) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to get redis connection")
		return
	}
	defer conn.Close()
	if _, err := redis.DoContext(conn, ctx, "DEL", key(id)); err != nil {
		log.Warn().Err(err).Str("sessionId", id).Msg("Failed to delete session from redis")
	}
}

// SweepExpired is a no-op: Redis expires keys itself.
func (r *RedisStore) SweepExpired(time.Time) int {
	return 0
}

func encode(s models.Session) ([]byte, error) {
	return json.Marshal(s)
}

func decode(data []byte) (models.Session, error) {
	var s models.Session
	err := json.Unmarshal(data, &s)
	return s, err
}
