// Package property reads global configuration properties, such as the concept
// UUIDs that stand for coded severities.
package property

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/ehr/fhirbridge/internal/platform/db"
)

// Store returns the values of the requested keys. Keys without a value are
// absent from the result.
type Store interface {
	GetGlobalProperties(ctx context.Context, keys ...string) (map[string]string, error)
}

// Map is a fixed in-memory Store.
type Map map[string]string

func (m Map) GetGlobalProperties(_ context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := m[k]; ok && v != "" {
			out[k] = v
		}
	}
	return out, nil
}

// PGStore reads the global_property table.
type PGStore struct{ pool *pgxpool.Pool }

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) GetGlobalProperties(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	rows, err := db.Conn(ctx, s.pool).Query(ctx,
		`SELECT property, property_value FROM global_property WHERE property = ANY($1)`, keys)
	if err != nil {
		return nil, fmt.Errorf("query global properties: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		var v *string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan global property: %w", err)
		}
		if v != nil && *v != "" {
			out[k] = *v
		}
	}
	return out, rows.Err()
}

// Ping checks the database behind the store.
func (s *PGStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// RedisKeyPrefix namespaces global properties in Redis.
const RedisKeyPrefix = "globalproperty:"

type redisClient interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// RedisStore reads properties stored as plain string keys under
// RedisKeyPrefix, fetching all requested keys with one MGET.
type RedisStore struct{ client redisClient }

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) GetGlobalProperties(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = RedisKeyPrefix + k
	}
	vals, err := s.client.MGet(ctx, prefixed...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget global properties: %w", err)
	}
	for i, v := range vals {
		if i >= len(keys) {
			break
		}
		if str, ok := v.(string); ok && str != "" {
			out[keys[i]] = str
		}
	}
	return out, nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}
