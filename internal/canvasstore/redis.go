package canvasstore

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/redis/go-redis/v9"
	"github.com/vk/actiongraph/internal/ctxlog"
)

const (
	// DefaultPrefix namespaces every key written by a RedisStore.
	DefaultPrefix = "actiongraph:"

	canvasKeyPrefix = "canvas:"
	indexKey        = "canvases"
)

// RedisStore keeps documents as plain string keys and tracks their names
// in a set.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedis wraps an existing client. An empty prefix means DefaultPrefix.
func NewRedis(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// NewRedisFromURL parses a redis:// URL and connects to it.
func NewRedisFromURL(ctx context.Context, redisURL, prefix string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opt.Addr, err)
	}
	return NewRedis(client, prefix), nil
}

func (s *RedisStore) canvasKey(name string) string {
	return s.prefix + canvasKeyPrefix + name
}

func (s *RedisStore) indexKey() string {
	return s.prefix + indexKey
}

// Save stores data under name and records the name in the index.
func (s *RedisStore) Save(ctx context.Context, name string, data []byte) error {
	if err := checkName(name); err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.canvasKey(name), data, 0)
	pipe.SAdd(ctx, s.indexKey(), name)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save canvas to redis: %w", err)
	}
	ctxlog.FromContext(ctx).Debug("Saved canvas.", "name", name, "key", s.canvasKey(name), "bytes", len(data))
	return nil
}

// Load returns the document stored under name.
func (s *RedisStore) Load(ctx context.Context, name string) ([]byte, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	data, err := s.client.Get(ctx, s.canvasKey(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return nil, fmt.Errorf("get canvas from redis: %w", err)
	}
	return data, nil
}

// List returns the indexed names, sorted.
func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	names, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list canvases from redis: %w", err)
	}
	slices.Sort(names)
	return names, nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
