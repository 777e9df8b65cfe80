package bloom

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v9"
	"github.com/google/uuid"
)

// Options configures a RedisStore.
type Options struct {
	// KeyPrefix is prepended to every key the store reads or writes.
	KeyPrefix string
	// Expiration is applied on every Save. Zero means the key never expires.
	Expiration time.Duration
}

// Option sets one field of Options.
type Option func(*Options)

// WithKeyPrefix namespaces every key the store touches under prefix.
func WithKeyPrefix(prefix string) Option {
	return func(o *Options) {
		o.KeyPrefix = prefix
	}
}

// WithExpiration sets the TTL applied to images on Save.
func WithExpiration(expiration time.Duration) Option {
	return func(o *Options) {
		o.Expiration = expiration
	}
}

// RedisStore keeps filter images in Redis string values. The stored value
// is byte-for-byte the WriteTo image, so a value fetched with GET can be
// written straight to a file and opened with LoadFromFile.
type RedisStore struct {
	redisClient redis.UniversalClient
	opts        Options
}

// NewRedisStore returns a store over redisClient. The caller owns the client.
func NewRedisStore(redisClient redis.UniversalClient, opts ...Option) *RedisStore {
	s := &RedisStore{redisClient: redisClient}
	for _, opt := range opts {
		opt(&s.opts)
	}
	return s
}

func (s *RedisStore) key(name string) string {
	return s.opts.KeyPrefix + name
}

// Save stores the image of f under name, replacing any previous value.
func (s *RedisStore) Save(ctx context.Context, name string, f *Filter) error {
	data, err := f.MarshalBinary()
	if err != nil {
		return err
	}
	if err := s.redisClient.Set(ctx, s.key(name), data, s.opts.Expiration).Err(); err != nil {
		return fmt.Errorf("bloom: redis save %s: %w", s.key(name), err)
	}
	return nil
}

// SaveNew stores f under a fresh random name and returns that name.
func (s *RedisStore) SaveNew(ctx context.Context, f *Filter) (string, error) {
	name := uuid.New().String()
	if err := s.Save(ctx, name, f); err != nil {
		return "", err
	}
	return name, nil
}

// Load fetches and decodes the filter stored under name. A missing key
// returns ErrNotFound.
func (s *RedisStore) Load(ctx context.Context, name string) (*Filter, error) {
	data, err := s.redisClient.Get(ctx, s.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, s.key(name))
	}
	if err != nil {
		return nil, fmt.Errorf("bloom: redis load %s: %w", s.key(name), err)
	}
	f, err := Read(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("bloom: redis load %s: %w", s.key(name), err)
	}
	return f, nil
}

// Delete removes the image stored under name. A missing key is not an error.
func (s *RedisStore) Delete(ctx context.Context, name string) error {
	return s.redisClient.Del(ctx, s.key(name)).Err()
}
