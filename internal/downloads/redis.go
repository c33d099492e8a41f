package downloads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/phillip-england/transitops/internal/backend"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "transitops:download:"

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects and pings. The caller closes the client.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// RedisStore shares handles between console instances. Expiry is Redis's.
type RedisStore struct {
	client   redis.Cmdable
	ttl      time.Duration
	newToken func() string
}

func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl, newToken: uuid.NewString}
}

// Close releases the Redis connection pool when the store owns one.
func (s *RedisStore) Close() error {
	if c, ok := s.client.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

type storedDocument struct {
	ContentType string `json:"content_type"`
	Filename    string `json:"filename"`
	Data        []byte `json:"data"`
}

func (s *RedisStore) Put(ctx context.Context, doc backend.Document) (string, error) {
	encoded, err := encodeDocument(doc)
	if err != nil {
		return "", err
	}
	token := s.newToken()
	if err := s.client.Set(ctx, keyPrefix+token, encoded, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store download: %w", err)
	}
	return token, nil
}

func (s *RedisStore) Get(ctx context.Context, token string) (backend.Document, error) {
	raw, err := s.client.Get(ctx, keyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return backend.Document{}, ErrNotFound
	}
	if err != nil {
		return backend.Document{}, fmt.Errorf("load download: %w", err)
	}

	var stored storedDocument
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return backend.Document{}, fmt.Errorf("decode download: %w", err)
	}
	return backend.Document{Data: stored.Data, ContentType: stored.ContentType, Filename: stored.Filename}, nil
}

func encodeDocument(doc backend.Document) (string, error) {
	encoded, err := json.Marshal(storedDocument{
		ContentType: doc.ContentType,
		Filename:    doc.Filename,
		Data:        doc.Data,
	})
	if err != nil {
		return "", fmt.Errorf("encode download: %w", err)
	}
	return string(encoded), nil
}
