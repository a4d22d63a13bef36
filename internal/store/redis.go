package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
)

const (
	redisKeyPrefix     = "pos:"
	redisChangeChannel = "pos:changes"
)

// redisChangeMessage — формат сообщения в канале изменений.
// Origin позволяет подписчику отбросить собственные записи.
type redisChangeMessage struct {
	Origin   string `json:"origin"`
	Key      string `json:"key"`
	OldValue []byte `json:"old,omitempty"`
	NewValue []byte `json:"new"`
}

// RedisStore — реализация хранилища поверх Redis: значения в ключах,
// лента изменений в одном pub/sub-канале.
type RedisStore struct {
	client *redis.Client
	origin string
}

// NewRedis создаёт подключение к Redis по указанному DSN.
func NewRedis(dsn string) (*RedisStore, error) {
	opts, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse redis dsn: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisStore{
		client: client,
		origin: uuid.NewString(),
	}, nil
}

// Get возвращает текущее значение ключа либо ErrKeyNotFound.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, nil
}

// Set перезаписывает значение ключа и публикует уведомление об изменении.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	old, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis get old %s: %w", key, err)
	}

	if err := s.client.Set(ctx, redisKeyPrefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	payload, err := json.Marshal(redisChangeMessage{
		Origin:   s.origin,
		Key:      key,
		OldValue: old,
		NewValue: value,
	})
	if err != nil {
		return fmt.Errorf("marshal change message: %w", err)
	}

	if err := s.client.Publish(ctx, redisChangeChannel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish change: %w", err)
	}

	return nil
}

// Subscribe подписывается на канал изменений и отдаёт уведомления по
// перечисленным ключам, пропуская записи этого же контекста. Оборванная
// подписка восстанавливается с экспоненциальной задержкой.
func (s *RedisStore) Subscribe(ctx context.Context, keys ...string) (<-chan Change, error) {
	wanted := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		wanted[key] = struct{}{}
	}

	out := make(chan Change, 16)

	go func() {
		defer close(out)

		backoff := retry.WithCappedDuration(30*time.Second, retry.NewExponential(500*time.Millisecond))

		_ = retry.Do(ctx, backoff, func(ctx context.Context) error {
			pubsub := s.client.Subscribe(ctx, redisChangeChannel)
			defer pubsub.Close()

			for {
				msg, err := pubsub.ReceiveMessage(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return retry.RetryableError(err)
				}

				var change redisChangeMessage
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					continue
				}
				if change.Origin == s.origin {
					continue
				}
				if _, ok := wanted[change.Key]; !ok {
					continue
				}

				select {
				case out <- Change{Key: change.Key, OldValue: change.OldValue, NewValue: change.NewValue}:
				case <-ctx.Done():
					return nil
				}
			}
		})
	}()

	return out, nil
}

// Close закрывает подключение к Redis.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
