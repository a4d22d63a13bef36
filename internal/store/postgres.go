package store

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const pgChangeChannel = "pos_changes"

// pgChangeMessage — полезная нагрузка pg_notify. Payload ограничен по размеру,
// поэтому значение ключа в него не входит и перечитывается подписчиком.
type pgChangeMessage struct {
	Origin string `json:"origin"`
	Key    string `json:"key"`
}

// PostgresStore — реализация хранилища поверх PostgreSQL: значения в таблице
// pos_kv, лента изменений через LISTEN/NOTIFY.
type PostgresStore struct {
	pool   *pgxpool.Pool
	dsn    string
	origin string
}

// NewPostgres создаёт хранилище и инициализирует схему БД через миграции.
func NewPostgres(dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStore{
		pool:   pool,
		dsn:    dsn,
		origin: uuid.NewString(),
	}

	if err := s.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *PostgresStore) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (s *PostgresStore) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Get возвращает текущее значение ключа либо ErrKeyNotFound.
func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte

	err := s.withRetry(ctx, func() error {
		row := s.pool.QueryRow(ctx, `SELECT value FROM pos_kv WHERE key = $1`, key)
		return row.Scan(&value)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("get key %s: %w", key, err)
	}

	return value, nil
}

// Set перезаписывает значение ключа и рассылает уведомление об изменении
// в одной транзакции с записью.
func (s *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	payload, err := json.Marshal(pgChangeMessage{Origin: s.origin, Key: key})
	if err != nil {
		return fmt.Errorf("marshal change message: %w", err)
	}

	return s.withRetry(ctx, func() error {
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		_, err = tx.Exec(ctx,
			`INSERT INTO pos_kv (key, value, updated_at) VALUES ($1, $2, now())
			 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
			key, value,
		)
		if err != nil {
			return fmt.Errorf("upsert key %s: %w", key, err)
		}

		_, err = tx.Exec(ctx, `SELECT pg_notify($1, $2)`, pgChangeChannel, string(payload))
		if err != nil {
			return fmt.Errorf("notify change: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		return nil
	})
}

// Subscribe слушает канал изменений на выделенном соединении. Старое значение
// ключа восстанавливается из последнего значения, виденного этим подписчиком.
// Оборванное соединение восстанавливается с экспоненциальной задержкой.
func (s *PostgresStore) Subscribe(ctx context.Context, keys ...string) (<-chan Change, error) {
	wanted := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		wanted[key] = struct{}{}
	}

	out := make(chan Change, 16)
	lastSeen := make(map[string][]byte)

	go func() {
		defer close(out)

		backoff := retry.WithCappedDuration(30*time.Second, retry.NewExponential(500*time.Millisecond))

		_ = retry.Do(ctx, backoff, func(ctx context.Context) error {
			conn, err := pgx.Connect(ctx, s.dsn)
			if err != nil {
				return retry.RetryableError(err)
			}
			defer conn.Close(context.Background())

			if _, err := conn.Exec(ctx, `LISTEN `+pgChangeChannel); err != nil {
				return retry.RetryableError(err)
			}

			for {
				notification, err := conn.WaitForNotification(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return retry.RetryableError(err)
				}

				var msg pgChangeMessage
				if err := json.Unmarshal([]byte(notification.Payload), &msg); err != nil {
					continue
				}
				if msg.Origin == s.origin {
					continue
				}
				if _, ok := wanted[msg.Key]; !ok {
					continue
				}

				newValue, err := s.Get(ctx, msg.Key)
				if err != nil && !errors.Is(err, ErrKeyNotFound) {
					continue
				}

				change := Change{Key: msg.Key, OldValue: lastSeen[msg.Key], NewValue: newValue}
				lastSeen[msg.Key] = newValue

				select {
				case out <- change:
				case <-ctx.Done():
					return nil
				}
			}
		})
	}()

	return out, nil
}

// Close закрывает пул соединений с БД.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
