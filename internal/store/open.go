package store

import (
	"fmt"
	"strings"
)

// Open выбирает реализацию хранилища по схеме DSN. Пустой DSN означает
// хранилище в памяти процесса: заказы видны только контекстам этого процесса.
func Open(dsn string) (Store, error) {
	switch {
	case dsn == "":
		return NewHub().Client(), nil
	case strings.HasPrefix(dsn, "redis://") || strings.HasPrefix(dsn, "rediss://"):
		return NewRedis(dsn)
	case strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://"):
		return NewPostgres(dsn)
	default:
		return nil, fmt.Errorf("unsupported store dsn: %s", dsn)
	}
}
