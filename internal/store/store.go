// Package store предоставляет доступ к внешнему разделяемому хранилищу
// «ключ — значение» с лентой уведомлений об изменениях.
//
// Хранилище — единственный арбитр между контекстами клиентов: запись снимка
// заказов всегда перезаписывает значение целиком, побеждает последняя запись.
// Уведомление об изменении ключа доставляется всем подписчикам, кроме
// контекста, выполнившего запись, — так же, как событие хранилища
// не доставляется вкладке-автору.
package store

import (
	"context"
	"errors"
)

// Ключи разделяемого хранилища. Имена согласованы между писателем и читателями.
const (
	KeyOrders          = "orders"
	KeyOrdersArchive   = "orders_archive"
	KeyLastOrderUpdate = "last_order_update"
)

// ErrKeyNotFound возвращается при чтении отсутствующего ключа.
var ErrKeyNotFound = errors.New("key not found")

// Change описывает изменение одного ключа хранилища.
type Change struct {
	Key      string
	OldValue []byte
	NewValue []byte
}

// Store описывает контракт внешнего хранилища, используемый репозиторием
// заказов и движком синхронизации.
type Store interface {
	// Get возвращает текущее значение ключа либо ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set перезаписывает значение ключа целиком и публикует уведомление
	// об изменении для остальных контекстов.
	Set(ctx context.Context, key string, value []byte) error
	// Subscribe возвращает канал уведомлений об изменениях перечисленных
	// ключей. Собственные записи подписчика в канал не попадают.
	// Канал закрывается при отмене контекста.
	Subscribe(ctx context.Context, keys ...string) (<-chan Change, error)
	Close() error
}
