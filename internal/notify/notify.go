// Package notify решает, о каких переходах статуса сообщать клиенту,
// и доставляет уведомления.
package notify

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/pos-order-system/internal/model"
)

// ShouldNotify сообщает, нужно ли уведомлять клиента о переходе статуса.
// Уведомление положено только переходам в completed или cancelled;
// переход в processing считается шумом и подавляется.
func ShouldNotify(previous, next model.OrderStatus) bool {
	if next == previous {
		return false
	}
	return next == model.OrderStatusCompleted || next == model.OrderStatusCancelled
}

// Notification — готовое к показу уведомление о заказе текущего клиента.
type Notification struct {
	OrderID   string            `json:"orderId"`
	Status    model.OrderStatus `json:"status"`
	Reason    string            `json:"reason,omitempty"`
	Message   string            `json:"message"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Message формирует текст уведомления: про отмену — с причиной,
// про завершение — без неё.
func Message(orderID string, status model.OrderStatus, reason string) string {
	switch status {
	case model.OrderStatusCancelled:
		if reason == "" {
			reason = "no reason given"
		}
		return fmt.Sprintf("order %s has been cancelled: %s", orderID, reason)
	case model.OrderStatusCompleted:
		return fmt.Sprintf("order %s has been completed", orderID)
	default:
		return fmt.Sprintf("order %s status changed to %s", orderID, status)
	}
}

// Notifier доставляет уведомление пользователю текущего контекста.
type Notifier interface {
	Notify(n Notification)
}

// LogNotifier пишет уведомления в журнал.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier создаёт нотификатор, пишущий в указанный журнал.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify записывает уведомление в журнал.
func (n *LogNotifier) Notify(notification Notification) {
	n.logger.Info("order notification",
		zap.String("orderID", notification.OrderID),
		zap.String("status", string(notification.Status)),
		zap.String("message", notification.Message),
	)
}

// Feed хранит ограниченную историю уведомлений для выдачи через HTTP.
// Самые старые записи вытесняются при переполнении.
type Feed struct {
	mu    sync.Mutex
	limit int
	items []Notification
}

// NewFeed создаёт ленту уведомлений с указанной ёмкостью.
func NewFeed(limit int) *Feed {
	if limit <= 0 {
		limit = 50
	}
	return &Feed{limit: limit}
}

// Notify добавляет уведомление в ленту.
func (f *Feed) Notify(n Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.items = append(f.items, n)
	if len(f.items) > f.limit {
		f.items = f.items[len(f.items)-f.limit:]
	}
}

// Recent возвращает уведомления ленты, новые в конце.
func (f *Feed) Recent() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Notification, len(f.items))
	copy(out, f.items)
	return out
}

// Multi рассылает уведомление нескольким нотификаторам.
type Multi []Notifier

// Notify передаёт уведомление каждому нотификатору по порядку.
func (m Multi) Notify(n Notification) {
	for _, target := range m {
		target.Notify(n)
	}
}
