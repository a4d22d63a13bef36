// Package repository реализует разделяемый список заказов поверх внешнего
// хранилища: создание, смену статуса, отмену с архивацией и сохранение снимка.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/pos-order-system/internal/model"
	"github.com/mmeshcher/pos-order-system/internal/store"
	"github.com/mmeshcher/pos-order-system/internal/validation"
)

// ErrOrderNotFound возвращается, если заказ отсутствует в активном снимке.
var (
	ErrOrderNotFound = errors.New("order not found")
	// ErrAlreadyCancelled возвращается при повторной отмене заказа.
	ErrAlreadyCancelled = errors.New("order already cancelled")
	// ErrInvalidTransition возвращается при недопустимой смене статуса.
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// CancelledByCustomer — причина отмены, проставляемая при отмене владельцем.
const CancelledByCustomer = "cancelled by customer"

// Допустимые смены статуса внешним оператором. Заказ, покинувший active,
// может двигаться только вперёд; completed и cancelled — конечные.
var allowedTransitions = map[model.OrderStatus]map[model.OrderStatus]bool{
	model.OrderStatusActive: {
		model.OrderStatusProcessing: true,
		model.OrderStatusCompleted:  true,
		model.OrderStatusCancelled:  true,
	},
	model.OrderStatusProcessing: {
		model.OrderStatusCompleted: true,
		model.OrderStatusCancelled: true,
	},
	model.OrderStatusCompleted: {},
	model.OrderStatusCancelled: {},
}

// SnapshotObserver получает свежий снимок сразу после его записи в хранилище.
// Так движок синхронизации не принимает собственную запись за внешнюю.
type SnapshotObserver interface {
	SetBaseline(orders []model.Order)
}

// Repository хранит локальную копию активного снимка заказов и является
// единственным писателем снимка со стороны этого клиента.
type Repository struct {
	store    store.Store
	clientID string
	logger   *zap.Logger

	now   func() time.Time
	newID func(t time.Time) string

	mu       sync.Mutex
	orders   []model.Order
	observer SnapshotObserver
}

// New создаёт репозиторий заказов для указанного клиента.
func New(st store.Store, clientID string, logger *zap.Logger) *Repository {
	return &Repository{
		store:    st,
		clientID: clientID,
		logger:   logger,
		now:      time.Now,
		newID: func(t time.Time) string {
			return fmt.Sprintf("ORD%d", t.UnixMilli())
		},
	}
}

// SetObserver назначает получателя базового снимка движка синхронизации.
func (r *Repository) SetObserver(o SnapshotObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = o
}

// Load читает активный снимок из хранилища при старте контекста.
func (r *Repository) Load(ctx context.Context) error {
	data, err := r.store.Get(ctx, store.KeyOrders)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return nil
		}
		return fmt.Errorf("load orders snapshot: %w", err)
	}

	var orders []model.Order
	if err := json.Unmarshal(data, &orders); err != nil {
		return fmt.Errorf("unmarshal orders snapshot: %w", err)
	}

	r.mu.Lock()
	r.orders = orders
	if r.observer != nil {
		r.observer.SetBaseline(cloneOrders(orders))
	}
	r.mu.Unlock()

	return nil
}

// Submit проверяет корзину и поля формы, создаёт заказ со статусом active
// и сохраняет обновлённый снимок. Это единственная точка валидации:
// частично заполненные заказы никогда не сохраняются.
func (r *Repository) Submit(ctx context.Context, lines []model.CartLine, form model.SubmitForm) (*model.Order, error) {
	if err := validation.ValidateSubmission(lines, form); err != nil {
		return nil, err
	}

	now := r.now()

	items := make([]model.OrderItem, 0, len(lines))
	var total float64
	for _, line := range lines {
		items = append(items, model.OrderItem{Name: line.Name, Price: line.Price, Qty: line.Qty})
		total += line.Price * float64(line.Qty)
	}

	order := model.Order{
		ID:           r.newID(now),
		Items:        items,
		Total:        total,
		CustomerName: form.CustomerName,
		OrderType:    form.OrderType,
		CreatedAt:    now,
		Status:       model.OrderStatusActive,
		OwnerID:      r.clientID,
	}

	if form.OrderType == model.OrderTypeDelivery {
		order.Address = form.Address
		order.Phone = form.Phone
	} else {
		order.PartySize = form.PartySize
		order.Date = form.Date
		order.Time = form.Time
		order.TableRef = form.TableRef
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.orders = append(r.orders, order)

	if err := r.persistLocked(ctx); err != nil {
		// Запись не удалась: откатываем локальное добавление, чтобы не
		// разойтись с хранилищем.
		r.orders = r.orders[:len(r.orders)-1]
		return nil, err
	}

	r.logger.Info("order submitted",
		zap.String("orderID", order.ID),
		zap.String("orderType", string(order.OrderType)),
		zap.Float64("total", order.Total),
	)

	return &order, nil
}

// Cancel отменяет заказ текущего владельца: проставляет статус, причину и
// время отмены, убирает запись из активного снимка, затем архивирует её по
// дню создания и публикует адресное уведомление. Повторная отмена —
// ErrAlreadyCancelled; чужой или отсутствующий заказ — ErrOrderNotFound.
func (r *Repository) Cancel(ctx context.Context, orderID string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i := range r.orders {
		if r.orders[i].ID == orderID {
			idx = i
			break
		}
	}
	if idx == -1 || r.orders[idx].OwnerID != r.clientID {
		// Заказ мог уже покинуть снимок из-за отмены: повторная отмена —
		// no-op с внятным ответом, а не «не найдено».
		if r.cancelledInArchive(ctx, orderID) {
			return nil, ErrAlreadyCancelled
		}
		return nil, ErrOrderNotFound
	}
	if r.orders[idx].Status == model.OrderStatusCancelled {
		return nil, ErrAlreadyCancelled
	}

	order := r.orders[idx]
	cancelledAt := r.now()
	order.Status = model.OrderStatusCancelled
	order.CancelledReason = CancelledByCustomer
	order.CancelledAt = &cancelledAt

	// Сначала снимок, затем архив и уведомление: пока запись снимка не
	// удалась, заказ обязан остаться активным везде, иначе повторная
	// отмена невозможна.
	previous := r.orders
	remaining := make([]model.Order, 0, len(r.orders)-1)
	remaining = append(remaining, r.orders[:idx]...)
	remaining = append(remaining, r.orders[idx+1:]...)
	r.orders = remaining

	if err := r.persistLocked(ctx); err != nil {
		r.orders = previous
		return nil, err
	}

	if err := r.appendArchive(ctx, order); err != nil {
		return nil, err
	}

	if err := r.publishChangeEvent(ctx, order); err != nil {
		return nil, err
	}

	r.logger.Info("order cancelled", zap.String("orderID", order.ID))

	return &order, nil
}

// SetStatus выполняет смену статуса заказа от имени внешнего оператора.
// Переход в completed или cancelled дополнительно публикует адресное
// уведомление владельцу заказа.
func (r *Repository) SetStatus(ctx context.Context, orderID string, status model.OrderStatus) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i := range r.orders {
		if r.orders[i].ID == orderID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, ErrOrderNotFound
	}

	current := r.orders[idx].Status
	if current == status {
		order := r.orders[idx]
		return &order, nil
	}
	if !allowedTransitions[current][status] {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, status)
	}

	previous := r.orders[idx]

	r.orders[idx].Status = status
	if status == model.OrderStatusCancelled {
		cancelledAt := r.now()
		r.orders[idx].CancelledReason = "cancelled by staff"
		r.orders[idx].CancelledAt = &cancelledAt
	}

	order := r.orders[idx]

	// Уведомление уходит только после успешной записи снимка: другие
	// контексты не должны услышать о переходе, которого в хранилище нет.
	if err := r.persistLocked(ctx); err != nil {
		r.orders[idx] = previous
		return nil, err
	}

	if status == model.OrderStatusCompleted || status == model.OrderStatusCancelled {
		if err := r.publishChangeEvent(ctx, order); err != nil {
			return nil, err
		}
	}

	r.logger.Info("order status updated",
		zap.String("orderID", order.ID),
		zap.String("from", string(current)),
		zap.String("to", string(status)),
	)

	return &order, nil
}

// Remove переносит заказ в архив и убирает его из снимка без адресного
// уведомления: исчезновение заказа из снимка другие контексты не
// комментируют, это задокументированная политика.
func (r *Repository) Remove(ctx context.Context, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i := range r.orders {
		if r.orders[i].ID == orderID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return ErrOrderNotFound
	}

	order := r.orders[idx]

	previous := r.orders
	remaining := make([]model.Order, 0, len(r.orders)-1)
	remaining = append(remaining, r.orders[:idx]...)
	remaining = append(remaining, r.orders[idx+1:]...)
	r.orders = remaining

	if err := r.persistLocked(ctx); err != nil {
		r.orders = previous
		return err
	}

	if err := r.appendArchive(ctx, order); err != nil {
		return err
	}

	r.logger.Info("order archived", zap.String("orderID", order.ID))

	return nil
}

// Orders возвращает копию активного снимка.
func (r *Repository) Orders() []model.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneOrders(r.orders)
}

// OwnOrders возвращает заказы текущего владельца в незавершённых статусах,
// новые сначала.
func (r *Repository) OwnOrders() []model.Order {
	r.mu.Lock()
	defer r.mu.Unlock()

	var visible []model.Order
	for i := len(r.orders) - 1; i >= 0; i-- {
		o := r.orders[i]
		if o.OwnerID != r.clientID {
			continue
		}
		if o.Status != model.OrderStatusActive && o.Status != model.OrderStatusProcessing {
			continue
		}
		visible = append(visible, o)
	}
	return visible
}

// ReplaceSnapshot заменяет локальную копию снимка наблюдённым извне
// состоянием. Последний наблюдённый снимок всегда авторитетен.
func (r *Repository) ReplaceSnapshot(orders []model.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = cloneOrders(orders)
}

// persistLocked записывает полный снимок в хранилище и тем же логическим
// шагом обновляет базовый снимок движка синхронизации. Вызывается только
// под мьютексом.
func (r *Repository) persistLocked(ctx context.Context) error {
	data, err := json.Marshal(r.orders)
	if err != nil {
		return fmt.Errorf("marshal orders snapshot: %w", err)
	}

	if err := r.store.Set(ctx, store.KeyOrders, data); err != nil {
		return fmt.Errorf("persist orders snapshot: %w", err)
	}

	if r.observer != nil {
		r.observer.SetBaseline(cloneOrders(r.orders))
	}

	return nil
}

// cancelledInArchive сообщает, числится ли заказ текущего владельца
// в архиве отменённым.
func (r *Repository) cancelledInArchive(ctx context.Context, orderID string) bool {
	data, err := r.store.Get(ctx, store.KeyOrdersArchive)
	if err != nil {
		return false
	}

	var archive model.Archive
	if err := json.Unmarshal(data, &archive); err != nil {
		return false
	}

	for _, day := range archive {
		for _, o := range day {
			if o.ID == orderID && o.OwnerID == r.clientID && o.Status == model.OrderStatusCancelled {
				return true
			}
		}
	}

	return false
}

func (r *Repository) appendArchive(ctx context.Context, order model.Order) error {
	archive := make(model.Archive)

	data, err := r.store.Get(ctx, store.KeyOrdersArchive)
	if err != nil && !errors.Is(err, store.ErrKeyNotFound) {
		return fmt.Errorf("load archive: %w", err)
	}
	if err == nil {
		if err := json.Unmarshal(data, &archive); err != nil {
			return fmt.Errorf("unmarshal archive: %w", err)
		}
	}

	day := order.ArchiveDay()
	archive[day] = append(archive[day], order)

	out, err := json.Marshal(archive)
	if err != nil {
		return fmt.Errorf("marshal archive: %w", err)
	}

	if err := r.store.Set(ctx, store.KeyOrdersArchive, out); err != nil {
		return fmt.Errorf("persist archive: %w", err)
	}

	return nil
}

func (r *Repository) publishChangeEvent(ctx context.Context, order model.Order) error {
	event := model.ChangeEvent{
		OrderID:   order.ID,
		Status:    order.Status,
		Reason:    order.CancelledReason,
		OwnerID:   order.OwnerID,
		Timestamp: r.now().UnixMilli(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}

	if err := r.store.Set(ctx, store.KeyLastOrderUpdate, data); err != nil {
		return fmt.Errorf("publish change event: %w", err)
	}

	return nil
}

func cloneOrders(orders []model.Order) []model.Order {
	out := make([]model.Order, len(orders))
	copy(out, orders)
	return out
}
