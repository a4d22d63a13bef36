// Package syncer наблюдает за изменениями внешнего хранилища из других
// контекстов и превращает их в локальные уведомления.
//
// Движок держит базовый снимок заказов, сравнивает его с каждым вновь
// наблюдённым снимком и сообщает только о значимых переходах статуса.
// Повреждённый сигнал из другого контекста никогда не роняет наблюдателя:
// худший исход — пропущенное уведомление.
package syncer

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/mmeshcher/pos-order-system/internal/model"
	"github.com/mmeshcher/pos-order-system/internal/notify"
	"github.com/mmeshcher/pos-order-system/internal/store"
)

// SnapshotSink принимает наблюдённый извне снимок как новое локальное состояние.
type SnapshotSink interface {
	ReplaceSnapshot(orders []model.Order)
}

// Engine подписывается на ленту изменений хранилища и сверяет снимки заказов.
type Engine struct {
	store    store.Store
	clientID string
	sink     SnapshotSink
	notifier notify.Notifier
	logger   *zap.Logger

	mu       sync.Mutex
	baseline map[string]model.Order
}

// New создаёт движок синхронизации для контекста с указанным идентификатором клиента.
func New(st store.Store, clientID string, sink SnapshotSink, notifier notify.Notifier, logger *zap.Logger) *Engine {
	return &Engine{
		store:    st,
		clientID: clientID,
		sink:     sink,
		notifier: notifier,
		logger:   logger,
		baseline: make(map[string]model.Order),
	}
}

// SetBaseline заменяет базовый снимок. Вызывается репозиторием сразу после
// собственной записи, чтобы движок не диффовал её против устаревшего состояния.
func (e *Engine) SetBaseline(orders []model.Order) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.baseline = make(map[string]model.Order, len(orders))
	for _, o := range orders {
		e.baseline[o.ID] = o
	}
}

// Run подписывается на ключи снимка и адресных уведомлений и обрабатывает
// изменения до отмены контекста.
func (e *Engine) Run(ctx context.Context) error {
	changes, err := e.store.Subscribe(ctx, store.KeyOrders, store.KeyLastOrderUpdate)
	if err != nil {
		return err
	}

	for change := range changes {
		e.Handle(change)
	}

	return nil
}

// Handle обрабатывает одно изменение ключа хранилища.
func (e *Engine) Handle(change store.Change) {
	switch change.Key {
	case store.KeyOrders:
		e.handleSnapshot(change.NewValue)
	case store.KeyLastOrderUpdate:
		e.handleChangeEvent(change.NewValue)
	}
}

// handleSnapshot сравнивает базовый снимок с наблюдённым по идентификаторам
// заказов и уведомляет о переходах в completed и cancelled. Переход в
// processing подавляется как малоценный шум; заказы, молча исчезнувшие из
// снимка, считаются обработанными снаружи и тоже не комментируются.
// Базовый снимок заменяется наблюдённым независимо от исхода.
func (e *Engine) handleSnapshot(raw []byte) {
	var orders []model.Order
	if err := json.Unmarshal(raw, &orders); err != nil {
		e.logger.Warn("malformed orders snapshot observed, keeping baseline", zap.Error(err))
		return
	}

	e.mu.Lock()
	previous := e.baseline

	e.baseline = make(map[string]model.Order, len(orders))
	for _, o := range orders {
		e.baseline[o.ID] = o
	}
	e.mu.Unlock()

	for _, o := range orders {
		prev, ok := previous[o.ID]
		if !ok || prev.Status == o.Status {
			continue
		}
		if !notify.ShouldNotify(prev.Status, o.Status) {
			continue
		}

		e.notifier.Notify(notify.Notification{
			OrderID:   o.ID,
			Status:    o.Status,
			Reason:    o.CancelledReason,
			Message:   notify.Message(o.ID, o.Status, o.CancelledReason),
			CreatedAt: o.CreatedAt,
		})
	}

	if e.sink != nil {
		e.sink.ReplaceSnapshot(orders)
	}
}

// handleChangeEvent разбирает адресное уведомление. Событие без владельца
// не транслируется никому; событие чужого владельца отбрасывается; мусор
// в слоте проглатывается молча — повреждённый межконтекстный сигнал не
// должен ронять наблюдателя.
func (e *Engine) handleChangeEvent(raw []byte) {
	var event model.ChangeEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		e.logger.Debug("malformed change event discarded", zap.Error(err))
		return
	}

	if event.OrderID == "" || event.OwnerID == "" {
		return
	}
	if event.OwnerID != e.clientID {
		return
	}

	if event.Status != model.OrderStatusCompleted && event.Status != model.OrderStatusCancelled {
		return
	}

	e.notifier.Notify(notify.Notification{
		OrderID: event.OrderID,
		Status:  event.Status,
		Reason:  event.Reason,
		Message: notify.Message(event.OrderID, event.Status, event.Reason),
	})
}
