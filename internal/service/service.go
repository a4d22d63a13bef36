// Package service реализует бизнес-логику POS-клиента: корзину текущего
// контекста и операции над разделяемым списком заказов.
package service

import (
	"context"
	"errors"

	"github.com/mmeshcher/pos-order-system/internal/cart"
	"github.com/mmeshcher/pos-order-system/internal/model"
)

// ErrCancellationDeclined возвращается, когда пользователь не подтвердил отмену.
var ErrCancellationDeclined = errors.New("cancellation declined")

// OrderRepository описывает контракт доступа к разделяемому списку заказов.
type OrderRepository interface {
	Submit(ctx context.Context, lines []model.CartLine, form model.SubmitForm) (*model.Order, error)
	Cancel(ctx context.Context, orderID string) (*model.Order, error)
	SetStatus(ctx context.Context, orderID string, status model.OrderStatus) (*model.Order, error)
	Remove(ctx context.Context, orderID string) error
	Orders() []model.Order
	OwnOrders() []model.Order
}

// Confirmer запрашивает у пользователя подтверждение намерения. Это точка
// приостановки перед необратимой операцией; сама форма диалога — внешняя забота.
type Confirmer interface {
	ConfirmCancel(ctx context.Context, orderID string) bool
}

// ConfirmerFunc адаптирует функцию к интерфейсу Confirmer.
type ConfirmerFunc func(ctx context.Context, orderID string) bool

// ConfirmCancel вызывает функцию-подтверждение.
func (f ConfirmerFunc) ConfirmCancel(ctx context.Context, orderID string) bool {
	return f(ctx, orderID)
}

// AutoConfirm подтверждает любое намерение: используется, когда подтверждение
// уже получено вызывающей стороной (например, кнопкой в интерфейсе).
var AutoConfirm Confirmer = ConfirmerFunc(func(context.Context, string) bool { return true })

// Service содержит бизнес-логику POS-клиента.
type Service struct {
	cart      *cart.Cart
	repo      OrderRepository
	confirmer Confirmer
}

// NewService создаёт сервис с указанными корзиной, репозиторием и подтверждением.
func NewService(c *cart.Cart, repo OrderRepository, confirmer Confirmer) *Service {
	if confirmer == nil {
		confirmer = AutoConfirm
	}
	return &Service{
		cart:      c,
		repo:      repo,
		confirmer: confirmer,
	}
}

// AddToCart добавляет блюдо в корзину.
func (s *Service) AddToCart(name string, price float64) {
	s.cart.AddItem(name, price)
}

// IncrementCartItem увеличивает количество позиции на единицу.
func (s *Service) IncrementCartItem(name string) {
	s.cart.Increment(name)
}

// DecrementCartItem уменьшает количество позиции на единицу.
func (s *Service) DecrementCartItem(name string) {
	s.cart.Decrement(name)
}

// SetCartQuantity устанавливает количество позиции из «сырого» значения формы.
func (s *Service) SetCartQuantity(name string, rawValue string) {
	s.cart.SetQuantity(name, rawValue)
}

// CartLines возвращает позиции корзины.
func (s *Service) CartLines() []model.CartLine {
	return s.cart.Lines()
}

// CartTotal возвращает сумму корзины.
func (s *Service) CartTotal() float64 {
	return s.cart.Total()
}

// SubmitOrder оформляет заказ из текущей корзины. Корзина опустошается
// только после успешного сохранения заказа.
func (s *Service) SubmitOrder(ctx context.Context, form model.SubmitForm) (*model.Order, error) {
	order, err := s.repo.Submit(ctx, s.cart.Lines(), form)
	if err != nil {
		return nil, err
	}

	s.cart.Clear()

	return order, nil
}

// CancelOrder запрашивает подтверждение и отменяет заказ текущего клиента.
func (s *Service) CancelOrder(ctx context.Context, orderID string) (*model.Order, error) {
	if !s.confirmer.ConfirmCancel(ctx, orderID) {
		return nil, ErrCancellationDeclined
	}
	return s.repo.Cancel(ctx, orderID)
}

// OwnOrders возвращает незавершённые заказы текущего клиента, новые сначала.
func (s *Service) OwnOrders() []model.Order {
	return s.repo.OwnOrders()
}

// AllOrders возвращает полный активный снимок для операторского интерфейса.
func (s *Service) AllOrders() []model.Order {
	return s.repo.Orders()
}

// SetOrderStatus меняет статус заказа от имени оператора.
func (s *Service) SetOrderStatus(ctx context.Context, orderID string, status model.OrderStatus) (*model.Order, error) {
	return s.repo.SetStatus(ctx, orderID, status)
}

// ArchiveOrder убирает заказ из активного снимка в архив от имени оператора.
func (s *Service) ArchiveOrder(ctx context.Context, orderID string) error {
	return s.repo.Remove(ctx, orderID)
}
