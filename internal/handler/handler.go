// Package handler содержит HTTP-обработчики API POS-клиента.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/pos-order-system/internal/model"
	"github.com/mmeshcher/pos-order-system/internal/notify"
	"github.com/mmeshcher/pos-order-system/internal/repository"
	"github.com/mmeshcher/pos-order-system/internal/service"
	"github.com/mmeshcher/pos-order-system/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	AddToCart(name string, price float64)
	IncrementCartItem(name string)
	DecrementCartItem(name string)
	SetCartQuantity(name string, rawValue string)
	CartLines() []model.CartLine
	CartTotal() float64
	SubmitOrder(ctx context.Context, form model.SubmitForm) (*model.Order, error)
	CancelOrder(ctx context.Context, orderID string) (*model.Order, error)
	OwnOrders() []model.Order
	AllOrders() []model.Order
	SetOrderStatus(ctx context.Context, orderID string, status model.OrderStatus) (*model.Order, error)
	ArchiveOrder(ctx context.Context, orderID string) error
}

// Handler реализует HTTP-обработчики API POS-клиента.
type Handler struct {
	service Service
	feed    *notify.Feed
	logger  *zap.Logger
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, feed *notify.Feed, logger *zap.Logger) *Handler {
	return &Handler{
		service: s,
		feed:    feed,
		logger:  logger,
	}
}

type addItemRequest struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type cartResponse struct {
	Items []model.CartLine `json:"items"`
	Total float64          `json:"total"`
}

// GetCart возвращает текущее содержимое корзины с вычисленной суммой.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	resp := cartResponse{
		Items: h.service.CartLines(),
		Total: h.service.CartTotal(),
	}
	if resp.Items == nil {
		resp.Items = []model.CartLine{}
	}

	writeJSON(w, http.StatusOK, resp)
}

// AddCartItem добавляет блюдо в корзину.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Name == "" || req.Price < 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	h.service.AddToCart(req.Name, req.Price)
	w.WriteHeader(http.StatusOK)
}

// IncrementCartItem увеличивает количество позиции на единицу.
func (h *Handler) IncrementCartItem(w http.ResponseWriter, r *http.Request) {
	h.service.IncrementCartItem(chi.URLParam(r, "name"))
	w.WriteHeader(http.StatusOK)
}

// DecrementCartItem уменьшает количество позиции на единицу.
func (h *Handler) DecrementCartItem(w http.ResponseWriter, r *http.Request) {
	h.service.DecrementCartItem(chi.URLParam(r, "name"))
	w.WriteHeader(http.StatusOK)
}

type quantityRequest struct {
	Quantity string `json:"quantity"`
}

// SetCartQuantity устанавливает количество позиции из «сырого» значения формы.
// Некорректное значение удаляет позицию, это не ошибка запроса.
func (h *Handler) SetCartQuantity(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	h.service.SetCartQuantity(chi.URLParam(r, "name"), req.Quantity)
	w.WriteHeader(http.StatusOK)
}

type submitRequest struct {
	Name      string `json:"name"`
	OrderType string `json:"orderType"`
	People    int    `json:"people"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Table     string `json:"table"`
	Address   string `json:"address"`
	Phone     string `json:"phone"`
}

// SubmitOrder оформляет заказ из текущей корзины.
func (h *Handler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	orderType := model.OrderType(req.OrderType)
	if orderType != model.OrderTypeDineIn && orderType != model.OrderTypeDelivery {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	form := model.SubmitForm{
		CustomerName: req.Name,
		OrderType:    orderType,
		PartySize:    req.People,
		Date:         req.Date,
		Time:         req.Time,
		TableRef:     req.Table,
		Address:      req.Address,
		Phone:        req.Phone,
	}

	order, err := h.service.SubmitOrder(r.Context(), form)
	if err != nil {
		if validation.IsValidationError(err) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		h.logger.Error("submit order error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

// GetOrders возвращает незавершённые заказы текущего клиента.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	orders := h.service.OwnOrders()
	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, orders)
}

// CancelOrder отменяет заказ текущего клиента.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	order, err := h.service.CancelOrder(r.Context(), orderID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOrderNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, repository.ErrAlreadyCancelled):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		case errors.Is(err, service.ErrCancellationDeclined):
			http.Error(w, http.StatusText(http.StatusPreconditionFailed), http.StatusPreconditionFailed)
		default:
			h.logger.Error("cancel order error", zap.Error(err), zap.String("orderID", orderID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// GetNotifications возвращает последние уведомления текущего клиента.
func (h *Handler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	notifications := h.feed.Recent()
	if len(notifications) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, notifications)
}

// AdminGetOrders возвращает полный активный снимок заказов.
func (h *Handler) AdminGetOrders(w http.ResponseWriter, r *http.Request) {
	orders := h.service.AllOrders()
	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, orders)
}

type statusRequest struct {
	Status string `json:"status"`
}

// AdminSetStatus меняет статус заказа от имени оператора.
func (h *Handler) AdminSetStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	status := model.OrderStatus(req.Status)
	switch status {
	case model.OrderStatusProcessing, model.OrderStatusCompleted, model.OrderStatusCancelled:
	default:
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	order, err := h.service.SetOrderStatus(r.Context(), orderID, status)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOrderNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, repository.ErrInvalidTransition):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			h.logger.Error("set status error", zap.Error(err), zap.String("orderID", orderID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// AdminArchiveOrder убирает заказ из активного снимка в архив.
func (h *Handler) AdminArchiveOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	if err := h.service.ArchiveOrder(r.Context(), orderID); err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("archive order error", zap.Error(err), zap.String("orderID", orderID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
