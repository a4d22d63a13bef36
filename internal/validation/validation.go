// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"strings"

	"github.com/mmeshcher/pos-order-system/internal/model"
)

// Ошибки валидации формы оформления заказа. Заказ с такой ошибкой
// не создаётся и не сохраняется.
var (
	ErrEmptyCart              = errors.New("cart is empty")
	ErrMissingName            = errors.New("customer name is required")
	ErrMissingDeliveryInfo    = errors.New("address and phone are required for delivery")
	ErrMissingReservationInfo = errors.New("party size, date, time and table are required for dine in")
)

// ValidateSubmission проверяет корзину и поля формы перед созданием заказа.
// Это единственные предусловия оформления: частично заполненные заказы
// никогда не сохраняются.
func ValidateSubmission(lines []model.CartLine, form model.SubmitForm) error {
	if len(lines) == 0 {
		return ErrEmptyCart
	}

	if strings.TrimSpace(form.CustomerName) == "" {
		return ErrMissingName
	}

	if form.OrderType == model.OrderTypeDelivery {
		if strings.TrimSpace(form.Address) == "" || strings.TrimSpace(form.Phone) == "" {
			return ErrMissingDeliveryInfo
		}
		return nil
	}

	if form.PartySize <= 0 ||
		strings.TrimSpace(form.Date) == "" ||
		strings.TrimSpace(form.Time) == "" ||
		strings.TrimSpace(form.TableRef) == "" {
		return ErrMissingReservationInfo
	}

	return nil
}

// IsValidationError сообщает, является ли ошибка ошибкой валидации формы.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrEmptyCart) ||
		errors.Is(err, ErrMissingName) ||
		errors.Is(err, ErrMissingDeliveryInfo) ||
		errors.Is(err, ErrMissingReservationInfo)
}
