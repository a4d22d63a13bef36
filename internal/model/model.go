// Package model содержит доменные сущности POS-клиента заказов.
package model

import "time"

// OrderStatus описывает статус жизненного цикла заказа.
type OrderStatus string

const (
	OrderStatusActive     OrderStatus = "active"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OrderType описывает способ получения заказа.
type OrderType string

const (
	OrderTypeDineIn   OrderType = "dine_in"
	OrderTypeDelivery OrderType = "delivery"
)

// CartLine описывает одну позицию корзины.
// Количество в корзине всегда положительно: позиция с количеством
// ноль или меньше удаляется целиком.
type CartLine struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Qty   int     `json:"qty"`
}

// OrderItem описывает позицию заказа, зафиксированную из корзины в момент оформления.
type OrderItem struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Qty   int     `json:"qty"`
}

// Order описывает заказ клиента.
// OwnerID — идентификатор клиента, оформившего заказ; после создания не меняется.
type Order struct {
	ID              string      `json:"id"`
	Items           []OrderItem `json:"items"`
	Total           float64     `json:"total"`
	CustomerName    string      `json:"name"`
	PartySize       int         `json:"people,omitempty"`
	Date            string      `json:"date,omitempty"`
	Time            string      `json:"time,omitempty"`
	TableRef        string      `json:"table,omitempty"`
	OrderType       OrderType   `json:"orderType"`
	Address         string      `json:"address,omitempty"`
	Phone           string      `json:"phone,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	Status          OrderStatus `json:"status"`
	OwnerID         string      `json:"ownerId"`
	CancelledReason string      `json:"cancelledReason,omitempty"`
	CancelledAt     *time.Time  `json:"cancelledAt,omitempty"`
}

// ArchiveDay возвращает ключ архива для заказа: дата создания с точностью до дня.
func (o *Order) ArchiveDay() string {
	return o.CreatedAt.UTC().Format("2006-01-02")
}

// Archive — завершённые заказы, сгруппированные по дню создания.
// Записи только добавляются; каждый заказ попадает в архив ровно один раз.
type Archive map[string][]Order

// ChangeEvent — адресное уведомление об изменении статуса заказа.
// Хранится в одном слоте по принципу «последнее значение побеждает»
// и используется только как сигнал, независимо от снимка заказов.
type ChangeEvent struct {
	OrderID   string      `json:"id"`
	Status    OrderStatus `json:"status"`
	Reason    string      `json:"reason,omitempty"`
	OwnerID   string      `json:"ownerId"`
	Timestamp int64       `json:"ts"`
}

// SubmitForm содержит поля формы оформления заказа.
type SubmitForm struct {
	CustomerName string
	OrderType    OrderType
	PartySize    int
	Date         string
	Time         string
	TableRef     string
	Address      string
	Phone        string
}
