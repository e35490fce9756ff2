package models

import "time"

// OrderStatus — статус заказа. Меняется только сервером,
// клиенты лишь запрашивают переходы.
type OrderStatus string

const (
	OrderStatusPlaced    OrderStatus = "placed"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// allowedTransitions описывает машину состояний заказа:
// placed -> confirmed -> delivered -> completed,
// cancelled достижим из placed и confirmed.
var allowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPlaced:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered: {OrderStatusCompleted},
}

// CanTransition сообщает, разрешен ли переход из статуса from в to.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Order представляет заказ, созданный при оформлении корзины.
// После создания меняются только статус и отметки подтверждений,
// позиции и сумма заморожены.
type Order struct {
	ID              int64       `json:"id"`
	BuyerID         int64       `json:"buyer_id"`
	MerchantID      int64       `json:"merchant_id"`
	Total           int         `json:"total"` // в минимальных единицах валюты
	PaymentMethod   string      `json:"payment_method"`
	Status          OrderStatus `json:"status"`
	DeliveryAddress string      `json:"delivery_address"`
	Notes           string      `json:"notes,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`

	MerchantConfirmedAt *time.Time `json:"merchant_confirmed_at,omitempty"`
	DeliveredAt         *time.Time `json:"delivered_at,omitempty"`
	BuyerConfirmedAt    *time.Time `json:"buyer_confirmed_at,omitempty"`

	Lines []*OrderLine `json:"lines,omitempty"`
}

// OrderLine — неизменяемый снимок позиции корзины на момент оформления.
type OrderLine struct {
	ID        int64  `json:"id"`
	OrderID   int64  `json:"order_id"`
	ProductID int64  `json:"product_id"`
	Title     string `json:"title"`
	UnitPrice int    `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}
