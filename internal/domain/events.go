package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const EventTypeOrderCreated = "OrderCreated"

// OrderCreatedEvent is published once per committed order.
type OrderCreatedEvent struct {
	EventID     string          `json:"event_id"`
	OrderID     string          `json:"order_id"`
	UserID      int64           `json:"user_id"`
	AddressID   int64           `json:"address_id"`
	PayMethod   PayMethod       `json:"pay_method"`
	Status      OrderStatus     `json:"status"`
	TotalCount  int64           `json:"total_count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Freight     decimal.Decimal `json:"freight"`
	Items       []OrderItem     `json:"items"`
	CreatedAt   time.Time       `json:"created_at"`
}
