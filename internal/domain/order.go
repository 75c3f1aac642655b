package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type PayMethod string

const (
	PayMethodCash   PayMethod = "CASH"
	PayMethodAlipay PayMethod = "ALIPAY"
)

func (m PayMethod) Valid() bool {
	return m == PayMethodCash || m == PayMethodAlipay
}

type OrderStatus string

const (
	OrderStatusUnpaid     OrderStatus = "UNPAID"
	OrderStatusUnsend     OrderStatus = "UNSEND"
	OrderStatusUnreceived OrderStatus = "UNRECEIVED"
	OrderStatusUncomment  OrderStatus = "UNCOMMENT"
	OrderStatusFinished   OrderStatus = "FINISHED"
	OrderStatusCanceled   OrderStatus = "CANCELED"
)

// InitialStatus derives the lifecycle status of a new order from how it will
// be paid: cash on delivery ships right away, everything else waits for payment.
func InitialStatus(m PayMethod) OrderStatus {
	if m == PayMethodCash {
		return OrderStatusUnsend
	}
	return OrderStatusUnpaid
}

type OrderItem struct {
	OrderID   string          `json:"order_id"`
	ProductID int64           `json:"product_id"`
	Count     int64           `json:"count"`
	Price     decimal.Decimal `json:"price"`
}

// Subtotal is the line amount at the captured unit price.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(i.Count))
}

type Order struct {
	ID          string          `json:"order_id"`
	UserID      int64           `json:"user_id"`
	AddressID   int64           `json:"address_id"`
	PayMethod   PayMethod       `json:"pay_method"`
	TotalCount  int64           `json:"total_count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Freight     decimal.Decimal `json:"freight"`
	Status      OrderStatus     `json:"status"`
	Items       []OrderItem     `json:"items"`
	CreatedAt   time.Time       `json:"created_at"`
}

// AddItem appends a line and accumulates it into the running totals.
func (o *Order) AddItem(item OrderItem) {
	o.Items = append(o.Items, item)
	o.TotalCount += item.Count
	o.TotalAmount = o.TotalAmount.Add(item.Subtotal())
}

// NewOrderID composes a second-precision UTC timestamp with the zero padded
// user id. A non-zero attempt appends a two digit suffix so a colliding id can
// be regenerated.
func NewOrderID(now time.Time, userID int64, attempt int) string {
	id := now.UTC().Format("20060102150405") + fmt.Sprintf("%09d", userID)
	if attempt > 0 {
		id += fmt.Sprintf("%02d", attempt)
	}
	return id
}

// SettleRequest carries the inputs of one checkout.
type SettleRequest struct {
	UserID    int64
	AddressID int64
	PayMethod PayMethod
}

type PreviewItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Count     int64           `json:"count"`
}

// SettlementPreview is what the shopper sees before placing the order.
type SettlementPreview struct {
	Items   []PreviewItem   `json:"items"`
	Freight decimal.Decimal `json:"freight"`
	Total   decimal.Decimal `json:"total"`
}
