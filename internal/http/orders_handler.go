package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/go-chi/chi/v5"
)

// OrderService is the checkout side used by the handlers.
type OrderService interface {
	SettleOrder(ctx context.Context, req domain.SettleRequest) (*domain.Order, error)
	Preview(ctx context.Context, userID int64) (*domain.SettlementPreview, error)
	GetOrder(ctx context.Context, userID int64, orderID string) (*domain.Order, error)
	ListOrders(ctx context.Context, userID int64) ([]*domain.Order, error)
}

type OrdersHandler struct {
	orders  OrderService
	timeout time.Duration
}

func NewOrdersHandler(orders OrderService, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		timeout: timeout,
	}
}

type SettleRequestDTO struct {
	AddressID int64  `json:"address_id"`
	PayMethod string `json:"pay_method"`
}

type OrderItemDTO struct {
	ProductID int64  `json:"product_id"`
	Count     int64  `json:"count"`
	Price     string `json:"price"`
}

type OrderResponseDTO struct {
	ID          string         `json:"order_id"`
	AddressID   int64          `json:"address_id"`
	PayMethod   string         `json:"pay_method"`
	Status      string         `json:"status"`
	TotalCount  int64          `json:"total_count"`
	TotalAmount string         `json:"total_amount"`
	Freight     string         `json:"freight"`
	Items       []OrderItemDTO `json:"items"`
	CreatedAt   string         `json:"created_at"`
}

func convertOrder(o *domain.Order) OrderResponseDTO {
	items := make([]OrderItemDTO, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemDTO{
			ProductID: item.ProductID,
			Count:     item.Count,
			Price:     item.Price.StringFixed(2),
		})
	}
	return OrderResponseDTO{
		ID:          o.ID,
		AddressID:   o.AddressID,
		PayMethod:   string(o.PayMethod),
		Status:      string(o.Status),
		TotalCount:  o.TotalCount,
		TotalAmount: o.TotalAmount.StringFixed(2),
		Freight:     o.Freight.StringFixed(2),
		Items:       items,
		CreatedAt:   o.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// GET /api/v1/orders/settlement
func (h *OrdersHandler) Preview(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	preview, err := h.orders.Preview(ctx, getUserIDFromContext(ctx))
	if err != nil {
		handleSettlementError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, preview)
}

// POST /api/v1/orders
func (h *OrdersHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req SettleRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.AddressID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_address_id", "address_id must be positive")
		return
	}

	order, err := h.orders.SettleOrder(ctx, domain.SettleRequest{
		UserID:    getUserIDFromContext(ctx),
		AddressID: req.AddressID,
		PayMethod: domain.PayMethod(req.PayMethod),
	})
	if err != nil {
		handleSettlementError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, convertOrder(order))
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orders, err := h.orders.ListOrders(ctx, getUserIDFromContext(ctx))
	if err != nil {
		handleSettlementError(w, err)
		return
	}

	dtos := make([]OrderResponseDTO, 0, len(orders))
	for _, o := range orders {
		dtos = append(dtos, convertOrder(o))
	}
	respondJSON(w, http.StatusOK, dtos)
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID := chi.URLParam(r, "order_id")
	if orderID == "" {
		respondError(w, http.StatusBadRequest, "missing_order_id", "order_id is required")
		return
	}

	order, err := h.orders.GetOrder(ctx, getUserIDFromContext(ctx), orderID)
	if err != nil {
		handleSettlementError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, convertOrder(order))
}
