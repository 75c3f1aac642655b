package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/internal/domain"
	r "github.com/fjod/go_cart/internal/repository"
	"github.com/shopspring/decimal"
)

// Preview prices the selected part of the cart at current catalog prices
// without reserving anything. Products no longer in the catalog are left out.
func (s *CheckoutService) Preview(ctx context.Context, userID int64) (*domain.SettlementPreview, error) {
	snapshot, err := s.store.ReadAll(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}
	lines := snapshot.SelectedLines()

	ids := make([]int64, len(lines))
	for i, line := range lines {
		ids[i] = line.ProductID
	}
	products, err := s.repo.GetProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	preview := &domain.SettlementPreview{
		Items:   make([]domain.PreviewItem, 0, len(lines)),
		Freight: s.cfg.Freight,
		Total:   s.cfg.Freight,
	}
	for _, line := range lines {
		p, ok := products[line.ProductID]
		if !ok {
			continue
		}
		item := domain.PreviewItem{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Count:     line.Count,
		}
		preview.Items = append(preview.Items, item)
		preview.Total = preview.Total.Add(p.Price.Mul(decimal.NewFromInt(line.Count)))
	}
	return preview, nil
}

// GetOrder returns the user's order; orders of other users are reported as
// not found.
func (s *CheckoutService) GetOrder(ctx context.Context, userID int64, orderID string) (*domain.Order, error) {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if errors.Is(err, r.ErrOrderNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *CheckoutService) ListOrders(ctx context.Context, userID int64) ([]*domain.Order, error) {
	orders, err := s.repo.ListOrdersByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	return orders, nil
}
