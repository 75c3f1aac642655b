package http

import (
	"context"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/repository"
)

type mockCatalog struct {
	products map[int64]*domain.Product
	err      error
}

func (m *mockCatalog) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return p, nil
}

func (m *mockCatalog) GetProducts(_ context.Context, ids []int64) (map[int64]*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	res := make(map[int64]*domain.Product)
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			res[id] = p
		}
	}
	return res, nil
}

type mockOrders struct {
	order     *domain.Order
	orders    []*domain.Order
	preview   *domain.SettlementPreview
	err       error
	gotReq    domain.SettleRequest
	gotUserID int64
}

func (m *mockOrders) SettleOrder(_ context.Context, req domain.SettleRequest) (*domain.Order, error) {
	m.gotReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.order, nil
}

func (m *mockOrders) Preview(_ context.Context, userID int64) (*domain.SettlementPreview, error) {
	m.gotUserID = userID
	if m.err != nil {
		return nil, m.err
	}
	return m.preview, nil
}

func (m *mockOrders) GetOrder(_ context.Context, userID int64, _ string) (*domain.Order, error) {
	m.gotUserID = userID
	if m.err != nil {
		return nil, m.err
	}
	return m.order, nil
}

func (m *mockOrders) ListOrders(_ context.Context, userID int64) ([]*domain.Order, error) {
	m.gotUserID = userID
	if m.err != nil {
		return nil, m.err
	}
	return m.orders, nil
}
