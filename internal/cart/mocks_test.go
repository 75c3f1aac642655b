package cart

import (
	"context"
	"sync"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/repository"
)

type mockCatalog struct {
	m        sync.Mutex
	products map[int64]*domain.Product
	err      error
	calls    int
}

func (m *mockCatalog) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.calls++
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
	m.m.Lock()
	defer m.m.Unlock()
	m.calls++
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
