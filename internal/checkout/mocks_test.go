package checkout

import (
	"context"
	"fmt"
	"sync"

	"github.com/fjod/go_cart/internal/cache"
	"github.com/fjod/go_cart/internal/domain"
	r "github.com/fjod/go_cart/internal/repository"
)

// MockTx implements r.SettlementTx with compare-and-set semantics on Products.
type MockTx struct {
	Products map[int64]*domain.Product

	// Conflicts makes the next n conditional updates of a product lose the race.
	Conflicts      map[int64]int
	AlwaysConflict bool
	DuplicateIDs   map[string]bool

	GetProductErr error
	CreateItemErr error
	GoodsErr      error
	OutboxErr     error
	CommitErr     error

	GetProductCalls  int
	UpdateStockCalls int
	CommitCalls      int
	RollbackCalls    int

	Order      *domain.Order
	Items      []domain.OrderItem
	GoodsSales map[int64]int64
	Events     [][]byte
	// Locks lists the rows written, in order, as "product:<id>" or "goods:<id>".
	Locks []string
}

func (m *MockTx) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	m.GetProductCalls++
	if m.GetProductErr != nil {
		return nil, m.GetProductErr
	}
	p, ok := m.Products[id]
	if !ok {
		return nil, r.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockTx) ConditionalUpdateStock(_ context.Context, productID, expectedStock, newStock, newSales int64) (int64, error) {
	m.UpdateStockCalls++
	if m.AlwaysConflict {
		return 0, nil
	}
	if m.Conflicts[productID] > 0 {
		m.Conflicts[productID]--
		return 0, nil
	}
	p := m.Products[productID]
	if p == nil || p.Stock != expectedStock {
		return 0, nil
	}
	p.Stock = newStock
	p.Sales = newSales
	m.Locks = append(m.Locks, fmt.Sprintf("product:%d", productID))
	return 1, nil
}

func (m *MockTx) AddGoodsSales(_ context.Context, goodsID, delta int64) error {
	if m.GoodsErr != nil {
		return m.GoodsErr
	}
	m.Locks = append(m.Locks, fmt.Sprintf("goods:%d", goodsID))
	if m.GoodsSales == nil {
		m.GoodsSales = make(map[int64]int64)
	}
	m.GoodsSales[goodsID] += delta
	return nil
}

func (m *MockTx) CreateOrder(_ context.Context, order *domain.Order) error {
	if m.DuplicateIDs[order.ID] {
		return r.ErrDuplicateOrder
	}
	cp := *order
	m.Order = &cp
	return nil
}

func (m *MockTx) CreateOrderItem(_ context.Context, item *domain.OrderItem) error {
	if m.CreateItemErr != nil {
		return m.CreateItemErr
	}
	m.Items = append(m.Items, *item)
	return nil
}

func (m *MockTx) UpdateOrderTotals(_ context.Context, order *domain.Order) error {
	m.Order.TotalCount = order.TotalCount
	m.Order.TotalAmount = order.TotalAmount
	return nil
}

func (m *MockTx) AddOutboxEvent(_ context.Context, _, _ string, payload []byte) error {
	if m.OutboxErr != nil {
		return m.OutboxErr
	}
	m.Events = append(m.Events, payload)
	return nil
}

func (m *MockTx) Commit() error {
	m.CommitCalls++
	return m.CommitErr
}

func (m *MockTx) Rollback() error {
	m.RollbackCalls++
	return nil
}

// MockRepository implements r.RepoInterface for testing
type MockRepository struct {
	Tx         *MockTx
	BeginErr   error
	BeginCalls int
	Orders     map[string]*domain.Order
	Catalog    map[int64]*domain.Product
	CatalogErr error
	ListErr    error
}

func (m *MockRepository) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	p, ok := m.Catalog[id]
	if !ok {
		return nil, r.ErrProductNotFound
	}
	return p, nil
}

func (m *MockRepository) GetProducts(_ context.Context, ids []int64) (map[int64]*domain.Product, error) {
	if m.CatalogErr != nil {
		return nil, m.CatalogErr
	}
	res := make(map[int64]*domain.Product)
	for _, id := range ids {
		if p, ok := m.Catalog[id]; ok {
			res[id] = p
		}
	}
	return res, nil
}

func (m *MockRepository) BeginSettlement(context.Context) (r.SettlementTx, error) {
	m.BeginCalls++
	if m.BeginErr != nil {
		return nil, m.BeginErr
	}
	return m.Tx, nil
}

func (m *MockRepository) GetOrderByID(_ context.Context, orderID string) (*domain.Order, error) {
	o, ok := m.Orders[orderID]
	if !ok {
		return nil, r.ErrOrderNotFound
	}
	return o, nil
}

func (m *MockRepository) ListOrdersByUserID(_ context.Context, userID int64) ([]*domain.Order, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var res []*domain.Order
	for _, o := range m.Orders {
		if o.UserID == userID {
			res = append(res, o)
		}
	}
	return res, nil
}

func (m *MockRepository) GetUnprocessedEvents(context.Context, int) ([]*r.OutboxEvent, error) {
	return nil, nil
}

func (m *MockRepository) MarkEventAsProcessed(context.Context, int64) error {
	return nil
}

func (m *MockRepository) Close() error {
	return nil
}

func (m *MockRepository) RunMigrations(*r.Credentials) error {
	return nil
}

// MockCartStore implements cache.CartStore over an in-memory snapshot.
type MockCartStore struct {
	mu        sync.Mutex
	Snapshot  *domain.CartSnapshot
	ReadErr   error
	RemoveErr error
	Removed   []int64
}

func (m *MockCartStore) ReadAll(context.Context, int64) (*domain.CartSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	if m.Snapshot == nil {
		return domain.NewCartSnapshot(), nil
	}
	return m.Snapshot, nil
}

func (m *MockCartStore) Apply(context.Context, int64, *cache.Batch) error { return nil }

func (m *MockCartStore) SetQuantity(context.Context, int64, int64, int64) error { return nil }

func (m *MockCartStore) IncrementQuantity(context.Context, int64, int64, int64) error { return nil }

func (m *MockCartStore) Select(context.Context, int64, int64) error { return nil }

func (m *MockCartStore) Deselect(context.Context, int64, int64) error { return nil }

func (m *MockCartStore) RemoveProduct(context.Context, int64, int64) error { return nil }

func (m *MockCartStore) SelectAll(context.Context, int64, bool) error { return nil }

func (m *MockCartStore) RemoveProducts(_ context.Context, _ int64, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RemoveErr != nil {
		return m.RemoveErr
	}
	m.Removed = append(m.Removed, ids...)
	return nil
}
