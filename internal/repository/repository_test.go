package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *Repository {
	// Use in-memory database for tests
	repo, err := NewSQLiteRepository(":memory:")
	require.NoError(t, err)

	err = repo.RunMigrations(&Credentials{MigrationsDirPath: "./migrations/sqlite"})
	require.NoError(t, err)

	t.Cleanup(func() { repo.Close() })
	return repo
}

func newOrder(id string, userID int64) *domain.Order {
	return &domain.Order{
		ID:          id,
		UserID:      userID,
		AddressID:   3,
		PayMethod:   domain.PayMethodCash,
		TotalAmount: decimal.Zero,
		Freight:     decimal.NewFromInt(10),
		Status:      domain.OrderStatusUnsend,
		CreatedAt:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNewRepository_UnsupportedDriver(t *testing.T) {
	_, err := NewRepository(&Credentials{Driver: "oracle"})
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
}

func TestSettlementTxOptions(t *testing.T) {
	pg := &Repository{driver: DriverPostgres}
	require.NotNil(t, pg.settlementTxOptions())
	assert.Equal(t, sql.LevelReadCommitted, pg.settlementTxOptions().Isolation)

	lite := &Repository{driver: DriverSQLite}
	assert.Nil(t, lite.settlementTxOptions())

	// the embedded store still opens settlements with the driver default
	repo := setupTestDB(t)
	tx, err := repo.BeginSettlement(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())
}

func TestMigrations_SeedCatalog(t *testing.T) {
	repo := setupTestDB(t)

	p, err := repo.GetProduct(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "Desk lamp LED", p.Name)
	assert.Equal(t, int64(3), p.GoodsID)
	assert.Equal(t, int64(5), p.Stock)
	assert.True(t, decimal.RequireFromString("39.00").Equal(p.Price))
}

func TestRunMigrations_Twice(t *testing.T) {
	repo := setupTestDB(t)

	err := repo.RunMigrations(&Credentials{MigrationsDirPath: "./migrations/sqlite"})
	assert.NoError(t, err)
}

func TestGetProduct_NotFound(t *testing.T) {
	repo := setupTestDB(t)

	p, err := repo.GetProduct(context.Background(), 999)
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.Nil(t, p)
}

func TestGetProducts_SkipsUnknown(t *testing.T) {
	repo := setupTestDB(t)

	products, err := repo.GetProducts(context.Background(), []int64{1, 3, 999})
	require.NoError(t, err)
	assert.Len(t, products, 2)
	assert.Contains(t, products, int64(1))
	assert.Contains(t, products, int64(3))

	products, err = repo.GetProducts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestGetProducts_CancelledContext(t *testing.T) {
	repo := setupTestDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.GetProducts(ctx, []int64{1})
	assert.Error(t, err)
}

func TestUpsertProduct(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertGoods(ctx, &domain.Goods{ID: 10, Name: "Mug"}))
	require.NoError(t, repo.UpsertProduct(ctx, &domain.Product{
		ID: 100, GoodsID: 10, Name: "Mug", Price: decimal.RequireFromString("7.25"), Stock: 3,
	}))
	require.NoError(t, repo.UpsertProduct(ctx, &domain.Product{
		ID: 100, GoodsID: 10, Name: "Mug", Price: decimal.RequireFromString("7.25"), Stock: 8,
	}))

	p, err := repo.GetProduct(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(8), p.Stock)
}

func TestConditionalUpdateStock(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	tx, err := repo.BeginSettlement(ctx)
	require.NoError(t, err)

	n, err := tx.ConditionalUpdateStock(ctx, 5, 4, 3, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "stale expected stock must not match")

	n, err = tx.ConditionalUpdateStock(ctx, 5, 5, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, tx.AddGoodsSales(ctx, 3, 2))
	require.NoError(t, tx.Commit())

	p, err := repo.GetProduct(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.Stock)
	assert.Equal(t, int64(2), p.Sales)

	g, err := repo.GetGoods(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), g.Sales)
}

func TestGetGoods_MissingRow(t *testing.T) {
	repo := setupTestDB(t)

	_, err := repo.GetGoods(context.Background(), 404)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestConditionalUpdateStock_NegativeStockRejected(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	tx, err := repo.BeginSettlement(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	_, err = tx.ConditionalUpdateStock(ctx, 5, 5, -1, 6)
	assert.Error(t, err)
}

func TestSettlement_RollbackUndoesEverything(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	tx, err := repo.BeginSettlement(ctx)
	require.NoError(t, err)

	order := newOrder("20240501120000000000007", 7)
	require.NoError(t, tx.CreateOrder(ctx, order))
	n, err := tx.ConditionalUpdateStock(ctx, 1, 100, 99, 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	require.NoError(t, tx.AddOutboxEvent(ctx, order.ID, "OrderCreated", []byte(`{}`)))

	require.NoError(t, tx.Rollback())
	require.NoError(t, tx.Rollback(), "second rollback is a no-op")
	assert.ErrorIs(t, tx.Commit(), ErrTxFinished)

	_, err = repo.GetOrderByID(ctx, order.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	p, err := repo.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), p.Stock)

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestCreateOrder_DuplicateKeepsTxUsable(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	tx, err := repo.BeginSettlement(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.CreateOrder(ctx, newOrder("20240501120000000000007", 7)))
	require.NoError(t, tx.Commit())

	tx, err = repo.BeginSettlement(ctx)
	require.NoError(t, err)

	err = tx.CreateOrder(ctx, newOrder("20240501120000000000007", 7))
	assert.ErrorIs(t, err, ErrDuplicateOrder)

	retry := newOrder("20240501120000000000007"+"01", 7)
	require.NoError(t, tx.CreateOrder(ctx, retry))
	require.NoError(t, tx.Commit())

	orders, err := repo.ListOrdersByUserID(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}

func TestOrderReadBack(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	tx, err := repo.BeginSettlement(ctx)
	require.NoError(t, err)

	order := newOrder("20240501120000000000009", 9)
	require.NoError(t, tx.CreateOrder(ctx, order))

	items := []domain.OrderItem{
		{OrderID: order.ID, ProductID: 3, Count: 1, Price: decimal.RequireFromString("24.90")},
		{OrderID: order.ID, ProductID: 1, Count: 2, Price: decimal.RequireFromString("4.50")},
	}
	for _, item := range items {
		require.NoError(t, tx.CreateOrderItem(ctx, &item))
		order.AddItem(item)
	}
	order.TotalAmount = order.TotalAmount.Add(order.Freight)
	require.NoError(t, tx.UpdateOrderTotals(ctx, order))
	require.NoError(t, tx.Commit())

	got, err := repo.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(9), got.UserID)
	assert.Equal(t, domain.PayMethodCash, got.PayMethod)
	assert.Equal(t, domain.OrderStatusUnsend, got.Status)
	assert.Equal(t, int64(3), got.TotalCount)
	assert.True(t, decimal.RequireFromString("43.90").Equal(got.TotalAmount), got.TotalAmount.String())
	assert.True(t, order.CreatedAt.Equal(got.CreatedAt))
	require.Len(t, got.Items, 2)
	assert.Equal(t, int64(1), got.Items[0].ProductID)
	assert.Equal(t, int64(3), got.Items[1].ProductID)

	orders, err := repo.ListOrdersByUserID(ctx, 9)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Len(t, orders[0].Items, 2)

	orders, err = repo.ListOrdersByUserID(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestUpdateOrderTotals_UnknownOrder(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	tx, err := repo.BeginSettlement(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	err = tx.UpdateOrderTotals(ctx, newOrder("missing", 1))
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOutboxEvents(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	tx, err := repo.BeginSettlement(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.AddOutboxEvent(ctx, "order-1", "OrderCreated", []byte(`{"order_id":"order-1"}`)))
	require.NoError(t, tx.AddOutboxEvent(ctx, "order-2", "OrderCreated", []byte(`{"order_id":"order-2"}`)))
	require.NoError(t, tx.Commit())

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "order-1", events[0].AggregateId)
	assert.Equal(t, "OrderCreated", events[0].EventType)
	assert.JSONEq(t, `{"order_id":"order-1"}`, string(events[0].Payload))

	require.NoError(t, repo.MarkEventAsProcessed(ctx, events[0].ID))

	events, err = repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "order-2", events[0].AggregateId)

	events, err = repo.GetUnprocessedEvents(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestIsUniqueViolation_OtherErrors(t *testing.T) {
	assert.False(t, isUniqueViolation(assert.AnError))
	assert.False(t, isUniqueViolation(nil))
}
