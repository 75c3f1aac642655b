package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type settlementTx struct {
	tx   *sql.Tx
	now  func() time.Time
	done bool
}

// BeginSettlement opens a transaction and marks the savepoint every
// settlement failure rolls back to.
func (r *Repository) BeginSettlement(ctx context.Context) (SettlementTx, error) {
	tx, err := r.db.BeginTx(ctx, r.settlementTxOptions())
	if err != nil {
		return nil, fmt.Errorf("begin settlement: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `SAVEPOINT settlement`); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("mark settlement savepoint: %w", err)
	}
	return &settlementTx{tx: tx, now: r.now}, nil
}

// settlementTxOptions pins Postgres to READ COMMITTED whatever the server
// default is: a conditional update that loses the race must see 0 rows, not
// fail with a serialization error. SQLite only has serializable writes.
func (r *Repository) settlementTxOptions() *sql.TxOptions {
	if r.driver == DriverPostgres {
		return &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	}
	return nil
}

func (s *settlementTx) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return getProduct(ctx, s.tx, id)
}

func (s *settlementTx) ConditionalUpdateStock(ctx context.Context, productID, expectedStock, newStock, newSales int64) (int64, error) {
	query := `UPDATE products SET stock = $1, sales = $2 WHERE id = $3 AND stock = $4`

	res, err := s.tx.ExecContext(ctx, query, newStock, newSales, productID, expectedStock)
	if err != nil {
		return 0, fmt.Errorf("conditional stock update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("conditional stock update rows: %w", err)
	}
	return n, nil
}

func (s *settlementTx) AddGoodsSales(ctx context.Context, goodsID, delta int64) error {
	query := `UPDATE goods SET sales = sales + $1 WHERE id = $2`

	if _, err := s.tx.ExecContext(ctx, query, delta, goodsID); err != nil {
		return fmt.Errorf("update goods sales: %w", err)
	}
	return nil
}

// CreateOrder inserts the order header inside its own nested savepoint so a
// primary key collision leaves the enclosing transaction usable.
func (s *settlementTx) CreateOrder(ctx context.Context, order *domain.Order) error {
	if _, err := s.tx.ExecContext(ctx, `SAVEPOINT order_insert`); err != nil {
		return fmt.Errorf("mark order savepoint: %w", err)
	}

	query := `INSERT INTO orders (order_id, user_id, address_id, pay_method, total_count, total_amount, freight, status, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, insertErr := s.tx.ExecContext(ctx, query,
		order.ID,
		order.UserID,
		order.AddressID,
		string(order.PayMethod),
		order.TotalCount,
		order.TotalAmount,
		order.Freight,
		string(order.Status),
		order.CreatedAt.UTC())

	if insertErr != nil {
		if _, err := s.tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT order_insert`); err != nil {
			return fmt.Errorf("insert order: %w (rollback to savepoint: %v)", insertErr, err)
		}
		if isUniqueViolation(insertErr) {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("insert order: %w", insertErr)
	}

	if _, err := s.tx.ExecContext(ctx, `RELEASE SAVEPOINT order_insert`); err != nil {
		return fmt.Errorf("release order savepoint: %w", err)
	}
	return nil
}

func (s *settlementTx) CreateOrderItem(ctx context.Context, item *domain.OrderItem) error {
	query := `INSERT INTO order_items (order_id, product_id, count, price) VALUES ($1, $2, $3, $4)`

	if _, err := s.tx.ExecContext(ctx, query, item.OrderID, item.ProductID, item.Count, item.Price); err != nil {
		return fmt.Errorf("insert order item: %w", err)
	}
	return nil
}

func (s *settlementTx) UpdateOrderTotals(ctx context.Context, order *domain.Order) error {
	query := `UPDATE orders SET total_count = $1, total_amount = $2 WHERE order_id = $3`

	res, err := s.tx.ExecContext(ctx, query, order.TotalCount, order.TotalAmount, order.ID)
	if err != nil {
		return fmt.Errorf("update order totals: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (s *settlementTx) AddOutboxEvent(ctx context.Context, aggregateID, eventType string, payload []byte) error {
	query := `INSERT INTO outbox_events (aggregate_id, event_type, payload, created_at) VALUES ($1, $2, $3, $4)`

	// payload goes in as text: lib/pq would send []byte as bytea
	_, err := s.tx.ExecContext(ctx, query, aggregateID, eventType, string(payload), s.now().UTC())
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func (s *settlementTx) Commit() error {
	if s.done {
		return ErrTxFinished
	}
	if _, err := s.tx.Exec(`RELEASE SAVEPOINT settlement`); err != nil {
		_ = s.Rollback()
		return fmt.Errorf("release settlement savepoint: %w", err)
	}
	s.done = true
	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("commit settlement: %w", err)
	}
	return nil
}

// Rollback undoes everything since BeginSettlement. Calling it again, or
// after Commit, is a no-op.
func (s *settlementTx) Rollback() error {
	if s.done {
		return nil
	}
	s.done = true

	// the savepoint rollback fails harmlessly when the driver already aborted
	// the transaction on context cancellation
	_, _ = s.tx.Exec(`ROLLBACK TO SAVEPOINT settlement`)
	if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback settlement: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
