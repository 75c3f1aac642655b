package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/go_cart/internal/domain"
)

const productColumns = `id, goods_id, name, price, stock, sales`

func scanProduct(row interface{ Scan(...any) error }) (*domain.Product, error) {
	p := &domain.Product{}
	err := row.Scan(
		&p.ID,
		&p.GoodsID,
		&p.Name,
		&p.Price,
		&p.Stock,
		&p.Sales,
	)
	return p, err
}

func getProduct(ctx context.Context, q queryer, id int64) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	p, err := scanProduct(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product: %w", err)
	}
	return p, nil
}

func (r *Repository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return getProduct(ctx, r.db, id)
}

// GetProducts returns the known products among ids. Unknown ids are absent
// from the result rather than reported as errors.
func (r *Repository) GetProducts(ctx context.Context, ids []int64) (map[int64]*domain.Product, error) {
	products := make(map[int64]*domain.Product, len(ids))
	if len(ids) == 0 {
		return products, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := `SELECT ` + productColumns + ` FROM products WHERE id IN (` + strings.Join(placeholders, ", ") + `)`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products[p.ID] = p
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return products, nil
}

// Catalog tooling hooks. The storefront never writes the catalog at request
// time; UpsertGoods, UpsertProduct and GetGoods exist for seeding and restock
// scripts run against the same database, and the integration tests seed and
// inspect through them. Upserts overwrite stock and sales wholesale, so they
// must not run while settlements are in flight.

// UpsertGoods inserts or replaces a goods row.
func (r *Repository) UpsertGoods(ctx context.Context, g *domain.Goods) error {
	query := `INSERT INTO goods (id, name, sales) VALUES ($1, $2, $3)
	          ON CONFLICT (id) DO UPDATE SET name = excluded.name, sales = excluded.sales`

	if _, err := r.db.ExecContext(ctx, query, g.ID, g.Name, g.Sales); err != nil {
		return fmt.Errorf("upsert goods: %w", err)
	}
	return nil
}

// UpsertProduct inserts or replaces a product row, including its stock.
func (r *Repository) UpsertProduct(ctx context.Context, p *domain.Product) error {
	query := `INSERT INTO products (id, goods_id, name, price, stock, sales) VALUES ($1, $2, $3, $4, $5, $6)
	          ON CONFLICT (id) DO UPDATE SET goods_id = excluded.goods_id, name = excluded.name,
	          price = excluded.price, stock = excluded.stock, sales = excluded.sales`

	_, err := r.db.ExecContext(ctx, query, p.ID, p.GoodsID, p.Name, p.Price, p.Stock, p.Sales)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

// GetGoods reads a goods row with its aggregate sales. A missing row wraps
// sql.ErrNoRows.
func (r *Repository) GetGoods(ctx context.Context, id int64) (*domain.Goods, error) {
	query := `SELECT id, name, sales FROM goods WHERE id = $1`

	g := &domain.Goods{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&g.ID, &g.Name, &g.Sales)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("goods %d: %w", id, sql.ErrNoRows)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query goods: %w", err)
	}
	return g, nil
}
