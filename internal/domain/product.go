package domain

import "github.com/shopspring/decimal"

// Product is a sellable stock keeping unit. Stock and Sales are only changed
// through conditional updates during settlement.
type Product struct {
	ID      int64
	GoodsID int64
	Name    string
	Price   decimal.Decimal
	Stock   int64
	Sales   int64
}

// Goods is the aggregate that owns a family of products.
type Goods struct {
	ID    int64
	Name  string
	Sales int64
}

// CanReserve reports whether count units can be taken from the stock read in p.
func (p Product) CanReserve(count int64) bool {
	return count > 0 && count <= p.Stock
}
