package cache

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/internal/domain"
)

// CartStore holds the authenticated shopper's cart: a quantity mapping and a
// selection set. Every method that touches both structures does so in one
// atomic batch.
type CartStore interface {
	ReadAll(ctx context.Context, userID int64) (*domain.CartSnapshot, error)
	Apply(ctx context.Context, userID int64, batch *Batch) error

	SetQuantity(ctx context.Context, userID, productID, quantity int64) error
	IncrementQuantity(ctx context.Context, userID, productID, delta int64) error
	Select(ctx context.Context, userID, productID int64) error
	Deselect(ctx context.Context, userID, productID int64) error
	RemoveProduct(ctx context.Context, userID, productID int64) error
	RemoveProducts(ctx context.Context, userID int64, productIDs []int64) error
	SelectAll(ctx context.Context, userID int64, selected bool) error
}

var (
	ErrCorruptCart = errors.New("cart data in cache is corrupt")
	ErrCartBusy    = errors.New("cart changed concurrently, giving up")
)
