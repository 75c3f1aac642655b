package cart

import (
	"context"

	"github.com/fjod/go_cart/internal/cache"
	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/guestcart"
)

// Cart is one shopper's cart. Authenticated carts live in the cart store,
// guest carts travel inside the signed cookie; both read the same way.
type Cart interface {
	ReadAll(ctx context.Context) (*domain.CartSnapshot, error)
	// Add accumulates count and overwrites the selection flag when selected is
	// true for authenticated carts, or always for guest carts.
	Add(ctx context.Context, productID, count int64, selected bool) error
	Set(ctx context.Context, productID, count int64, selected bool) error
	Remove(ctx context.Context, productID int64) error
	SelectAll(ctx context.Context, selected bool) error
}

type AuthenticatedCart struct {
	store  cache.CartStore
	userID int64
}

func NewAuthenticatedCart(store cache.CartStore, userID int64) *AuthenticatedCart {
	return &AuthenticatedCart{store: store, userID: userID}
}

func (c *AuthenticatedCart) UserID() int64 {
	return c.userID
}

func (c *AuthenticatedCart) ReadAll(ctx context.Context) (*domain.CartSnapshot, error) {
	return c.store.ReadAll(ctx, c.userID)
}

func (c *AuthenticatedCart) Add(ctx context.Context, productID, count int64, selected bool) error {
	batch := cache.NewBatch().IncrementQuantity(productID, count)
	if selected {
		batch.Select(productID)
	}
	return c.store.Apply(ctx, c.userID, batch)
}

func (c *AuthenticatedCart) Set(ctx context.Context, productID, count int64, selected bool) error {
	batch := cache.NewBatch().
		SetQuantity(productID, count).
		SetSelected(productID, selected)
	return c.store.Apply(ctx, c.userID, batch)
}

func (c *AuthenticatedCart) Remove(ctx context.Context, productID int64) error {
	return c.store.RemoveProduct(ctx, c.userID, productID)
}

func (c *AuthenticatedCart) SelectAll(ctx context.Context, selected bool) error {
	return c.store.SelectAll(ctx, c.userID, selected)
}

// GuestCart mutates its items in memory; the caller re-encodes them into a
// fresh token afterwards.
type GuestCart struct {
	items domain.GuestItems
}

func NewGuestCart(items domain.GuestItems) *GuestCart {
	if items == nil {
		items = make(domain.GuestItems)
	}
	return &GuestCart{items: items}
}

func (c *GuestCart) Items() domain.GuestItems {
	return c.items
}

func (c *GuestCart) ReadAll(context.Context) (*domain.CartSnapshot, error) {
	return c.items.Snapshot(), nil
}

func (c *GuestCart) Add(_ context.Context, productID, count int64, selected bool) error {
	total := c.items[productID].Count + count
	if total > guestcart.MaxCount {
		total = guestcart.MaxCount
	}
	c.items[productID] = domain.GuestItem{Count: total, Selected: selected}
	return nil
}

func (c *GuestCart) Set(_ context.Context, productID, count int64, selected bool) error {
	c.items[productID] = domain.GuestItem{Count: count, Selected: selected}
	return nil
}

func (c *GuestCart) Remove(_ context.Context, productID int64) error {
	delete(c.items, productID)
	return nil
}

func (c *GuestCart) SelectAll(_ context.Context, selected bool) error {
	for id, item := range c.items {
		item.Selected = selected
		c.items[id] = item
	}
	return nil
}
