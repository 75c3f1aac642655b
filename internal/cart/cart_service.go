package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/fjod/go_cart/internal/cache"
	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/guestcart"
	"github.com/fjod/go_cart/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// TokenCodec turns a guest cart into the cookie value and back.
type TokenCodec interface {
	Encode(items domain.GuestItems) (string, error)
	Decode(token string) (domain.GuestItems, error)
}

type CartService struct {
	store   cache.CartStore
	catalog repository.CatalogReader
	codec   TokenCodec
	log     *slog.Logger
	tracer  trace.Tracer
	sfg     singleflight.Group // collapses concurrent reads of one cart
}

func NewCartService(store cache.CartStore, catalog repository.CatalogReader, codec TokenCodec, log *slog.Logger) *CartService {
	return &CartService{
		store:   store,
		catalog: catalog,
		codec:   codec,
		log:     log.With("component", "cart"),
		tracer:  otel.Tracer("github.com/fjod/go_cart/internal/cart"),
	}
}

func (s *CartService) ForUser(userID int64) *AuthenticatedCart {
	return NewAuthenticatedCart(s.store, userID)
}

// ForGuest opens the cart carried by token. A missing or malformed token
// yields an empty cart.
func (s *CartService) ForGuest(ctx context.Context, token string) *GuestCart {
	if token == "" {
		return NewGuestCart(nil)
	}
	items, err := s.codec.Decode(token)
	if err != nil {
		s.log.DebugContext(ctx, "guest cart token ignored", "error", err)
		return NewGuestCart(nil)
	}
	return NewGuestCart(items)
}

func (s *CartService) EncodeGuest(c *GuestCart) (string, error) {
	return s.codec.Encode(c.Items())
}

// GetCart returns the cart lines joined with catalog data, ordered by product
// id. Lines whose product left the catalog are omitted.
func (s *CartService) GetCart(ctx context.Context, c Cart) ([]domain.CartItemView, error) {
	load := func() (interface{}, error) {
		snapshot, err := c.ReadAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("read cart: %w", err)
		}
		return s.join(ctx, snapshot)
	}

	ac, ok := c.(*AuthenticatedCart)
	if !ok {
		v, err := load()
		if err != nil {
			return nil, err
		}
		return v.([]domain.CartItemView), nil
	}

	v, err, _ := s.sfg.Do(readKey(ac.userID), load)
	if err != nil {
		return nil, err
	}
	return v.([]domain.CartItemView), nil
}

func (s *CartService) join(ctx context.Context, snapshot *domain.CartSnapshot) ([]domain.CartItemView, error) {
	lines := snapshot.Lines()
	products, err := s.catalog.GetProducts(ctx, snapshot.ProductIDs())
	if err != nil {
		return nil, fmt.Errorf("load cart products: %w", err)
	}

	views := make([]domain.CartItemView, 0, len(lines))
	for _, line := range lines {
		p, ok := products[line.ProductID]
		if !ok {
			continue
		}
		views = append(views, domain.CartItemView{
			ProductID: line.ProductID,
			Name:      p.Name,
			Price:     p.Price,
			Count:     line.Count,
			Selected:  line.Selected,
		})
	}
	return views, nil
}

func (s *CartService) Add(ctx context.Context, c Cart, productID, count int64, selected bool) error {
	if err := s.checkProduct(ctx, productID, count); err != nil {
		return err
	}
	if err := c.Add(ctx, productID, count, selected); err != nil {
		s.log.ErrorContext(ctx, "cart add failed", "product_id", productID, "error", err)
		return err
	}
	s.forget(c)
	return nil
}

func (s *CartService) Set(ctx context.Context, c Cart, productID, count int64, selected bool) error {
	if err := s.checkProduct(ctx, productID, count); err != nil {
		return err
	}
	if err := c.Set(ctx, productID, count, selected); err != nil {
		s.log.ErrorContext(ctx, "cart set failed", "product_id", productID, "error", err)
		return err
	}
	s.forget(c)
	return nil
}

func (s *CartService) Remove(ctx context.Context, c Cart, productID int64) error {
	if err := c.Remove(ctx, productID); err != nil {
		s.log.ErrorContext(ctx, "cart remove failed", "product_id", productID, "error", err)
		return err
	}
	s.forget(c)
	return nil
}

func (s *CartService) SelectAll(ctx context.Context, c Cart, selected bool) error {
	if err := c.SelectAll(ctx, selected); err != nil {
		s.log.ErrorContext(ctx, "cart select all failed", "error", err)
		return err
	}
	s.forget(c)
	return nil
}

func (s *CartService) checkProduct(ctx context.Context, productID, count int64) error {
	if count < 1 || count > guestcart.MaxCount {
		return ErrInvalidCount
	}
	p, err := s.catalog.GetProduct(ctx, productID)
	if errors.Is(err, repository.ErrProductNotFound) {
		return ErrProductNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup product %d: %w", productID, err)
	}
	if !p.CanReserve(count) {
		return ErrInsufficientStock
	}
	return nil
}

// MergeOnLogin folds the guest cart carried by token into the user's cart.
// Guest quantities overwrite stored ones and the guest selection flag wins.
// Products only in the stored cart are left alone. The login flow must not
// fail because of the guest cart, so nothing is returned; problems are logged.
func (s *CartService) MergeOnLogin(ctx context.Context, userID int64, token string) {
	ctx, span := s.tracer.Start(ctx, "CartService.MergeOnLogin",
		trace.WithAttributes(attribute.Int64("user_id", userID)))
	defer span.End()

	if token == "" {
		return
	}

	items, err := s.codec.Decode(token)
	if err != nil {
		s.log.WarnContext(ctx, "guest cart token rejected, nothing merged", "user_id", userID, "error", err)
		return
	}

	items = s.dropUnknownProducts(ctx, items)
	if len(items) == 0 {
		return
	}

	ids := make([]int64, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	batch := cache.NewBatch()
	for _, id := range ids {
		item := items[id]
		batch.SetQuantity(id, item.Count).SetSelected(id, item.Selected)
	}

	if err := s.store.Apply(ctx, userID, batch); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "merge failed")
		s.log.ErrorContext(ctx, "guest cart merge failed", "user_id", userID, "error", err)
		return
	}

	s.sfg.Forget(readKey(userID))
	span.SetAttributes(attribute.Int("merged_products", len(ids)))
	s.log.InfoContext(ctx, "guest cart merged", "user_id", userID, "products", len(ids))
}

// dropUnknownProducts removes entries whose product is not in the catalog.
// When the catalog cannot be reached the items are kept; settlement checks
// every product again.
func (s *CartService) dropUnknownProducts(ctx context.Context, items domain.GuestItems) domain.GuestItems {
	ids := make([]int64, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}

	known, err := s.catalog.GetProducts(ctx, ids)
	if err != nil {
		s.log.WarnContext(ctx, "catalog lookup failed during merge, merging unfiltered", "error", err)
		return items
	}

	filtered := make(domain.GuestItems, len(items))
	for id, item := range items {
		if _, ok := known[id]; ok {
			filtered[id] = item
			continue
		}
		s.log.InfoContext(ctx, "dropping unknown product from guest cart", "product_id", id)
	}
	return filtered
}

// forget drops an in-flight read of an authenticated cart so the next GetCart
// sees the write that just happened.
func (s *CartService) forget(c Cart) {
	if ac, ok := c.(*AuthenticatedCart); ok {
		s.sfg.Forget(readKey(ac.userID))
	}
}

func readKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}
