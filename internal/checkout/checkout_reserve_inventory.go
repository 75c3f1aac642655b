package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/fjod/go_cart/internal/domain"
	r "github.com/fjod/go_cart/internal/repository"
)

// reserve takes line.Count units of the product with an optimistic
// compare-and-set on its stock. A lost race re-reads the product and tries
// again until the attempt or wall clock budget runs out. Goods sales are not
// touched here; see addGoodsSales.
func (s *CheckoutService) reserve(ctx context.Context, tx r.SettlementTx, line domain.CartLine) (*domain.Product, error) {
	deadline := s.now().Add(s.cfg.ReserveMaxWait)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fatal(err)
		}

		product, err := tx.GetProduct(ctx, line.ProductID)
		if errors.Is(err, r.ErrProductNotFound) {
			return nil, &SettlementError{Kind: KindProductNotFound, ProductID: line.ProductID, Requested: line.Count}
		}
		if err != nil {
			return nil, fatal(err)
		}

		if !product.CanReserve(line.Count) {
			return nil, &SettlementError{
				Kind:      KindInsufficientStock,
				ProductID: line.ProductID,
				Requested: line.Count,
				Available: product.Stock,
			}
		}

		n, err := tx.ConditionalUpdateStock(ctx,
			product.ID,
			product.Stock,
			product.Stock-line.Count,
			product.Sales+line.Count)
		if err != nil {
			return nil, fatal(err)
		}

		if n == 1 {
			return product, nil
		}

		s.log.DebugContext(ctx, "stock changed under reservation, retrying",
			"product_id", line.ProductID,
			"attempt", attempt)

		if attempt >= s.cfg.ReserveMaxAttempts || !s.now().Before(deadline) {
			return nil, &SettlementError{
				Kind:      KindFatal,
				ProductID: line.ProductID,
				Err:       fmt.Errorf("%w: product %d after %d attempts", ErrReservationContention, line.ProductID, attempt),
			}
		}
	}
}

// addGoodsSales bumps the owning goods rows once every product is reserved,
// in ascending goods id. Product rows are always locked before goods rows, so
// two settlements sharing a goods row cannot wait on each other in a cycle.
func (s *CheckoutService) addGoodsSales(ctx context.Context, tx r.SettlementTx, sales map[int64]int64) error {
	ids := make([]int64, 0, len(sales))
	for id := range sales {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if err := tx.AddGoodsSales(ctx, id, sales[id]); err != nil {
			return fatal(err)
		}
	}
	return nil
}
