package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/go_cart/internal/cache"
	"github.com/fjod/go_cart/internal/domain"
	r "github.com/fjod/go_cart/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// maxOrderIDSuffix bounds the two digit suffix appended on id collisions.
const maxOrderIDSuffix = 99

type Config struct {
	Freight            decimal.Decimal
	ReserveMaxAttempts int
	ReserveMaxWait     time.Duration
	CleanupTimeout     time.Duration
}

func DefaultConfig() Config {
	return Config{
		Freight:            decimal.NewFromInt(10),
		ReserveMaxAttempts: 300,
		ReserveMaxWait:     500 * time.Millisecond,
		CleanupTimeout:     time.Second,
	}
}

type CheckoutService struct {
	repo   r.RepoInterface
	store  cache.CartStore
	cfg    Config
	log    *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

func NewCheckoutService(repo r.RepoInterface, store cache.CartStore, cfg Config, log *slog.Logger) *CheckoutService {
	if cfg.CleanupTimeout <= 0 {
		cfg.CleanupTimeout = time.Second
	}
	return &CheckoutService{
		repo:   repo,
		store:  store,
		cfg:    cfg,
		log:    log.With("component", "checkout"),
		tracer: otel.Tracer("github.com/fjod/go_cart/internal/checkout"),
		now:    time.Now,
	}
}

// SettleOrder turns the selected part of the shopper's cart into an order.
// Stock is reserved with conditional updates; the order, its items, the stock
// changes and the OrderCreated event commit together or not at all. Settled
// products are then removed from the cart on a best-effort basis.
func (s *CheckoutService) SettleOrder(ctx context.Context, req domain.SettleRequest) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "CheckoutService.SettleOrder",
		trace.WithAttributes(attribute.Int64("user_id", req.UserID)))
	defer span.End()

	if !req.PayMethod.Valid() {
		return nil, ErrInvalidPayMethod
	}

	order, err := s.settle(ctx, req)
	if err != nil {
		if IsRejection(err) {
			s.log.InfoContext(ctx, "settlement rejected", "user_id", req.UserID, "reason", err.Error())
			span.SetAttributes(attribute.String("rejection", err.Error()))
		} else {
			s.log.ErrorContext(ctx, "settlement failed", "user_id", req.UserID, "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "settlement failed")
		}
		return nil, err
	}

	span.SetAttributes(attribute.String("order_id", order.ID))
	s.log.InfoContext(ctx, "order settled",
		"order_id", order.ID,
		"user_id", order.UserID,
		"total_count", order.TotalCount,
		"total_amount", order.TotalAmount.StringFixed(2))

	s.cleanupCart(ctx, order)
	return order, nil
}

func (s *CheckoutService) settle(ctx context.Context, req domain.SettleRequest) (*domain.Order, error) {
	snapshot, err := s.store.ReadAll(ctx, req.UserID)
	if err != nil {
		return nil, fatal(fmt.Errorf("read cart: %w", err))
	}
	lines := snapshot.SelectedLines()
	if len(lines) == 0 {
		return nil, &SettlementError{Kind: KindEmptySelection}
	}

	tx, err := s.repo.BeginSettlement(ctx)
	if err != nil {
		return nil, fatal(err)
	}

	state := domain.SettlementStart
	committed := false
	defer func() {
		if !committed {
			s.rollback(ctx, tx, &state)
		}
	}()

	now := s.now()
	order := &domain.Order{
		UserID:      req.UserID,
		AddressID:   req.AddressID,
		PayMethod:   req.PayMethod,
		TotalAmount: decimal.Zero,
		Freight:     s.cfg.Freight,
		Status:      domain.InitialStatus(req.PayMethod),
		CreatedAt:   now,
	}
	if err := s.createOrder(ctx, tx, order, now); err != nil {
		return nil, err
	}

	goodsSales := make(map[int64]int64)
	for _, line := range lines {
		product, err := s.reserve(ctx, tx, line)
		if err != nil {
			return nil, err
		}
		goodsSales[product.GoodsID] += line.Count

		item := domain.OrderItem{
			OrderID:   order.ID,
			ProductID: line.ProductID,
			Count:     line.Count,
			Price:     product.Price,
		}
		if err := tx.CreateOrderItem(ctx, &item); err != nil {
			return nil, fatal(err)
		}
		order.AddItem(item)

		if err := s.transition(ctx, &state, domain.SettlementInventoryReserved); err != nil {
			return nil, err
		}
	}

	if err := s.addGoodsSales(ctx, tx, goodsSales); err != nil {
		return nil, err
	}

	order.TotalAmount = order.TotalAmount.Add(order.Freight)
	if err := tx.UpdateOrderTotals(ctx, order); err != nil {
		return nil, fatal(err)
	}

	payload, err := json.Marshal(domain.OrderCreatedEvent{
		EventID:     uuid.NewString(),
		OrderID:     order.ID,
		UserID:      order.UserID,
		AddressID:   order.AddressID,
		PayMethod:   order.PayMethod,
		Status:      order.Status,
		TotalCount:  order.TotalCount,
		TotalAmount: order.TotalAmount,
		Freight:     order.Freight,
		Items:       order.Items,
		CreatedAt:   order.CreatedAt,
	})
	if err != nil {
		return nil, fatal(fmt.Errorf("marshal order event: %w", err))
	}
	if err := tx.AddOutboxEvent(ctx, order.ID, domain.EventTypeOrderCreated, payload); err != nil {
		return nil, fatal(err)
	}

	if !state.CanTransitionTo(domain.SettlementCommitted) {
		return nil, fatal(fmt.Errorf("%w: %s -> %s", IllegalTransitionError, state, domain.SettlementCommitted))
	}
	if err := tx.Commit(); err != nil {
		return nil, fatal(err)
	}
	committed = true
	s.log.DebugContext(ctx, "settlement state", "from", string(state), "to", string(domain.SettlementCommitted))
	state = domain.SettlementCommitted
	return order, nil
}

// createOrder inserts the order header, regenerating the id with a suffix
// while it collides with an existing order.
func (s *CheckoutService) createOrder(ctx context.Context, tx r.SettlementTx, order *domain.Order, now time.Time) error {
	for attempt := 0; attempt <= maxOrderIDSuffix; attempt++ {
		order.ID = domain.NewOrderID(now, order.UserID, attempt)
		err := tx.CreateOrder(ctx, order)
		if err == nil {
			return nil
		}
		if !errors.Is(err, r.ErrDuplicateOrder) {
			return fatal(err)
		}
		s.log.DebugContext(ctx, "order id taken, trying next suffix", "order_id", order.ID)
	}
	return fatal(ErrOrderIDExhausted)
}

func (s *CheckoutService) transition(ctx context.Context, state *domain.SettlementState, next domain.SettlementState) error {
	if !state.CanTransitionTo(next) {
		return fatal(fmt.Errorf("%w: %s -> %s", IllegalTransitionError, *state, next))
	}
	if *state != next {
		s.log.DebugContext(ctx, "settlement state", "from", string(*state), "to", string(next))
	}
	*state = next
	return nil
}

func (s *CheckoutService) rollback(ctx context.Context, tx r.SettlementTx, state *domain.SettlementState) {
	if err := tx.Rollback(); err != nil {
		s.log.ErrorContext(ctx, "settlement rollback failed", "error", err)
	}
	if *state != domain.SettlementRolledBack {
		s.log.DebugContext(ctx, "settlement state", "from", string(*state), "to", string(domain.SettlementRolledBack))
	}
	*state = domain.SettlementRolledBack
}

// cleanupCart removes the settled products from the cart. The order is
// already committed, so a failure is only logged.
func (s *CheckoutService) cleanupCart(ctx context.Context, order *domain.Order) {
	ids := make([]int64, len(order.Items))
	for i, item := range order.Items {
		ids[i] = item.ProductID
	}

	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CleanupTimeout)
	defer cancel()

	if err := s.store.RemoveProducts(cleanupCtx, order.UserID, ids); err != nil {
		s.log.ErrorContext(ctx, "cart cleanup after settlement failed",
			"order_id", order.ID,
			"user_id", order.UserID,
			"error", err)
	}
}
