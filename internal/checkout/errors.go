package checkout

import (
	"errors"
	"fmt"
)

var (
	ErrEmptySelection    = errors.New("no selected products to settle")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrProductNotFound   = errors.New("product not found")
	ErrSettlementFailed  = errors.New("settlement failed")

	ErrReservationContention = errors.New("stock kept changing, reservation gave up")
	ErrOrderIDExhausted      = errors.New("no free order id")
	ErrInvalidPayMethod      = errors.New("invalid pay method")
	ErrOrderNotFound         = errors.New("order not found")
	IllegalTransitionError   = errors.New("illegal transition of settlement state")
)

type Kind int

const (
	KindEmptySelection Kind = iota + 1
	KindInsufficientStock
	KindProductNotFound
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindEmptySelection:
		return "EMPTY_SELECTION"
	case KindInsufficientStock:
		return "INSUFFICIENT_STOCK"
	case KindProductNotFound:
		return "PRODUCT_NOT_FOUND"
	case KindFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// SettlementError is returned by SettleOrder. Every kind but KindFatal is a
// business rejection the shopper can act on.
type SettlementError struct {
	Kind      Kind
	ProductID int64
	Requested int64
	Available int64
	Err       error
}

func (e *SettlementError) Error() string {
	switch e.Kind {
	case KindInsufficientStock:
		return fmt.Sprintf("product %d: requested %d, available %d: %v", e.ProductID, e.Requested, e.Available, ErrInsufficientStock)
	case KindProductNotFound:
		return fmt.Sprintf("product %d: %v", e.ProductID, ErrProductNotFound)
	case KindEmptySelection:
		return ErrEmptySelection.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%v: %v", ErrSettlementFailed, e.Err)
	}
	return ErrSettlementFailed.Error()
}

func (e *SettlementError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the package sentinels against the kind.
func (e *SettlementError) Is(target error) bool {
	switch target {
	case ErrEmptySelection:
		return e.Kind == KindEmptySelection
	case ErrInsufficientStock:
		return e.Kind == KindInsufficientStock
	case ErrProductNotFound:
		return e.Kind == KindProductNotFound
	case ErrSettlementFailed:
		return e.Kind == KindFatal
	}
	return false
}

// IsRejection reports whether err is a business rejection rather than a
// failure of the system.
func IsRejection(err error) bool {
	var se *SettlementError
	return errors.As(err, &se) && se.Kind != KindFatal
}

func fatal(err error) *SettlementError {
	return &SettlementError{Kind: KindFatal, Err: err}
}
