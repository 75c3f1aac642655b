package checkout

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSettlementError_MatchesSentinels(t *testing.T) {
	tests := []struct {
		err       *SettlementError
		sentinel  error
		rejection bool
	}{
		{&SettlementError{Kind: KindEmptySelection}, ErrEmptySelection, true},
		{&SettlementError{Kind: KindInsufficientStock, ProductID: 3, Requested: 6, Available: 5}, ErrInsufficientStock, true},
		{&SettlementError{Kind: KindProductNotFound, ProductID: 9}, ErrProductNotFound, true},
		{fatal(errors.New("boom")), ErrSettlementFailed, false},
	}

	all := []error{ErrEmptySelection, ErrInsufficientStock, ErrProductNotFound, ErrSettlementFailed}
	for _, tt := range tests {
		t.Run(tt.err.Kind.String(), func(t *testing.T) {
			wrapped := fmt.Errorf("handler: %w", tt.err)
			for _, sentinel := range all {
				assert.Equal(t, sentinel == tt.sentinel, errors.Is(wrapped, sentinel), sentinel.Error())
			}
			assert.Equal(t, tt.rejection, IsRejection(wrapped))
		})
	}
}

func TestSettlementError_Messages(t *testing.T) {
	err := &SettlementError{Kind: KindInsufficientStock, ProductID: 3, Requested: 6, Available: 5}
	assert.Equal(t, "product 3: requested 6, available 5: insufficient stock", err.Error())

	err = fatal(errors.New("boom"))
	assert.Equal(t, "settlement failed: boom", err.Error())
}

func TestSettlementError_UnwrapsCause(t *testing.T) {
	cause := errors.New("deadlock detected")
	err := fatal(cause)
	assert.ErrorIs(t, err, cause)
}

func TestIsRejection_PlainErrors(t *testing.T) {
	assert.False(t, IsRejection(nil))
	assert.False(t, IsRejection(errors.New("other")))
	assert.False(t, IsRejection(ErrInsufficientStock), "bare sentinel carries no kind")
}
