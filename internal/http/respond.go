package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fjod/go_cart/internal/cart"
	"github.com/fjod/go_cart/internal/checkout"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ProductID int64  `json:"product_id,omitempty"`
	Requested int64  `json:"requested,omitempty"`
	Available int64  `json:"available,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Default().Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleCartError maps cart mutation errors to HTTP responses.
func handleCartError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cart.ErrInvalidCount):
		respondError(w, http.StatusBadRequest, "invalid_count", err.Error())
	case errors.Is(err, cart.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "product_not_found", err.Error())
	case errors.Is(err, cart.ErrInsufficientStock):
		respondError(w, http.StatusConflict, "insufficient_stock", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// handleSettlementError turns business rejections into 409/422 with a code
// the client can act on. Anything else stays opaque.
func handleSettlementError(w http.ResponseWriter, err error) {
	if errors.Is(err, checkout.ErrInvalidPayMethod) {
		respondError(w, http.StatusBadRequest, "invalid_pay_method", err.Error())
		return
	}
	if errors.Is(err, checkout.ErrOrderNotFound) {
		respondError(w, http.StatusNotFound, "order_not_found", err.Error())
		return
	}

	var se *checkout.SettlementError
	if !errors.As(err, &se) || se.Kind == checkout.KindFatal {
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	resp := ErrorResponse{
		Error:     se.Error(),
		ProductID: se.ProductID,
		Requested: se.Requested,
		Available: se.Available,
	}
	status := http.StatusConflict
	switch se.Kind {
	case checkout.KindEmptySelection:
		status = http.StatusUnprocessableEntity
		resp.Code = "empty_selection"
	case checkout.KindInsufficientStock:
		resp.Code = "insufficient_stock"
	case checkout.KindProductNotFound:
		status = http.StatusUnprocessableEntity
		resp.Code = "product_not_found"
	}
	respondJSON(w, status, resp)
}
