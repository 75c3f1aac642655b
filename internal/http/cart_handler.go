package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_cart/internal/cart"
	"github.com/go-chi/chi/v5"
)

// GuestCookie carries the signed guest cart.
const GuestCookie = "cart"

type CartHandler struct {
	carts     *cart.CartService
	timeout   time.Duration
	cookieTTL time.Duration
}

func NewCartHandler(carts *cart.CartService, timeout, cookieTTL time.Duration) *CartHandler {
	return &CartHandler{
		carts:     carts,
		timeout:   timeout,
		cookieTTL: cookieTTL,
	}
}

type CartItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Count     int64 `json:"count"`
	Selected  *bool `json:"selected,omitempty"`
}

type SelectionRequestDTO struct {
	Selected bool `json:"selected"`
}

// resolve opens the authenticated cart when the request carries a user id
// and the cookie cart otherwise.
func (h *CartHandler) resolve(ctx context.Context, r *http.Request) cart.Cart {
	if userID := getUserIDFromContext(ctx); userID != 0 {
		return h.carts.ForUser(userID)
	}
	token := ""
	if c, err := r.Cookie(GuestCookie); err == nil {
		token = c.Value
	}
	return h.carts.ForGuest(ctx, token)
}

// persist writes a guest cart back into the cookie. Authenticated carts are
// already stored.
func (h *CartHandler) persist(w http.ResponseWriter, c cart.Cart) bool {
	guest, ok := c.(*cart.GuestCart)
	if !ok {
		return true
	}
	token, err := h.carts.EncodeGuest(guest)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return false
	}
	http.SetCookie(w, &http.Cookie{
		Name:     GuestCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cookieTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return true
}

func (h *CartHandler) respondCart(ctx context.Context, w http.ResponseWriter, c cart.Cart, status int) {
	views, err := h.carts.GetCart(ctx, c)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	respondJSON(w, status, views)
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	h.respondCart(ctx, w, h.resolve(ctx, r), http.StatusOK)
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	h.mutateItem(w, r, http.StatusCreated, func(ctx context.Context, c cart.Cart, req CartItemRequestDTO, selected bool) error {
		return h.carts.Add(ctx, c, req.ProductID, req.Count, selected)
	})
}

// PUT /api/v1/cart/items
func (h *CartHandler) SetItem(w http.ResponseWriter, r *http.Request) {
	h.mutateItem(w, r, http.StatusOK, func(ctx context.Context, c cart.Cart, req CartItemRequestDTO, selected bool) error {
		return h.carts.Set(ctx, c, req.ProductID, req.Count, selected)
	})
}

func (h *CartHandler) mutateItem(w http.ResponseWriter, r *http.Request, status int,
	apply func(ctx context.Context, c cart.Cart, req CartItemRequestDTO, selected bool) error) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CartItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	// new items are selected unless the client says otherwise
	selected := true
	if req.Selected != nil {
		selected = *req.Selected
	}

	c := h.resolve(ctx, r)
	if err := apply(ctx, c, req, selected); err != nil {
		handleCartError(w, err)
		return
	}
	if !h.persist(w, c) {
		return
	}
	h.respondCart(ctx, w, c, status)
}

// DELETE /api/v1/cart/items/{product_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return
	}

	c := h.resolve(ctx, r)
	if err := h.carts.Remove(ctx, c, productID); err != nil {
		handleCartError(w, err)
		return
	}
	if !h.persist(w, c) {
		return
	}
	h.respondCart(ctx, w, c, http.StatusOK)
}

// PUT /api/v1/cart/selection
func (h *CartHandler) SelectAll(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req SelectionRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	c := h.resolve(ctx, r)
	if err := h.carts.SelectAll(ctx, c, req.Selected); err != nil {
		handleCartError(w, err)
		return
	}
	if !h.persist(w, c) {
		return
	}
	h.respondCart(ctx, w, c, http.StatusOK)
}

// POST /api/v1/cart/merge
//
// Called by the login flow. The guest cookie is cleared whatever happens to
// the merge.
func (h *CartHandler) Merge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(ctx)
	if c, err := r.Cookie(GuestCookie); err == nil {
		h.carts.MergeOnLogin(ctx, userID, c.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     GuestCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	h.respondCart(ctx, w, h.carts.ForUser(userID), http.StatusOK)
}
