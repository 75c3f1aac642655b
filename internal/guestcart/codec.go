// Package guestcart encodes an anonymous shopper's cart into a signed token
// that the client keeps in a cookie.
package guestcart

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// MaxCount caps the count of a single line.
	MaxCount = 10000

	DefaultTTL = 14 * 24 * time.Hour
)

var (
	ErrMalformedToken = errors.New("malformed guest cart token")
	ErrInvalidItem    = errors.New("invalid guest cart item")
	ErrNoSecret       = errors.New("guest cart secret is empty")
)

type tokenItem struct {
	ProductID int64 `json:"product_id"`
	Count     int64 `json:"count"`
	Selected  bool  `json:"selected"`
}

type cartClaims struct {
	jwt.RegisteredClaims
	Cart []tokenItem `json:"cart"`
}

// Codec signs and verifies guest cart tokens with HS256.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewCodec(secret string, ttl time.Duration) (*Codec, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Codec{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// TTL is the token lifetime, used as the cookie max age.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

func (c *Codec) Encode(items domain.GuestItems) (string, error) {
	lines := make([]tokenItem, 0, len(items))
	for id, item := range items {
		if err := validate(id, item.Count); err != nil {
			return "", err
		}
		lines = append(lines, tokenItem{ProductID: id, Count: item.Count, Selected: item.Selected})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })

	now := c.now()
	claims := cartClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
		Cart: lines,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign guest cart: %w", err)
	}
	return signed, nil
}

// Decode verifies the token and returns its items. Every failure, including
// an expired token, is reported as ErrMalformedToken.
func (c *Codec) Decode(token string) (domain.GuestItems, error) {
	var claims cartClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	items := make(domain.GuestItems, len(claims.Cart))
	for _, line := range claims.Cart {
		if err := validate(line.ProductID, line.Count); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
		}
		if _, dup := items[line.ProductID]; dup {
			return nil, fmt.Errorf("%w: duplicate product %d", ErrMalformedToken, line.ProductID)
		}
		items[line.ProductID] = domain.GuestItem{Count: line.Count, Selected: line.Selected}
	}
	return items, nil
}

func validate(productID, count int64) error {
	if productID <= 0 {
		return fmt.Errorf("%w: product id %d", ErrInvalidItem, productID)
	}
	if count < 1 || count > MaxCount {
		return fmt.Errorf("%w: count %d for product %d", ErrInvalidItem, count, productID)
	}
	return nil
}
