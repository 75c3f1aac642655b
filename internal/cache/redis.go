package cache

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/redis/go-redis/v9"
)

const selectAllAttempts = 3

func NewRedisCartStore(client *redis.Client, ttl time.Duration) *RedisCartStore {
	return &RedisCartStore{
		client: client,
		ttl:    ttl,
	}
}

type RedisCartStore struct {
	client *redis.Client
	ttl    time.Duration // zero keeps carts forever
}

func (r *RedisCartStore) ReadAll(ctx context.Context, userID int64) (*domain.CartSnapshot, error) {
	var quantities *redis.MapStringStringCmd
	var selected *redis.StringSliceCmd

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		quantities = pipe.HGetAll(ctx, cacheKey(userID))
		selected = pipe.SMembers(ctx, selectedKey(userID))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis read cart failed: %w", err)
	}

	snapshot := domain.NewCartSnapshot()
	for field, value := range quantities.Val() {
		productID, err1 := strconv.ParseInt(field, 10, 64)
		count, err2 := strconv.ParseInt(value, 10, 64)
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("%w: field %q value %q", ErrCorruptCart, field, value)
		}
		snapshot.Quantities[productID] = count
	}
	for _, member := range selected.Val() {
		productID, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: selected member %q", ErrCorruptCart, member)
		}
		snapshot.Selected[productID] = true
	}
	return snapshot, nil
}

func (r *RedisCartStore) Apply(ctx context.Context, userID int64, batch *Batch) error {
	if batch == nil || batch.Len() == 0 {
		return nil
	}
	qtyKey, selKey := cacheKey(userID), selectedKey(userID)

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, op := range batch.ops {
			field := strconv.FormatInt(op.productID, 10)
			switch op.kind {
			case opSetQuantity:
				pipe.HSet(ctx, qtyKey, field, op.value)
			case opIncrementQuantity:
				pipe.HIncrBy(ctx, qtyKey, field, op.value)
			case opSelect:
				pipe.SAdd(ctx, selKey, field)
			case opDeselect:
				pipe.SRem(ctx, selKey, field)
			case opRemoveProduct:
				pipe.HDel(ctx, qtyKey, field)
				pipe.SRem(ctx, selKey, field)
			}
		}
		r.expire(ctx, pipe, qtyKey, selKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis apply cart batch failed: %w", err)
	}
	return nil
}

func (r *RedisCartStore) SetQuantity(ctx context.Context, userID, productID, quantity int64) error {
	return r.Apply(ctx, userID, NewBatch().SetQuantity(productID, quantity))
}

func (r *RedisCartStore) IncrementQuantity(ctx context.Context, userID, productID, delta int64) error {
	return r.Apply(ctx, userID, NewBatch().IncrementQuantity(productID, delta))
}

func (r *RedisCartStore) Select(ctx context.Context, userID, productID int64) error {
	return r.Apply(ctx, userID, NewBatch().Select(productID))
}

func (r *RedisCartStore) Deselect(ctx context.Context, userID, productID int64) error {
	return r.Apply(ctx, userID, NewBatch().Deselect(productID))
}

func (r *RedisCartStore) RemoveProduct(ctx context.Context, userID, productID int64) error {
	return r.Apply(ctx, userID, NewBatch().RemoveProduct(productID))
}

func (r *RedisCartStore) RemoveProducts(ctx context.Context, userID int64, productIDs []int64) error {
	batch := NewBatch()
	for _, id := range productIDs {
		batch.RemoveProduct(id)
	}
	return r.Apply(ctx, userID, batch)
}

// SelectAll marks every product in the quantity mapping as selected (or not).
// The mapping is watched so a concurrent write makes the call retry.
func (r *RedisCartStore) SelectAll(ctx context.Context, userID int64, selected bool) error {
	qtyKey, selKey := cacheKey(userID), selectedKey(userID)

	txf := func(tx *redis.Tx) error {
		fields, err := tx.HKeys(ctx, qtyKey).Result()
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			return nil
		}
		members := make([]interface{}, len(fields))
		for i, f := range fields {
			members[i] = f
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if selected {
				pipe.SAdd(ctx, selKey, members...)
			} else {
				pipe.SRem(ctx, selKey, members...)
			}
			r.expire(ctx, pipe, qtyKey, selKey)
			return nil
		})
		return err
	}

	for i := 0; i < selectAllAttempts; i++ {
		err := r.client.Watch(ctx, txf, qtyKey)
		if err == nil {
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return fmt.Errorf("redis select all failed: %w", err)
		}
	}
	return ErrCartBusy
}

func (r *RedisCartStore) expire(ctx context.Context, pipe redis.Pipeliner, keys ...string) {
	if r.ttl <= 0 {
		return
	}
	jitter := time.Duration(rand.Int63n(int64(r.ttl)/10 + 1))
	for _, key := range keys {
		pipe.Expire(ctx, key, r.ttl+jitter)
	}
}

func cacheKey(userID int64) string {
	return fmt.Sprintf("cart:%d", userID)
}

func selectedKey(userID int64) string {
	return fmt.Sprintf("cart_selected:%d", userID)
}
