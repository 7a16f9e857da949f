package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/MikeMC777/motodetail-shop/internal/order"
	"github.com/MikeMC777/motodetail-shop/internal/redisx"
)

// StatusCache keeps settled payment states in Redis. A nil cache or a Redis
// error behaves like a miss; the database stays the source of truth.
type StatusCache struct {
	rdb *redis.Client
}

func NewStatusCache(rdb *redis.Client) *StatusCache { return &StatusCache{rdb: rdb} }

func (c *StatusCache) Get(ctx context.Context, orderID int64) (order.PaymentState, bool) {
	if c == nil {
		return order.PaymentState{}, false
	}
	b, err := c.rdb.Get(ctx, fmt.Sprintf(redisx.KeyOrderStatus, orderID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("[payment] status cache get order=%d: %v", orderID, err)
		}
		return order.PaymentState{}, false
	}
	var st order.PaymentState
	if err := json.Unmarshal(b, &st); err != nil {
		return order.PaymentState{}, false
	}
	return st, true
}

var errStaleStatus = errors.New("status changed since read")

// Version returns the invalidation counter of the order's entry. Read it
// before loading the order and pass it to Set. ok is false when Redis cannot
// tell, and then nothing should be cached.
func (c *StatusCache) Version(ctx context.Context, orderID int64) (int64, bool) {
	if c == nil {
		return 0, false
	}
	v, err := c.rdb.Get(ctx, fmt.Sprintf(redisx.KeyOrderStatusVersion, orderID)).Int64()
	switch {
	case errors.Is(err, redis.Nil):
		return 0, true
	case err != nil:
		log.Printf("[payment] status cache version order=%d: %v", orderID, err)
		return 0, false
	}
	return v, true
}

// Set caches st only once it is settled, and only if no Invalidate ran since
// version was read; otherwise st may already be stale.
func (c *StatusCache) Set(ctx context.Context, st order.PaymentState, version int64) {
	if c == nil || !st.Status.Settled() {
		return
	}
	b, _ := json.Marshal(st)
	key := fmt.Sprintf(redisx.KeyOrderStatus, st.OrderID)
	vkey := fmt.Sprintf(redisx.KeyOrderStatusVersion, st.OrderID)
	err := c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		v, err := tx.Get(ctx, vkey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if v != version {
			return errStaleStatus
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, b, redisx.TTLStatusCache)
			return nil
		})
		return err
	}, vkey)
	switch {
	case err == nil, errors.Is(err, errStaleStatus), errors.Is(err, redis.TxFailedErr):
	default:
		log.Printf("[payment] status cache set order=%d: %v", st.OrderID, err)
	}
}

// Invalidate drops the entry and bumps its version so in-flight readers do not re-cache it.
func (c *StatusCache) Invalidate(ctx context.Context, orderID int64) {
	if c == nil {
		return
	}
	vkey := fmt.Sprintf(redisx.KeyOrderStatusVersion, orderID)
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, vkey)
		p.Expire(ctx, vkey, redisx.TTLStatusVersion)
		p.Del(ctx, fmt.Sprintf(redisx.KeyOrderStatus, orderID))
		return nil
	})
	if err != nil {
		log.Printf("[payment] status cache invalidate order=%d: %v", orderID, err)
	}
}
