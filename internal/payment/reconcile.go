package payment

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/MikeMC777/motodetail-shop/internal/order"
	"github.com/MikeMC777/motodetail-shop/internal/redisx"
)

// Reconciler answers the payment-status poll. When the webhook has not
// arrived yet it reads the session from the provider, at most once per
// throttle window per order, and settles through the same Settler.
type Reconciler struct {
	orders   OrderStore
	provider Provider
	settler  *Settler
	cache    *StatusCache
	rdb      *redis.Client
}

func NewReconciler(orders OrderStore, provider Provider, settler *Settler, cache *StatusCache, rdb *redis.Client) *Reconciler {
	return &Reconciler{orders: orders, provider: provider, settler: settler, cache: cache, rdb: rdb}
}

// PaymentState never fails because of the provider; provider errors are
// logged and the stored state is returned.
func (r *Reconciler) PaymentState(ctx context.Context, orderID int64) (order.PaymentState, error) {
	if st, ok := r.cache.Get(ctx, orderID); ok {
		return st, nil
	}
	version, cacheable := r.cache.Version(ctx, orderID)
	o, _, err := r.orders.GetByID(ctx, orderID)
	if err != nil {
		return order.PaymentState{}, err
	}
	if r.shouldSync(o) && r.claim(ctx, o.ID) {
		applied, err := r.Sync(ctx, o)
		if err != nil {
			log.Printf("[payment] reconcile order=%d: %v", o.ID, err)
		} else if applied {
			// the Settler invalidated the entry
			version, cacheable = r.cache.Version(ctx, orderID)
			if o, _, err = r.orders.GetByID(ctx, orderID); err != nil {
				return order.PaymentState{}, err
			}
		}
	}
	st := o.PaymentState()
	if cacheable {
		r.cache.Set(ctx, st, version)
	}
	return st, nil
}

func (r *Reconciler) shouldSync(o *order.Order) bool {
	return r.provider != nil && !o.Status.Settled() && o.PaymentMethod.ViaProvider() && o.SessionID != ""
}

func (r *Reconciler) claim(ctx context.Context, orderID int64) bool {
	if r.rdb == nil {
		return true
	}
	ok, err := redisx.Claim(ctx, r.rdb, fmt.Sprintf(redisx.KeyReconcile, orderID), redisx.TTLReconcile)
	if err != nil {
		// Unthrottled while Redis is unavailable.
		return true
	}
	return ok
}

// Sync reads the order's session and applies what the provider reports.
func (r *Reconciler) Sync(ctx context.Context, o *order.Order) (bool, error) {
	sess, err := r.provider.GetSession(ctx, o.SessionID)
	if err != nil {
		return false, err
	}
	if sess.OrderID != 0 && sess.OrderID != o.ID {
		return false, fmt.Errorf("%w: session %s order=%d", ErrSessionMismatch, sess.ID, sess.OrderID)
	}
	res, reason := sess.Result()
	return r.settler.Apply(ctx, Outcome{
		OrderID:         o.ID,
		Result:          res,
		PaymentIntentID: sess.PaymentIntentID,
		Reason:          reason,
		Source:          "reconcile",
	})
}
