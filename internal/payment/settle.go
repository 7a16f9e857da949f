package payment

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/MikeMC777/motodetail-shop/internal/order"
)

// OrderStore is the part of order.Repository the payment flow writes through.
type OrderStore interface {
	GetByID(ctx context.Context, id int64) (*order.Order, []order.Item, error)
	MarkPaid(ctx context.Context, id int64, paymentIntentID string, paidAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, id int64) (bool, error)
	Transition(ctx context.Context, id int64, from, to order.Status) (bool, error)
	ListStale(ctx context.Context, status order.Status, createdBefore time.Time, limit int) ([]order.Order, error)
}

// Notifier receives the one-time side effects of a settled payment.
type Notifier interface {
	OrderPaid(ctx context.Context, o *order.Order, items []order.Item)
	PaymentFailed(ctx context.Context, o *order.Order, reason string)
}

// Outcome is provider truth about one order, from a webhook or a session read.
type Outcome struct {
	OrderID         int64
	Result          Result
	PaymentIntentID string
	Reason          string
	Source          string
}

// Settler applies outcomes. Applying the same outcome twice changes nothing
// and notifies once: only the writer whose guarded update matched fires effects.
type Settler struct {
	orders OrderStore
	notify Notifier
	cache  *StatusCache
	now    func() time.Time
}

func NewSettler(orders OrderStore, notify Notifier, cache *StatusCache) *Settler {
	return &Settler{orders: orders, notify: notify, cache: cache, now: time.Now}
}

// Apply reports whether this call changed the order.
func (s *Settler) Apply(ctx context.Context, out Outcome) (bool, error) {
	if out.Result == ResultNone {
		return false, nil
	}
	cur, _, err := s.orders.GetByID(ctx, out.OrderID)
	if errors.Is(err, order.ErrNotFound) {
		return false, ErrUnknownOrder
	}
	if err != nil {
		return false, err
	}

	var applied bool
	switch out.Result {
	case ResultPaid:
		if cur.Status == order.StatusPaid {
			return false, nil
		}
		applied, err = s.orders.MarkPaid(ctx, out.OrderID, out.PaymentIntentID, s.now().UTC())
	case ResultFailed:
		if cur.Status.Settled() {
			return false, nil
		}
		applied, err = s.orders.MarkFailed(ctx, out.OrderID)
	}
	if err != nil {
		return false, err
	}
	if !applied {
		if out.Result == ResultPaid && cur.Status == order.StatusCancelled {
			log.Printf("[payment] order=%d paid after cancellation (source=%s), refund needed", out.OrderID, out.Source)
		} else {
			log.Printf("[payment] order=%d %s from %s was a no-op (status=%s)", out.OrderID, out.Result, out.Source, cur.Status)
		}
		return false, nil
	}
	s.cache.Invalidate(ctx, out.OrderID)
	log.Printf("[payment] order=%d -> %s (source=%s)", out.OrderID, out.Result, out.Source)

	o, items, err := s.orders.GetByID(ctx, out.OrderID)
	if err != nil {
		log.Printf("[payment] order=%d reload for notification: %v", out.OrderID, err)
		return true, nil
	}
	if s.notify != nil {
		switch out.Result {
		case ResultPaid:
			s.notify.OrderPaid(ctx, o, items)
		case ResultFailed:
			s.notify.PaymentFailed(ctx, o, out.Reason)
		}
	}
	return true, nil
}
