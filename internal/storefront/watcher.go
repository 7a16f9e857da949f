package storefront

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/MikeMC777/motodetail-shop/internal/cart"
	"github.com/MikeMC777/motodetail-shop/internal/order"
)

var ErrStillProcessing = errors.New("payment still processing, check your orders later")

type Outcome struct {
	State order.PaymentState
	// Detail is set once the order is paid.
	Detail *order.Detail
	// CartCleared reports whether this call cleared the cart.
	CartCleared bool
}

func (o *Outcome) Paid() bool { return o.State.Paid() }

// Watcher polls the payment status of an order after the provider redirects back.
type Watcher struct {
	api      Backend
	cart     *cart.Store
	interval time.Duration
	timeout  time.Duration

	mu      sync.Mutex
	cleared map[int64]bool
}

func NewWatcher(api Backend, c *cart.Store, interval, timeout time.Duration) *Watcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Watcher{api: api, cart: c, interval: interval, timeout: timeout, cleared: map[int64]bool{}}
}

// Watch polls until the order leaves pending/awaiting_payment, the timeout
// passes (ErrStillProcessing) or ctx is cancelled. onTick, if set, sees every
// state read.
func (w *Watcher) Watch(ctx context.Context, orderID int64, onTick func(order.PaymentState)) (*Outcome, error) {
	pctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		st, err := w.api.PaymentStatus(pctx, orderID)
		switch {
		case errors.Is(err, ErrNotFound):
			return nil, err
		case err != nil:
			if pctx.Err() == nil {
				log.Printf("[reconcile] order=%d poll: %v", orderID, err)
			}
		default:
			if onTick != nil {
				onTick(st)
			}
			if st.Status.Settled() {
				return w.settle(ctx, st)
			}
		}

		select {
		case <-pctx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, ErrStillProcessing
		case <-t.C:
		}
	}
}

func (w *Watcher) settle(ctx context.Context, st order.PaymentState) (*Outcome, error) {
	out := &Outcome{State: st}
	if !out.Paid() {
		return out, nil
	}
	out.CartCleared = w.clearOnce(st.OrderID)
	d, err := w.api.Order(ctx, st.OrderID)
	if err != nil {
		log.Printf("[reconcile] order=%d detail: %v", st.OrderID, err)
		return out, nil
	}
	out.Detail = d
	return out, nil
}

func (w *Watcher) clearOnce(orderID int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cleared[orderID] {
		return false
	}
	w.cleared[orderID] = true
	w.cart.Clear()
	return true
}
