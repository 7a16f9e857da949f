package payment

import (
	"context"
	"log"
	"time"

	"github.com/MikeMC777/motodetail-shop/internal/order"
)

// Sweeper resolves provider orders stuck in awaiting_payment: orders whose
// session was never created are cancelled, the rest are synced with the provider.
type Sweeper struct {
	orders     OrderStore
	reconciler *Reconciler
	interval   time.Duration
	staleAfter time.Duration
	batch      int
	now        func() time.Time
}

func NewSweeper(orders OrderStore, reconciler *Reconciler, interval, staleAfter time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		orders:     orders,
		reconciler: reconciler,
		interval:   interval,
		staleAfter: staleAfter,
		batch:      50,
		now:        time.Now,
	}
}

func (s *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	log.Printf("[sweeper] started interval=%s stale_after=%s", s.interval, s.staleAfter)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[sweeper] stopped")
			return
		case <-t.C:
			if err := s.Sweep(ctx); err != nil {
				log.Printf("[sweeper] sweep: %v", err)
			}
		}
	}
}

func (s *Sweeper) Sweep(ctx context.Context) error {
	stale, err := s.orders.ListStale(ctx, order.StatusAwaitingPayment, s.now().Add(-s.staleAfter), s.batch)
	if err != nil {
		return err
	}
	for i := range stale {
		o := &stale[i]
		if o.SessionID == "" {
			ok, err := s.orders.Transition(ctx, o.ID, order.StatusAwaitingPayment, order.StatusCancelled)
			if err != nil {
				log.Printf("[sweeper] cancel order=%d: %v", o.ID, err)
				continue
			}
			if ok {
				log.Printf("[sweeper] order=%d cancelled, no payment session", o.ID)
			}
			continue
		}
		if _, err := s.reconciler.Sync(ctx, o); err != nil {
			log.Printf("[sweeper] sync order=%d: %v", o.ID, err)
		}
	}
	return nil
}
