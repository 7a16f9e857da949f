package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MikeMC777/motodetail-shop/internal/order"
)

// memOrders mirrors the guarded updates of order.PGRepo in memory.
type memOrders struct {
	mu     sync.Mutex
	orders map[int64]*order.Order
	items  map[int64][]order.Item
	// afterGet, if set, runs after every GetByID with the lock released.
	afterGet func(id int64)
}

func newMemOrders() *memOrders {
	return &memOrders{orders: map[int64]*order.Order{}, items: map[int64][]order.Item{}}
}

func (m *memOrders) put(o order.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.PaymentStatus == "" {
		o.PaymentStatus = order.PaymentPending
	}
	if o.Total.IsZero() {
		o.Total = decimal.RequireFromString("45.90")
	}
	m.orders[o.ID] = &o
	m.items[o.ID] = []order.Item{{ID: 1, OrderID: o.ID, Name: "Cera", Price: o.Total, Quantity: 1}}
}

func (m *memOrders) status(id int64) order.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id].Status
}

func (m *memOrders) GetByID(_ context.Context, id int64) (*order.Order, []order.Item, error) {
	m.mu.Lock()
	o, ok := m.orders[id]
	if !ok {
		m.mu.Unlock()
		return nil, nil, order.ErrNotFound
	}
	cp := *o
	items := append([]order.Item(nil), m.items[id]...)
	hook := m.afterGet
	m.mu.Unlock()
	if hook != nil {
		hook(id)
	}
	return &cp, items, nil
}

func in(s order.Status, set []order.Status) bool {
	for _, x := range set {
		if s == x {
			return true
		}
	}
	return false
}

func (m *memOrders) MarkPaid(_ context.Context, id int64, pi string, paidAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || !in(o.Status, order.PaidFrom) {
		return false, nil
	}
	o.Status, o.PaymentStatus = order.StatusPaid, order.PaymentPaid
	if pi != "" {
		o.PaymentIntentID = pi
	}
	if o.PaidAt == nil {
		o.PaidAt = &paidAt
	}
	return true, nil
}

func (m *memOrders) MarkFailed(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || !in(o.Status, order.FailedFrom) {
		return false, nil
	}
	o.Status, o.PaymentStatus = order.StatusPaymentFailed, order.PaymentFailed
	return true, nil
}

func (m *memOrders) Transition(_ context.Context, id int64, from, to order.Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

func (m *memOrders) ListStale(_ context.Context, status order.Status, before time.Time, limit int) ([]order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []order.Order
	for _, o := range m.orders {
		if o.Status == status && o.CreatedAt.Before(before) && len(out) < limit {
			out = append(out, *o)
		}
	}
	return out, nil
}

type fakeProvider struct {
	mu       sync.Mutex
	sessions map[string]*Session
	gets     int
	err      error
}

func newFakeProvider() *fakeProvider { return &fakeProvider{sessions: map[string]*Session{}} }

func (f *fakeProvider) set(s Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.ID] = &s
}

func (f *fakeProvider) getCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

func (f *fakeProvider) CreateSession(_ context.Context, req SessionRequest) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	s := &Session{ID: fmt.Sprintf("cs_%d", req.OrderID), URL: "https://pay.test/" + fmt.Sprint(req.OrderID), OrderID: req.OrderID, State: SessionOpen}
	f.sessions[s.ID] = s
	return s, nil
}

func (f *fakeProvider) GetSession(_ context.Context, id string) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: no session %s", ErrProvider, id)
	}
	cp := *s
	return &cp, nil
}

func (f *fakeProvider) ParseEvent([]byte, string) (*Event, error) {
	return nil, ErrInvalidSignature
}

type recNotifier struct {
	mu     sync.Mutex
	paid   []int64
	failed []int64
}

func (r *recNotifier) OrderPaid(_ context.Context, o *order.Order, _ []order.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paid = append(r.paid, o.ID)
}

func (r *recNotifier) PaymentFailed(_ context.Context, o *order.Order, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, o.ID)
}

func (r *recNotifier) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paid), len(r.failed)
}
