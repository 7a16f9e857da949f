package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeMC777/motodetail-shop/internal/cart"
	"github.com/MikeMC777/motodetail-shop/internal/checkout"
	"github.com/MikeMC777/motodetail-shop/internal/order"
	"github.com/MikeMC777/motodetail-shop/internal/product"
)

// fakeShop serves the subset of shop-api the storefront calls.
type fakeShop struct {
	mu       sync.Mutex
	hits     int
	lastReq  checkout.Request
	statuses []order.Status // returned in sequence, last one repeats
	polls    int
}

func (f *fakeShop) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/checkout/whatsapp", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeJSON(w, http.StatusCreated, checkout.WhatsAppResponse{OrderID: 1, Message: "oi", WhatsAppURL: "https://wa.me/5511?text=oi"})
	})
	mux.HandleFunc("POST /api/v1/checkout/session", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeJSON(w, http.StatusCreated, checkout.SessionResponse{OrderID: 2, CheckoutURL: "https://pay.test/cs_2", SessionID: "cs_2"})
	})
	mux.HandleFunc("GET /api/v1/orders/{id}/payment-status", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if id == 404 {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		f.mu.Lock()
		i := f.polls
		if i >= len(f.statuses) {
			i = len(f.statuses) - 1
		}
		f.polls++
		st := f.statuses[i]
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, order.PaymentState{OrderID: id, Status: st})
	})
	mux.HandleFunc("GET /api/v1/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		writeJSON(w, http.StatusOK, order.Detail{
			Order: order.Order{ID: id, Status: order.StatusPaid, Total: decimal.RequireFromString("50.00")},
			Items: []order.Item{{OrderID: id, Name: "Cera", Price: decimal.RequireFromString("25.00"), Quantity: 2}},
		})
	})
	return mux
}

func (f *fakeShop) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits++
	_ = json.NewDecoder(r.Body).Decode(&f.lastReq)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type recOpener struct{ urls []string }

func (o *recOpener) Open(url string) error {
	o.urls = append(o.urls, url)
	return nil
}

func newCart(t *testing.T) *cart.Store {
	t.Helper()
	c := cart.Open(context.Background(), cart.NewFileStorage(t.TempDir()), "test")
	p := product.Product{ID: 1, Name: "Cera", Price: decimal.RequireFromString("25.00"), InStock: true}
	require.NoError(t, c.AddItem(p, nil))
	require.NoError(t, c.AddItem(p, nil))
	return c
}

func newShop(t *testing.T, statuses ...order.Status) (*fakeShop, *API) {
	t.Helper()
	shop := &fakeShop{statuses: statuses}
	srv := httptest.NewServer(shop.handler())
	t.Cleanup(srv.Close)
	return shop, NewAPI(srv.URL)
}

var alForm = checkout.CustomerForm{Name: "Al", Phone: "1199999999"}

func TestCheckout_WhatsAppClearsCart(t *testing.T) {
	shop, api := newShop(t, order.StatusPending)
	c := newCart(t)
	opener := &recOpener{}

	res, err := NewCheckout(api, c, opener).Submit(context.Background(), alForm, nil, order.MethodWhatsApp)
	require.NoError(t, err)

	assert.True(t, res.CartCleared)
	assert.True(t, c.Empty())
	assert.Equal(t, []string{"https://wa.me/5511?text=oi"}, opener.urls)
	require.Len(t, shop.lastReq.Items, 1)
	assert.Equal(t, 2, shop.lastReq.Items[0].Quantity)
	assert.Equal(t, "50.00", shop.lastReq.Total)
}

func TestCheckout_CardKeepsCartAndRedirects(t *testing.T) {
	_, api := newShop(t, order.StatusAwaitingPayment)
	c := newCart(t)
	opener := &recOpener{}
	form := alForm
	form.Email = "al@example.com"

	res, err := NewCheckout(api, c, opener).Submit(context.Background(), form, nil, order.MethodCard)
	require.NoError(t, err)

	assert.Equal(t, int64(2), res.OrderID)
	assert.False(t, res.CartCleared)
	assert.Equal(t, 2, c.Count())
	assert.Equal(t, []string{"https://pay.test/cs_2"}, opener.urls)
}

func TestCheckout_CardWithoutEmailNeverCallsServer(t *testing.T) {
	shop, api := newShop(t, order.StatusAwaitingPayment)
	c := newCart(t)

	_, err := NewCheckout(api, c, &recOpener{}).Submit(context.Background(), alForm, nil, order.MethodCard)
	assert.ErrorIs(t, err, checkout.ErrEmailRequired)
	assert.Zero(t, shop.hits)
	assert.Equal(t, 2, c.Count())
}

func TestCheckout_ShortNameIsRejected(t *testing.T) {
	shop, api := newShop(t, order.StatusPending)
	form := checkout.CustomerForm{Name: "A", Phone: "1199999999"}

	_, err := NewCheckout(api, newCart(t), &recOpener{}).Submit(context.Background(), form, nil, order.MethodWhatsApp)
	assert.ErrorIs(t, err, checkout.ErrInvalidForm)
	assert.Zero(t, shop.hits)
}

// blockingBackend holds CheckoutWhatsApp until release is closed.
type blockingBackend struct {
	Backend
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (b *blockingBackend) CheckoutWhatsApp(ctx context.Context, req checkout.Request) (*checkout.WhatsAppResponse, error) {
	b.calls.Add(1)
	close(b.entered)
	<-b.release
	return &checkout.WhatsAppResponse{OrderID: 1, WhatsAppURL: "https://wa.me/1"}, nil
}

func TestCheckout_SecondSubmitWhileInFlightIsRejected(t *testing.T) {
	b := &blockingBackend{entered: make(chan struct{}), release: make(chan struct{})}
	co := NewCheckout(b, newCart(t), &recOpener{})

	done := make(chan error, 1)
	go func() {
		_, err := co.Submit(context.Background(), alForm, nil, order.MethodWhatsApp)
		done <- err
	}()
	<-b.entered

	_, err := co.Submit(context.Background(), alForm, nil, order.MethodWhatsApp)
	assert.ErrorIs(t, err, ErrBusy)

	close(b.release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), b.calls.Load())
}

func TestWatcher_PaidClearsCartOnce(t *testing.T) {
	shop, api := newShop(t, order.StatusAwaitingPayment, order.StatusAwaitingPayment, order.StatusPaid)
	c := newCart(t)
	w := NewWatcher(api, c, 5*time.Millisecond, time.Second)

	var seen []order.Status
	out, err := w.Watch(context.Background(), 2, func(st order.PaymentState) { seen = append(seen, st.Status) })
	require.NoError(t, err)

	assert.True(t, out.Paid())
	assert.True(t, out.CartCleared)
	assert.True(t, c.Empty())
	require.NotNil(t, out.Detail)
	assert.Equal(t, "50.00", out.Detail.Order.Total.StringFixed(2))
	assert.Equal(t, []order.Status{order.StatusAwaitingPayment, order.StatusAwaitingPayment, order.StatusPaid}, seen)
	assert.Equal(t, 3, shop.polls)

	// A later observation of the same payment does not clear again.
	p := product.Product{ID: 9, Name: "Flanela", Price: decimal.RequireFromString("9.90"), InStock: true}
	require.NoError(t, c.AddItem(p, nil))
	out, err = w.Watch(context.Background(), 2, nil)
	require.NoError(t, err)
	assert.False(t, out.CartCleared)
	assert.Equal(t, 1, c.Count())
}

func TestWatcher_ConfirmedBeforeFirstPollCountsAsPaid(t *testing.T) {
	shop, api := newShop(t, order.StatusConfirmed)
	c := newCart(t)

	out, err := NewWatcher(api, c, 5*time.Millisecond, time.Second).Watch(context.Background(), 2, nil)
	require.NoError(t, err)
	assert.True(t, out.Paid())
	assert.True(t, out.CartCleared)
	assert.True(t, c.Empty())
	require.NotNil(t, out.Detail)
	assert.Equal(t, 1, shop.polls)
}

func TestWatcher_FailureKeepsCart(t *testing.T) {
	_, api := newShop(t, order.StatusAwaitingPayment, order.StatusPaymentFailed)
	c := newCart(t)

	out, err := NewWatcher(api, c, 5*time.Millisecond, time.Second).Watch(context.Background(), 2, nil)
	require.NoError(t, err)
	assert.False(t, out.Paid())
	assert.Equal(t, order.StatusPaymentFailed, out.State.Status)
	assert.Nil(t, out.Detail)
	assert.Equal(t, 2, c.Count())
}

func TestWatcher_GivesUpAfterTimeout(t *testing.T) {
	_, api := newShop(t, order.StatusAwaitingPayment)
	c := newCart(t)

	_, err := NewWatcher(api, c, 5*time.Millisecond, 40*time.Millisecond).Watch(context.Background(), 2, nil)
	assert.ErrorIs(t, err, ErrStillProcessing)
	assert.Equal(t, 2, c.Count())
}

func TestWatcher_StopsOnCancel(t *testing.T) {
	_, api := newShop(t, order.StatusAwaitingPayment)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := NewWatcher(api, newCart(t), 5*time.Millisecond, time.Minute).Watch(ctx, 2, nil)
	assert.True(t, errors.Is(err, context.Canceled), "err=%v", err)
}

func TestWatcher_UnknownOrder(t *testing.T) {
	_, api := newShop(t, order.StatusAwaitingPayment)
	_, err := NewWatcher(api, newCart(t), 5*time.Millisecond, time.Second).Watch(context.Background(), 404, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}
