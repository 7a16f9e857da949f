package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeMC777/motodetail-shop/internal/order"
	"github.com/MikeMC777/motodetail-shop/internal/payment"
	"github.com/MikeMC777/motodetail-shop/internal/redisx"
)

const secret = "whsec_test"

type memOrders struct {
	mu     sync.Mutex
	orders map[int64]*order.Order
	writes int
}

func (m *memOrders) GetByID(_ context.Context, id int64) (*order.Order, []order.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil, nil
}

func (m *memOrders) MarkPaid(_ context.Context, id int64, pi string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.orders[id]
	if o.Status != order.StatusAwaitingPayment && o.Status != order.StatusPending && o.Status != order.StatusPaymentFailed {
		return false, nil
	}
	m.writes++
	o.Status, o.PaymentStatus, o.PaymentIntentID, o.PaidAt = order.StatusPaid, order.PaymentPaid, pi, &at
	return true, nil
}

func (m *memOrders) MarkFailed(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.orders[id]
	if o.Status != order.StatusAwaitingPayment && o.Status != order.StatusPending {
		return false, nil
	}
	m.writes++
	o.Status, o.PaymentStatus = order.StatusPaymentFailed, order.PaymentFailed
	return true, nil
}

func (m *memOrders) Transition(context.Context, int64, order.Status, order.Status) (bool, error) {
	return false, errors.New("not used")
}

func (m *memOrders) ListStale(context.Context, order.Status, time.Time, int) ([]order.Order, error) {
	return nil, nil
}

type countingNotifier struct{ paid, failed int }

func (n *countingNotifier) OrderPaid(context.Context, *order.Order, []order.Item) { n.paid++ }
func (n *countingNotifier) PaymentFailed(context.Context, *order.Order, string)   { n.failed++ }

type failingApplier struct{ calls int }

func (f *failingApplier) Apply(context.Context, payment.Outcome) (bool, error) {
	f.calls++
	return false, errors.New("db down")
}

func sign(payload []byte, key string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(key))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func completedEvent(eventID string, orderID int64) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"object":"event","type":"checkout.session.completed","data":{"object":`+
		`{"id":"cs_%d","object":"checkout.session","status":"complete","payment_status":"paid","payment_intent":"pi_%d","metadata":{"order_id":"%d"}}}}`,
		eventID, orderID, orderID, orderID))
}

type harness struct {
	router *gin.Engine
	store  *memOrders
	notify *countingNotifier
	mr     *miniredis.Miniredis
}

func newHarness(t *testing.T, applier Applier) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	rdb := redisx.New(mr.Addr())
	t.Cleanup(func() { _ = rdb.Close() })

	h := &harness{
		store:  &memOrders{orders: map[int64]*order.Order{42: {ID: 42, Status: order.StatusAwaitingPayment, PaymentMethod: order.MethodCard}}},
		notify: &countingNotifier{},
		mr:     mr,
	}
	if applier == nil {
		applier = payment.NewSettler(h.store, h.notify, nil)
	}
	recv := NewReceiver(payment.NewStripe("sk_test", secret), applier, rdb)
	h.router = gin.New()
	h.router.POST("/webhooks/stripe", recv.Handle)
	return h
}

func (h *harness) post(payload []byte, sig string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set(SignatureHeader, sig)
	h.router.ServeHTTP(w, req)
	return w
}

func TestWebhook_InvalidSignatureChangesNothing(t *testing.T) {
	h := newHarness(t, nil)
	payload := completedEvent("evt_bad", 42)

	w := h.post(payload, sign(payload, "whsec_attacker"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	assert.Equal(t, order.StatusAwaitingPayment, h.store.orders[42].Status)
	assert.Zero(t, h.store.writes)
	assert.False(t, h.mr.Exists("webhook:evt:evt_bad"))

	w = h.post(payload, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhook_PaidAppliedOnceAcrossRedeliveries(t *testing.T) {
	h := newHarness(t, nil)
	payload := completedEvent("evt_1", 42)

	for i := 0; i < 3; i++ {
		w := h.post(payload, sign(payload, secret))
		if w.Code != http.StatusOK {
			t.Fatalf("delivery %d: status=%d body=%s", i, w.Code, w.Body.String())
		}
	}
	o := h.store.orders[42]
	assert.Equal(t, order.StatusPaid, o.Status)
	assert.Equal(t, "pi_42", o.PaymentIntentID)
	require.NotNil(t, o.PaidAt)
	assert.Equal(t, 1, h.store.writes)
	assert.Equal(t, 1, h.notify.paid)
	assert.True(t, h.mr.Exists("webhook:evt:evt_1"))
}

func TestWebhook_DifferentEventSamePaymentIsNoop(t *testing.T) {
	h := newHarness(t, nil)
	first := completedEvent("evt_a", 42)
	second := completedEvent("evt_b", 42)

	require.Equal(t, http.StatusOK, h.post(first, sign(first, secret)).Code)
	paidAt := *h.store.orders[42].PaidAt
	require.Equal(t, http.StatusOK, h.post(second, sign(second, secret)).Code)

	assert.Equal(t, paidAt, *h.store.orders[42].PaidAt)
	assert.Equal(t, 1, h.notify.paid)
}

func TestWebhook_UnknownOrderIsAcknowledged(t *testing.T) {
	h := newHarness(t, nil)
	payload := completedEvent("evt_x", 777)

	w := h.post(payload, sign(payload, secret))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	assert.Zero(t, h.store.writes)
}

func TestWebhook_TransientFailureIsNotAcknowledged(t *testing.T) {
	applier := &failingApplier{}
	h := newHarness(t, applier)
	payload := completedEvent("evt_retry", 42)

	w := h.post(payload, sign(payload, secret))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	assert.False(t, h.mr.Exists("webhook:evt:evt_retry"))

	// The redelivery is processed again rather than short-circuited.
	_ = h.post(payload, sign(payload, secret))
	assert.Equal(t, 2, applier.calls)
}

func TestWebhook_IgnoredEventTypeIsAcknowledged(t *testing.T) {
	h := newHarness(t, nil)
	payload := []byte(`{"id":"evt_c","object":"event","type":"customer.created","data":{"object":{"id":"cus_1","object":"customer"}}}`)

	w := h.post(payload, sign(payload, secret))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, h.store.writes)
}
