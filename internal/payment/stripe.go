package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/MikeMC777/motodetail-shop/internal/order"
)

const metaOrderID = "order_id"

// Stripe implements Provider with Stripe Checkout.
type Stripe struct {
	sc            *client.API
	webhookSecret string
}

func NewStripe(secretKey, webhookSecret string) *Stripe {
	return &Stripe{sc: client.New(secretKey, nil), webhookSecret: webhookSecret}
}

func (s *Stripe) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	orderID := strconv.FormatInt(req.OrderID, 10)
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{string(req.Method)}),
		SuccessURL:         stripe.String(req.SuccessURL),
		CancelURL:          stripe.String(req.CancelURL),
		ClientReferenceID:  stripe.String(orderID),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{metaOrderID: orderID},
		},
	}
	params.Context = ctx
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.AddMetadata(metaOrderID, orderID)
	for _, l := range req.Lines {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(req.Currency),
				UnitAmount:  stripe.Int64(l.UnitAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{Name: stripe.String(l.Name)},
			},
			Quantity: stripe.Int64(l.Quantity),
		})
	}
	if !req.ExpiresAt.IsZero() {
		params.ExpiresAt = stripe.Int64(req.ExpiresAt.Unix())
	}
	if req.Method == order.MethodPix && req.ExpiresAfter > 0 {
		params.PaymentMethodOptions = &stripe.CheckoutSessionPaymentMethodOptionsParams{
			Pix: &stripe.CheckoutSessionPaymentMethodOptionsPixParams{
				ExpiresAfterSeconds: stripe.Int64(int64(req.ExpiresAfter.Seconds())),
			},
		}
	}

	cs, err := s.sc.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: create session: %v", ErrProvider, err)
	}
	return toSession(cs), nil
}

func (s *Stripe) GetSession(ctx context.Context, id string) (*Session, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	cs, err := s.sc.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("%w: get session %s: %v", ErrProvider, id, err)
	}
	return toSession(cs), nil
}

func (s *Stripe) ParseEvent(payload []byte, signature string) (*Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return decodeEvent(ev)
}

func decodeEvent(ev stripe.Event) (*Event, error) {
	out := &Event{ID: ev.ID, Type: string(ev.Type)}
	switch ev.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded,
		stripe.EventTypeCheckoutSessionAsyncPaymentFailed,
		stripe.EventTypeCheckoutSessionExpired:
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &cs); err != nil {
			return nil, fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		sess := toSession(&cs)
		out.OrderID = sess.OrderID
		out.SessionID = sess.ID
		out.PaymentIntentID = sess.PaymentIntentID
		switch ev.Type {
		case stripe.EventTypeCheckoutSessionCompleted:
			// PIX completes unpaid and settles later through async_payment_*.
			if sess.Paid {
				out.Result = ResultPaid
			}
		case stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
			out.Result = ResultPaid
		case stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
			out.Result, out.Reason = ResultFailed, "async payment failed"
		case stripe.EventTypeCheckoutSessionExpired:
			out.Result, out.Reason = ResultFailed, "session expired"
		}
	case stripe.EventTypePaymentIntentSucceeded:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		out.OrderID = parseOrderID(pi.Metadata[metaOrderID])
		out.PaymentIntentID = pi.ID
		if out.OrderID != 0 {
			out.Result = ResultPaid
		}
	}
	return out, nil
}

func toSession(cs *stripe.CheckoutSession) *Session {
	s := &Session{
		ID:      cs.ID,
		URL:     cs.URL,
		OrderID: parseOrderID(cs.Metadata[metaOrderID]),
		State:   SessionState(cs.Status),
		Paid:    cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
	}
	if s.OrderID == 0 {
		s.OrderID = parseOrderID(cs.ClientReferenceID)
	}
	if cs.PaymentIntent != nil {
		s.PaymentIntentID = cs.PaymentIntent.ID
	}
	return s
}

func parseOrderID(s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}
