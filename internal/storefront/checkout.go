package storefront

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/MikeMC777/motodetail-shop/internal/cart"
	"github.com/MikeMC777/motodetail-shop/internal/checkout"
	"github.com/MikeMC777/motodetail-shop/internal/order"
)

var ErrBusy = errors.New("checkout already in progress")

// Opener shows a URL to the buyer: a new browser tab for WhatsApp, a full
// redirect for the hosted payment page.
type Opener interface {
	Open(url string) error
}

type Result struct {
	OrderID     int64
	Method      order.PaymentMethod
	Message     string
	URL         string
	CartCleared bool
}

// Checkout submits the cart. At most one submission is in flight.
type Checkout struct {
	api    Backend
	cart   *cart.Store
	opener Opener
	mu     sync.Mutex
}

func NewCheckout(api Backend, c *cart.Store, opener Opener) *Checkout {
	return &Checkout{api: api, cart: c, opener: opener}
}

// Submit validates locally, then creates the order. A WhatsApp order clears
// the cart at once; a card or PIX order leaves it for the Watcher to clear
// when the payment is confirmed.
func (c *Checkout) Submit(ctx context.Context, form checkout.CustomerForm, customerID *int64, method order.PaymentMethod) (*Result, error) {
	if !c.mu.TryLock() {
		return nil, ErrBusy
	}
	defer c.mu.Unlock()

	req := checkout.Request{
		CustomerID: customerID,
		Customer:   form,
		Method:     method,
		Total:      c.cart.Total().StringFixed(2),
	}
	for _, it := range c.cart.Items() {
		req.Items = append(req.Items, checkout.LineRequest{
			ProductID:   it.ProductID,
			VariationID: it.VariationID,
			Quantity:    it.Quantity,
		})
	}
	if err := checkout.Precheck(req); err != nil {
		return nil, err
	}

	if method == order.MethodWhatsApp {
		res, err := c.api.CheckoutWhatsApp(ctx, req)
		if err != nil {
			return nil, err
		}
		if err := c.opener.Open(res.WhatsAppURL); err != nil {
			log.Printf("[checkout] open whatsapp link: %v", err)
		}
		c.cart.Clear()
		return &Result{OrderID: res.OrderID, Method: method, Message: res.Message, URL: res.WhatsAppURL, CartCleared: true}, nil
	}

	res, err := c.api.CheckoutSession(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := c.opener.Open(res.CheckoutURL); err != nil {
		return nil, err
	}
	return &Result{OrderID: res.OrderID, Method: method, URL: res.CheckoutURL}, nil
}
