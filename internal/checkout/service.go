// Package checkout turns a cart into an order and dispatches it to WhatsApp or
// to the hosted payment provider.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/motodetail-shop/internal/customer"
	"github.com/MikeMC777/motodetail-shop/internal/money"
	"github.com/MikeMC777/motodetail-shop/internal/order"
	"github.com/MikeMC777/motodetail-shop/internal/payment"
	"github.com/MikeMC777/motodetail-shop/internal/product"
)

var (
	ErrEmptyCart      = errors.New("cart is empty")
	ErrInvalidForm    = errors.New("invalid customer data")
	ErrEmailRequired  = errors.New("email is required for card and pix payments")
	ErrInvalidMethod  = errors.New("invalid payment method")
	ErrInvalidItem    = errors.New("invalid cart item")
	ErrOutOfStock     = errors.New("item out of stock")
	ErrPriceChanged   = errors.New("prices changed")
	ErrUnknownProduct = errors.New("product no longer available")
)

type Catalog interface {
	GetByID(ctx context.Context, id int64) (*product.Product, error)
}

type Customers interface {
	Get(ctx context.Context, id int64) (*customer.Customer, error)
}

type Orders interface {
	Create(ctx context.Context, o *order.Order, items []order.Item) error
	AttachSession(ctx context.Context, id int64, sessionID string) error
}

type Options struct {
	StoreName       string
	WhatsAppNumber  string
	Currency        string
	PublicBaseURL   string
	PixExpiresAfter time.Duration
	ProviderTimeout time.Duration
	// SessionTTL closes hosted sessions before the sweeper cancels orders that never got one.
	SessionTTL time.Duration
}

type Service struct {
	catalog   Catalog
	customers Customers
	orders    Orders
	provider  payment.Provider
	opts      Options
	now       func() time.Time
}

var validate = validator.New()

func NewService(catalog Catalog, customers Customers, orders Orders, provider payment.Provider, opts Options) *Service {
	if opts.Currency == "" {
		opts.Currency = "brl"
	}
	if opts.ProviderTimeout <= 0 {
		opts.ProviderTimeout = 20 * time.Second
	}
	switch {
	case opts.SessionTTL <= 0:
	case opts.SessionTTL < payment.MinSessionTTL:
		opts.SessionTTL = payment.MinSessionTTL
	case opts.SessionTTL > payment.MaxSessionTTL:
		opts.SessionTTL = payment.MaxSessionTTL
	}
	return &Service{
		catalog:   catalog,
		customers: customers,
		orders:    orders,
		provider:  provider,
		opts:      opts,
		now:       time.Now,
	}
}

// WhatsApp stores a pending order and returns the message and deep link for it.
func (s *Service) WhatsApp(ctx context.Context, req Request) (*WhatsAppResponse, error) {
	req.Method = order.MethodWhatsApp
	snap, items, total, customerID, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	msg := Message(s.opts.StoreName, snap, items, total)
	o := &order.Order{
		CustomerID:      customerID,
		Status:          order.StatusPending,
		Total:           total,
		Customer:        snap,
		WhatsAppMessage: msg,
		PaymentMethod:   order.MethodWhatsApp,
		PaymentStatus:   order.PaymentPending,
	}
	if err := s.orders.Create(ctx, o, items); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	log.Printf("[checkout] order=%d whatsapp total=%s", o.ID, total.StringFixed(2))
	return &WhatsAppResponse{
		OrderID:     o.ID,
		Message:     msg,
		WhatsAppURL: WhatsAppURL(s.opts.WhatsAppNumber, msg),
	}, nil
}

// Session stores an awaiting_payment order and opens a hosted payment session
// for it. If the provider fails the order stays awaiting_payment and the
// returned error wraps payment.ErrProvider.
func (s *Service) Session(ctx context.Context, req Request) (*SessionResponse, error) {
	if !req.Method.ViaProvider() {
		return nil, ErrInvalidMethod
	}
	snap, items, total, customerID, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	o := &order.Order{
		CustomerID:    customerID,
		Status:        order.StatusAwaitingPayment,
		Total:         total,
		Customer:      snap,
		PaymentMethod: req.Method,
		PaymentStatus: order.PaymentPending,
	}
	// Taken before the insert so the session closes no later than the order turns stale.
	started := s.now()
	if err := s.orders.Create(ctx, o, items); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	sreq := payment.SessionRequest{
		OrderID:       o.ID,
		Method:        req.Method,
		Currency:      s.opts.Currency,
		CustomerEmail: snap.Email,
		Metadata: map[string]string{
			"customer_name":  snap.Name,
			"customer_phone": snap.Phone,
			"customer_email": snap.Email,
		},
		SuccessURL: fmt.Sprintf("%s/pedido/sucesso?order_id=%d&session_id={CHECKOUT_SESSION_ID}", s.opts.PublicBaseURL, o.ID),
		CancelURL:  fmt.Sprintf("%s/carrinho?order_id=%d", s.opts.PublicBaseURL, o.ID),
	}
	if s.opts.SessionTTL > 0 {
		sreq.ExpiresAt = started.Add(s.opts.SessionTTL)
	}
	if req.Method == order.MethodPix {
		sreq.ExpiresAfter = s.opts.PixExpiresAfter
	}
	for _, it := range items {
		sreq.Lines = append(sreq.Lines, payment.LineItem{
			Name:       it.Name,
			UnitAmount: money.ToMinorUnits(it.Price),
			Quantity:   int64(it.Quantity),
		})
	}

	pctx, cancel := context.WithTimeout(ctx, s.opts.ProviderTimeout)
	defer cancel()
	sess, err := s.provider.CreateSession(pctx, sreq)
	if err != nil {
		log.Printf("[checkout] order=%d create session: %v", o.ID, err)
		if !errors.Is(err, payment.ErrProvider) {
			err = fmt.Errorf("%w: %v", payment.ErrProvider, err)
		}
		return nil, err
	}
	// The session carries the order id in its metadata, so the webhook can
	// still settle the order if this write is lost.
	if err := s.orders.AttachSession(ctx, o.ID, sess.ID); err != nil {
		log.Printf("[checkout] order=%d attach session %s: %v", o.ID, sess.ID, err)
	}
	log.Printf("[checkout] order=%d %s session=%s total=%s", o.ID, req.Method, sess.ID, total.StringFixed(2))
	return &SessionResponse{OrderID: o.ID, CheckoutURL: sess.URL, SessionID: sess.ID}, nil
}

// prepare validates the request and prices it from the catalog. Nothing is
// written before it succeeds.
func (s *Service) prepare(ctx context.Context, req Request) (order.Snapshot, []order.Item, decimal.Decimal, *int64, error) {
	if err := Precheck(req); err != nil {
		return order.Snapshot{}, nil, decimal.Zero, nil, err
	}
	snap, err := s.customerSnapshot(ctx, req)
	if err != nil {
		return snap, nil, decimal.Zero, nil, err
	}
	if req.Method.ViaProvider() && snap.Email == "" {
		return snap, nil, decimal.Zero, nil, ErrEmailRequired
	}

	items, err := s.price(ctx, req.Items)
	if err != nil {
		return snap, nil, decimal.Zero, nil, err
	}
	total := order.Total(items)
	if strings.TrimSpace(req.Total) != "" {
		claimed, err := money.Parse(req.Total)
		if err != nil {
			return snap, nil, decimal.Zero, nil, fmt.Errorf("%w: total: %v", ErrInvalidItem, err)
		}
		if !claimed.Equal(total) {
			return snap, nil, decimal.Zero, nil, fmt.Errorf("%w: cart says %s, catalog says %s", ErrPriceChanged, claimed.StringFixed(2), total.StringFixed(2))
		}
	}
	return snap, items, total, req.CustomerID, nil
}

// ValidateForm checks a guest form: name of at least 2 characters, phone of
// at least 10, email well formed when present.
func ValidateForm(f CustomerForm) error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidForm, err)
	}
	return nil
}

// Precheck runs the checks that need neither the catalog nor the customer
// store, so a client can reject a submission before any network call.
func Precheck(req Request) error {
	if !req.Method.Valid() {
		return ErrInvalidMethod
	}
	if len(req.Items) == 0 {
		return ErrEmptyCart
	}
	if req.CustomerID != nil {
		return nil
	}
	f := trimForm(req.Customer)
	if err := ValidateForm(f); err != nil {
		return err
	}
	if req.Method.ViaProvider() && f.Email == "" {
		return ErrEmailRequired
	}
	return nil
}

func trimForm(f CustomerForm) CustomerForm {
	f.Name = strings.TrimSpace(f.Name)
	f.Phone = strings.TrimSpace(f.Phone)
	f.Email = strings.TrimSpace(f.Email)
	f.Address = strings.TrimSpace(f.Address)
	return f
}

func (s *Service) customerSnapshot(ctx context.Context, req Request) (order.Snapshot, error) {
	f := trimForm(req.Customer)
	if req.CustomerID == nil {
		return order.Snapshot{Name: f.Name, Phone: f.Phone, Email: f.Email, Address: f.Address}, nil
	}

	c, err := s.customers.Get(ctx, *req.CustomerID)
	if errors.Is(err, customer.ErrNotFound) {
		return order.Snapshot{}, fmt.Errorf("%w: unknown customer %d", ErrInvalidForm, *req.CustomerID)
	}
	if err != nil {
		return order.Snapshot{}, err
	}
	snap := order.Snapshot{Name: c.Name, Phone: c.Phone, Email: c.Email, Address: c.Address}
	if f.Address != "" {
		snap.Address = f.Address
	}
	return snap, nil
}

func (s *Service) price(ctx context.Context, lines []LineRequest) ([]order.Item, error) {
	items := make([]order.Item, 0, len(lines))
	for _, l := range lines {
		if l.ProductID <= 0 || l.Quantity < 1 {
			return nil, fmt.Errorf("%w: product=%d quantity=%d", ErrInvalidItem, l.ProductID, l.Quantity)
		}
		p, err := s.catalog.GetByID(ctx, l.ProductID)
		if errors.Is(err, product.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrUnknownProduct, l.ProductID)
		}
		if err != nil {
			return nil, err
		}
		it := order.Item{
			ProductID: &p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  l.Quantity,
		}
		inStock := p.InStock
		if l.VariationID != nil {
			v := p.Variation(*l.VariationID)
			if v == nil {
				return nil, fmt.Errorf("%w: variation %d of product %d", ErrUnknownProduct, *l.VariationID, p.ID)
			}
			vid := v.ID
			it.VariationID = &vid
			it.Name = p.Name + " (" + v.Label + ")"
			it.Price = v.Price
			inStock = v.InStock
		}
		if !inStock {
			return nil, fmt.Errorf("%w: %s", ErrOutOfStock, it.Name)
		}
		items = append(items, it)
	}
	return items, nil
}
