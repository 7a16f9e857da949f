package order

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	MethodWhatsApp PaymentMethod = "whatsapp"
	MethodCard     PaymentMethod = "card"
	MethodPix      PaymentMethod = "pix"
)

func (m PaymentMethod) Valid() bool {
	return m == MethodWhatsApp || m == MethodCard || m == MethodPix
}

// ViaProvider reports whether the method is paid through the hosted payment provider.
func (m PaymentMethod) ViaProvider() bool {
	return m == MethodCard || m == MethodPix
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// Snapshot is the customer contact captured when the order is placed.
type Snapshot struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

type Order struct {
	ID              int64           `json:"id"`
	CustomerID      *int64          `json:"customer_id,omitempty"`
	Status          Status          `json:"status"`
	Total           decimal.Decimal `json:"total"`
	Customer        Snapshot        `json:"customer"`
	WhatsAppMessage string          `json:"whatsapp_message,omitempty"`
	PaymentMethod   PaymentMethod   `json:"payment_method"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	SessionID       string          `json:"session_id,omitempty"`
	PaymentIntentID string          `json:"payment_intent_id,omitempty"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Item is a line of an order. Name and price are copies taken at checkout;
// ProductID goes nil if the product is deleted later.
type Item struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	ProductID   *int64          `json:"product_id,omitempty"`
	VariationID *int64          `json:"variation_id,omitempty"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
}

func (it Item) Subtotal() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// Total sums price x quantity over items.
func Total(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Subtotal())
	}
	return sum
}

// Detail is an order with its lines.
type Detail struct {
	Order Order  `json:"order"`
	Items []Item `json:"items"`
}

// PaymentState is what the payment-status poll returns.
type PaymentState struct {
	OrderID       int64         `json:"order_id"`
	Status        Status        `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
}

// Paid reports whether the payment went through, including orders an operator
// already moved on to fulfilment.
func (s PaymentState) Paid() bool {
	if s.Status == StatusCancelled || s.Status == StatusRefunded {
		return false
	}
	return s.PaymentStatus == PaymentPaid || s.Status.PaidOrLater()
}

func (o *Order) PaymentState() PaymentState {
	return PaymentState{OrderID: o.ID, Status: o.Status, PaymentStatus: o.PaymentStatus}
}
