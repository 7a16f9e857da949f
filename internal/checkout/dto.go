package checkout

import "github.com/MikeMC777/motodetail-shop/internal/order"

// LineRequest is one cart line as the client sends it. Prices are resolved
// server-side from the catalog.
type LineRequest struct {
	ProductID   int64  `json:"product_id"             example:"1"`
	VariationID *int64 `json:"variation_id,omitempty" example:"3"`
	Quantity    int    `json:"quantity"               example:"2"`
}

// CustomerForm is the guest form. For a signed-in customer only Address is read.
type CustomerForm struct {
	Name    string `json:"name"    validate:"min=2"            example:"Al"`
	Phone   string `json:"phone"   validate:"min=10"           example:"1199999999"`
	Email   string `json:"email"   validate:"omitempty,email"  example:"al@example.com"`
	Address string `json:"address"                             example:"Rua das Flores, 10"`
}

// Request creates an order from a cart.
// swagger:model CheckoutRequest
type Request struct {
	CustomerID *int64              `json:"customer_id,omitempty"`
	Customer   CustomerForm        `json:"customer"`
	Items      []LineRequest       `json:"items"`
	Total      string              `json:"total,omitempty" example:"91.80"`
	Method     order.PaymentMethod `json:"payment_method"  example:"card"`
}

// swagger:model WhatsAppResponse
type WhatsAppResponse struct {
	OrderID     int64  `json:"order_id"`
	Message     string `json:"message"`
	WhatsAppURL string `json:"whatsapp_url"`
}

// swagger:model SessionResponse
type SessionResponse struct {
	OrderID     int64  `json:"order_id"`
	CheckoutURL string `json:"checkout_url"`
	SessionID   string `json:"session_id"`
}
