// Package storefront is the buyer side of checkout: it talks to shop-api,
// keeps the local cart in step with the payment outcome and polls the
// payment status after the provider redirects back.
package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MikeMC777/motodetail-shop/internal/checkout"
	"github.com/MikeMC777/motodetail-shop/internal/order"
	"github.com/MikeMC777/motodetail-shop/internal/product"
)

var ErrNotFound = errors.New("not found")

// APIError is a non-2xx answer from shop-api.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("shop-api %d: %s", e.Status, e.Message)
}

// Backend is the part of shop-api the storefront uses.
type Backend interface {
	Product(ctx context.Context, id int64) (*product.Product, error)
	CheckoutWhatsApp(ctx context.Context, req checkout.Request) (*checkout.WhatsAppResponse, error)
	CheckoutSession(ctx context.Context, req checkout.Request) (*checkout.SessionResponse, error)
	PaymentStatus(ctx context.Context, orderID int64) (order.PaymentState, error)
	Order(ctx context.Context, orderID int64) (*order.Detail, error)
}

type API struct {
	HTTP    *http.Client
	BaseURL string
}

func NewAPI(baseURL string) *API {
	return &API{
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		BaseURL: strings.TrimRight(baseURL, "/") + "/api/v1",
	}
}

func (a *API) Product(ctx context.Context, id int64) (*product.Product, error) {
	var p product.Product
	if err := a.do(ctx, http.MethodGet, fmt.Sprintf("/products/%d", id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (a *API) CheckoutWhatsApp(ctx context.Context, req checkout.Request) (*checkout.WhatsAppResponse, error) {
	var out checkout.WhatsAppResponse
	if err := a.do(ctx, http.MethodPost, "/checkout/whatsapp", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) CheckoutSession(ctx context.Context, req checkout.Request) (*checkout.SessionResponse, error) {
	var out checkout.SessionResponse
	if err := a.do(ctx, http.MethodPost, "/checkout/session", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) PaymentStatus(ctx context.Context, orderID int64) (order.PaymentState, error) {
	var st order.PaymentState
	err := a.do(ctx, http.MethodGet, fmt.Sprintf("/orders/%d/payment-status", orderID), nil, &st)
	return st, err
}

func (a *API) Order(ctx context.Context, orderID int64) (*order.Detail, error) {
	var d order.Detail
	if err := a.do(ctx, http.MethodGet, fmt.Sprintf("/orders/%d", orderID), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (a *API) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := a.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case res.StatusCode >= 300:
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(res.Body).Decode(&e)
		if e.Error == "" {
			e.Error = res.Status
		}
		return &APIError{Status: res.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}
