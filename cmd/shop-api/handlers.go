package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/motodetail-shop/internal/checkout"
	"github.com/MikeMC777/motodetail-shop/internal/customer"
	"github.com/MikeMC777/motodetail-shop/internal/httpx"
	"github.com/MikeMC777/motodetail-shop/internal/money"
	"github.com/MikeMC777/motodetail-shop/internal/order"
	"github.com/MikeMC777/motodetail-shop/internal/payment"
	"github.com/MikeMC777/motodetail-shop/internal/product"
)

type checkoutService interface {
	WhatsApp(ctx context.Context, req checkout.Request) (*checkout.WhatsAppResponse, error)
	Session(ctx context.Context, req checkout.Request) (*checkout.SessionResponse, error)
}

type customerService interface {
	Register(ctx context.Context, in customer.RegisterRequest) (*customer.Customer, error)
	Authenticate(ctx context.Context, in customer.LoginRequest) (*customer.Customer, error)
	Get(ctx context.Context, id int64) (*customer.Customer, error)
}

type paymentStatusReader interface {
	PaymentState(ctx context.Context, orderID int64) (order.PaymentState, error)
}

// mapErrorToStatus turns domain errors into an HTTP status and the message
// shown to the caller. Unexpected errors are logged and hidden.
func mapErrorToStatus(err error) (int, string) {
	switch {
	case errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, checkout.ErrInvalidForm),
		errors.Is(err, checkout.ErrEmailRequired),
		errors.Is(err, checkout.ErrInvalidMethod),
		errors.Is(err, checkout.ErrInvalidItem),
		errors.Is(err, customer.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, customer.ErrInvalidCredentials):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, customer.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, checkout.ErrOutOfStock),
		errors.Is(err, checkout.ErrPriceChanged),
		errors.Is(err, checkout.ErrUnknownProduct),
		errors.Is(err, customer.ErrAlreadyExist),
		errors.Is(err, errIllegalTransition):
		return http.StatusConflict, err.Error()
	case errors.Is(err, payment.ErrProvider):
		return http.StatusBadGateway, "payment provider unavailable, try again"
	default:
		log.Printf("[http] internal error: %v", err)
		return http.StatusInternalServerError, "internal error"
	}
}

func fail(c *gin.Context, err error) {
	status, msg := mapErrorToStatus(err)
	httpx.Error(c, status, msg)
}

func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Error(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func page(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

//
// ===== Catalog =====
//

// @Summary  List products
// @Tags     products
// @Produce  json
// @Param    q      query string false "search in name/description"
// @Param    limit  query int    false "page size"
// @Param    offset query int    false "offset"
// @Success  200 {object} product.ListResponse
// @Router   /products [get]
func listProductsHandler(repo product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := page(c)
		q := strings.TrimSpace(c.Query("q"))
		items, err := repo.List(c.Request.Context(), product.Query{Q: q, Limit: limit, Offset: offset})
		if err != nil {
			fail(c, err)
			return
		}
		if items == nil {
			items = []product.Product{}
		}
		c.JSON(http.StatusOK, product.ListResponse{Q: q, Limit: limit, Offset: offset, Items: items})
	}
}

// @Summary  Get product with variations
// @Tags     products
// @Produce  json
// @Param    id path int true "product id"
// @Success  200 {object} product.Product
// @Failure  404 {object} product.HTTPError
// @Router   /products/{id} [get]
func getProductHandler(repo product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		p, err := repo.GetByID(c.Request.Context(), id)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// @Summary  Create product
// @Tags     admin
// @Accept   json
// @Produce  json
// @Param    X-Admin-Token header string true "admin token"
// @Param    body body product.CreateProductRequest true "product"
// @Success  201 {object} product.Product
// @Failure  400 {object} product.HTTPError
// @Router   /admin/products [post]
func createProductHandler(repo product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in product.CreateProductRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			httpx.Error(c, http.StatusBadRequest, "invalid json")
			return
		}
		in.Name = strings.TrimSpace(in.Name)
		price, err := money.Parse(in.Price)
		if in.Name == "" || err != nil {
			httpx.Error(c, http.StatusBadRequest, "name and a non-negative price are required")
			return
		}
		p := &product.Product{
			Name:        in.Name,
			Description: in.Description,
			Price:       price,
			InStock:     in.InStock == nil || *in.InStock,
			ImageURL:    in.ImageURL,
		}
		if err := repo.Create(c.Request.Context(), p); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, p)
	}
}

// @Summary  Update product
// @Tags     admin
// @Accept   json
// @Produce  json
// @Param    X-Admin-Token header string true "admin token"
// @Param    id   path int true "product id"
// @Param    body body product.UpdateProductRequest true "fields to change"
// @Success  200 {object} product.Product
// @Failure  404 {object} product.HTTPError
// @Router   /admin/products/{id} [put]
func updateProductHandler(repo product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var in product.UpdateProductRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			httpx.Error(c, http.StatusBadRequest, "invalid json")
			return
		}
		p, err := repo.GetByID(c.Request.Context(), id)
		if err != nil {
			fail(c, err)
			return
		}
		if in.Name != "" {
			p.Name = strings.TrimSpace(in.Name)
		}
		if in.Description != "" {
			p.Description = in.Description
		}
		if in.ImageURL != "" {
			p.ImageURL = in.ImageURL
		}
		if in.Price != "" {
			if p.Price, err = money.Parse(in.Price); err != nil {
				httpx.Error(c, http.StatusBadRequest, "invalid price")
				return
			}
		}
		if in.InStock != nil {
			p.InStock = *in.InStock
		}
		if err := repo.Update(c.Request.Context(), p); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// @Summary  Add a variation to a product
// @Tags     admin
// @Accept   json
// @Produce  json
// @Param    X-Admin-Token header string true "admin token"
// @Param    id   path int true "product id"
// @Param    body body product.CreateVariationRequest true "variation"
// @Success  201 {object} product.Variation
// @Router   /admin/products/{id}/variations [post]
func addVariationHandler(repo product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var in product.CreateVariationRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			httpx.Error(c, http.StatusBadRequest, "invalid json")
			return
		}
		price, err := money.Parse(in.Price)
		if strings.TrimSpace(in.Label) == "" || err != nil {
			httpx.Error(c, http.StatusBadRequest, "label and a non-negative price are required")
			return
		}
		v := &product.Variation{
			ProductID: id,
			Label:     strings.TrimSpace(in.Label),
			Price:     price,
			InStock:   in.InStock == nil || *in.InStock,
		}
		if err := repo.AddVariation(c.Request.Context(), v); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, v)
	}
}

//
// ===== Customers =====
//

// @Summary  Register customer
// @Tags     customers
// @Accept   json
// @Produce  json
// @Param    body body customer.RegisterRequest true "account"
// @Success  201 {object} customer.Customer
// @Failure  400 {object} product.HTTPError
// @Failure  409 {object} product.HTTPError
// @Router   /customers [post]
func registerCustomerHandler(svc customerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in customer.RegisterRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			httpx.Error(c, http.StatusBadRequest, "invalid json")
			return
		}
		cu, err := svc.Register(c.Request.Context(), in)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, cu)
	}
}

// @Summary  Authenticate customer
// @Tags     customers
// @Accept   json
// @Produce  json
// @Param    body body customer.LoginRequest true "credentials"
// @Success  200 {object} customer.Customer
// @Failure  401 {object} product.HTTPError
// @Router   /customers/login [post]
func loginHandler(svc customerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in customer.LoginRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			httpx.Error(c, http.StatusBadRequest, "invalid json")
			return
		}
		cu, err := svc.Authenticate(c.Request.Context(), in)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, cu)
	}
}

// @Summary  Get customer
// @Tags     customers
// @Produce  json
// @Param    id path int true "customer id"
// @Success  200 {object} customer.Customer
// @Router   /customers/{id} [get]
func getCustomerHandler(svc customerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		cu, err := svc.Get(c.Request.Context(), id)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, cu)
	}
}

// @Summary  List a customer's orders, newest first
// @Tags     customers
// @Produce  json
// @Param    id     path  int true  "customer id"
// @Param    limit  query int false "page size"
// @Param    offset query int false "offset"
// @Success  200 {object} order.ListResponse
// @Router   /customers/{id}/orders [get]
func listCustomerOrdersHandler(repo order.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		limit, offset := page(c)
		items, err := repo.ListByCustomer(c.Request.Context(), id, limit, offset)
		if err != nil {
			fail(c, err)
			return
		}
		if items == nil {
			items = []order.Order{}
		}
		c.JSON(http.StatusOK, order.ListResponse{Limit: limit, Offset: offset, Items: items})
	}
}

//
// ===== Checkout and payment =====
//

// @Summary  Create a WhatsApp order
// @Tags     checkout
// @Accept   json
// @Produce  json
// @Param    body body checkout.Request true "cart and customer"
// @Success  201 {object} checkout.WhatsAppResponse
// @Failure  400 {object} product.HTTPError
// @Failure  409 {object} product.HTTPError
// @Router   /checkout/whatsapp [post]
func checkoutWhatsAppHandler(svc checkoutService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in checkout.Request
		if err := c.ShouldBindJSON(&in); err != nil {
			httpx.Error(c, http.StatusBadRequest, "invalid json")
			return
		}
		res, err := svc.WhatsApp(c.Request.Context(), in)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, res)
	}
}

// @Summary  Create a hosted payment session (card or pix)
// @Tags     checkout
// @Accept   json
// @Produce  json
// @Param    body body checkout.Request true "cart, customer and payment method"
// @Success  201 {object} checkout.SessionResponse
// @Failure  400 {object} product.HTTPError
// @Failure  409 {object} product.HTTPError
// @Failure  502 {object} product.HTTPError
// @Router   /checkout/session [post]
func checkoutSessionHandler(svc checkoutService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in checkout.Request
		if err := c.ShouldBindJSON(&in); err != nil {
			httpx.Error(c, http.StatusBadRequest, "invalid json")
			return
		}
		res, err := svc.Session(c.Request.Context(), in)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, res)
	}
}

// @Summary  Payment status of an order
// @Tags     orders
// @Produce  json
// @Param    id path int true "order id"
// @Success  200 {object} order.PaymentState
// @Failure  404 {object} product.HTTPError
// @Router   /orders/{id}/payment-status [get]
func paymentStatusHandler(rec paymentStatusReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		st, err := rec.PaymentState(c.Request.Context(), id)
		if err != nil {
			fail(c, err)
			return
		}
		c.Header("Cache-Control", "no-store")
		c.JSON(http.StatusOK, st)
	}
}

// @Summary  Order detail
// @Tags     orders
// @Produce  json
// @Param    id path int true "order id"
// @Success  200 {object} order.Detail
// @Failure  404 {object} product.HTTPError
// @Router   /orders/{id} [get]
func getOrderHandler(repo order.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		o, items, err := repo.GetByID(c.Request.Context(), id)
		if err != nil {
			fail(c, err)
			return
		}
		if items == nil {
			items = []order.Item{}
		}
		c.JSON(http.StatusOK, order.Detail{Order: *o, Items: items})
	}
}

//
// ===== Back-office =====
//

var errIllegalTransition = errors.New("status change not allowed")

// @Summary  List orders
// @Tags     admin
// @Produce  json
// @Param    X-Admin-Token header string true  "admin token"
// @Param    status        query  string false "filter by status"
// @Success  200 {object} order.ListResponse
// @Router   /admin/orders [get]
func adminListOrdersHandler(repo order.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := order.Status(c.Query("status"))
		if status != "" && !status.Valid() {
			httpx.Error(c, http.StatusBadRequest, "invalid status")
			return
		}
		limit, offset := page(c)
		items, err := repo.ListByStatus(c.Request.Context(), status, limit, offset)
		if err != nil {
			fail(c, err)
			return
		}
		if items == nil {
			items = []order.Order{}
		}
		c.JSON(http.StatusOK, order.ListResponse{Limit: limit, Offset: offset, Items: items})
	}
}

// @Summary  Change order status
// @Description Operators move orders along the fulfilment flow. Only WhatsApp orders may be set to paid here.
// @Tags     admin
// @Accept   json
// @Produce  json
// @Param    X-Admin-Token header string true "admin token"
// @Param    id   path int true "order id"
// @Param    body body order.UpdateStatusRequest true "new status"
// @Success  200 {object} order.Order
// @Failure  409 {object} product.HTTPError
// @Router   /admin/orders/{id}/status [put]
func adminUpdateStatusHandler(repo order.Repository, cache *payment.StatusCache, notify payment.Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var in order.UpdateStatusRequest
		if err := c.ShouldBindJSON(&in); err != nil || !in.Status.Valid() {
			httpx.Error(c, http.StatusBadRequest, "invalid status")
			return
		}
		ctx := c.Request.Context()
		o, items, err := repo.GetByID(ctx, id)
		if err != nil {
			fail(c, err)
			return
		}
		if !order.CanTransition(o.Status, in.Status) {
			fail(c, errIllegalTransition)
			return
		}
		if (in.Status == order.StatusPaid || in.Status == order.StatusPaymentFailed) && o.PaymentMethod.ViaProvider() {
			httpx.Error(c, http.StatusConflict, "provider payments are settled by the provider")
			return
		}
		applied, err := repo.Transition(ctx, id, o.Status, in.Status)
		if err != nil {
			fail(c, err)
			return
		}
		if !applied {
			fail(c, errIllegalTransition)
			return
		}
		cache.Invalidate(ctx, id)
		log.Printf("[http] order=%d %s -> %s by operator", id, o.Status, in.Status)

		o, items, err = repo.GetByID(ctx, id)
		if err != nil {
			fail(c, err)
			return
		}
		if in.Status == order.StatusPaid && notify != nil {
			notify.OrderPaid(ctx, o, items)
		}
		c.JSON(http.StatusOK, o)
	}
}

func healthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}
