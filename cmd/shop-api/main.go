// @title        MotoDetail Shop API
// @version      1.0
// @description  Catalog, checkout (WhatsApp, card, PIX) and payment status of the MotoDetail storefront.
// @BasePath     /api/v1
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/MikeMC777/motodetail-shop/docs"
	"github.com/MikeMC777/motodetail-shop/internal/checkout"
	"github.com/MikeMC777/motodetail-shop/internal/config"
	"github.com/MikeMC777/motodetail-shop/internal/customer"
	"github.com/MikeMC777/motodetail-shop/internal/events"
	"github.com/MikeMC777/motodetail-shop/internal/httpx"
	"github.com/MikeMC777/motodetail-shop/internal/order"
	"github.com/MikeMC777/motodetail-shop/internal/payment"
	"github.com/MikeMC777/motodetail-shop/internal/postgres"
	"github.com/MikeMC777/motodetail-shop/internal/product"
	"github.com/MikeMC777/motodetail-shop/internal/redisx"
	"github.com/MikeMC777/motodetail-shop/internal/webhook"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.RunMigrations {
		if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	producer := events.NewProducer(cfg.KafkaBrokers, cfg.ServiceName, 1024)
	producer.Start()
	defer producer.Close()

	stripe := payment.NewStripe(cfg.StripeSecretKey, cfg.StripeWebhookSecret)

	products := product.NewPGRepo(db)
	orders := order.NewPGRepo(db)
	customers := customer.NewService(customer.NewPGRepo(db))

	cache := payment.NewStatusCache(rdb)
	settler := payment.NewSettler(orders, producer, cache)
	reconciler := payment.NewReconciler(orders, stripe, settler, cache, rdb)
	sweeper := payment.NewSweeper(orders, reconciler, cfg.SweepInterval, cfg.StaleAfter)
	checkouts := checkout.NewService(products, customers, orders, stripe, checkout.Options{
		StoreName:       cfg.StoreName,
		WhatsAppNumber:  cfg.WhatsAppNumber,
		Currency:        cfg.Currency,
		PublicBaseURL:   cfg.PublicBaseURL,
		PixExpiresAfter: cfg.PixExpiresAfter,
		ProviderTimeout: cfg.ProviderTimeout,
		SessionTTL:      cfg.StaleAfter,
	})
	receiver := webhook.NewReceiver(stripe, settler, rdb)

	r := gin.New()
	r.Use(gin.Recovery(), httpx.RequestID(), httpx.Logger())
	r.GET("/healthz", healthz)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api/v1")
	api.GET("/products", listProductsHandler(products))
	api.GET("/products/:id", getProductHandler(products))

	api.POST("/customers", registerCustomerHandler(customers))
	api.POST("/customers/login", loginHandler(customers))
	api.GET("/customers/:id", getCustomerHandler(customers))
	api.GET("/customers/:id/orders", listCustomerOrdersHandler(orders))

	api.POST("/checkout/whatsapp", checkoutWhatsAppHandler(checkouts))
	api.POST("/checkout/session", checkoutSessionHandler(checkouts))
	api.GET("/orders/:id", getOrderHandler(orders))
	api.GET("/orders/:id/payment-status", paymentStatusHandler(reconciler))
	api.POST("/webhooks/stripe", receiver.Handle)

	admin := api.Group("/admin", httpx.AdminToken(cfg.AdminToken))
	admin.POST("/products", createProductHandler(products))
	admin.PUT("/products/:id", updateProductHandler(products))
	admin.POST("/products/:id/variations", addVariationHandler(products))
	admin.GET("/orders", adminListOrdersHandler(orders))
	admin.PUT("/orders/:id/status", adminUpdateStatusHandler(orders, cache, producer))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("shop-api listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down shop-api...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	// the sweeper may still settle an order; the deferred producer.Close must come after it.
	wg.Wait()
}
