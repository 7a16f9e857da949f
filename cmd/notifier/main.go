package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/MikeMC777/motodetail-shop/internal/config"
	"github.com/MikeMC777/motodetail-shop/internal/events"
	"github.com/MikeMC777/motodetail-shop/internal/notify"
	"github.com/MikeMC777/motodetail-shop/internal/redisx"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &notify.Service{
		Redis:   rdb,
		Sender:  notify.LogSender{},
		Service: cfg.ServiceName + "-notifier",
		Store:   cfg.StoreName,
	}
	topics := []string{events.TopicOrderPaid, events.TopicPaymentFailed}
	cons := events.NewConsumer(cfg.KafkaBrokers, cfg.NotifyGroup, topics)

	log.Printf("notifier consumer started: group=%s topics=%v", cfg.NotifyGroup, topics)
	if err := cons.Start(ctx, svc.HandleMessage); err != nil {
		log.Fatalf("consumer exit: %v", err)
	}
	log.Println("notifier stopped")
}
