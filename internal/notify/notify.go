// Package notify sends the one-time customer message for a settled payment.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/MikeMC777/motodetail-shop/internal/events"
	"github.com/MikeMC777/motodetail-shop/internal/money"
	"github.com/MikeMC777/motodetail-shop/internal/redisx"
)

type Notification struct {
	OrderID int64
	Name    string
	Email   string
	Phone   string
	Subject string
	Body    string
}

type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// LogSender writes notifications to the process log.
type LogSender struct{}

func (LogSender) Send(_ context.Context, n Notification) error {
	log.Printf("[notify] order=%d to=%s <%s> subject=%q\n%s", n.OrderID, n.Name, n.Email, n.Subject, n.Body)
	return nil
}

type Service struct {
	Redis   *redis.Client
	Sender  Sender
	Service string
	Store   string
}

// HandleMessage is an events.Handler. An event id is remembered only after
// the message went out, so a failed send is retried and a redelivered
// event is not sent twice.
func (s *Service) HandleMessage(ctx context.Context, m kafka.Message) error {
	var env events.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		log.Printf("[notify] skip undecodable message offset=%d: %v", m.Offset, err)
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, s.Service, env.EventID)
	if done, err := redisx.Exists(ctx, s.Redis, dkey); err != nil {
		return fmt.Errorf("dedup lookup: %w", err)
	} else if done {
		return nil
	}

	var (
		n   Notification
		err error
	)
	switch env.EventType {
	case events.EventOrderPaid:
		n, err = s.paid(env.Payload)
	case events.EventPaymentFailed:
		n, err = s.failed(env.Payload)
	default:
		return nil
	}
	if err != nil {
		log.Printf("[notify] skip event=%s: %v", env.EventID, err)
		return nil
	}

	if err := s.Sender.Send(ctx, n); err != nil {
		return fmt.Errorf("send order=%d: %w", n.OrderID, err)
	}
	if err := s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err(); err != nil {
		log.Printf("[notify] dedup store event=%s: %v", env.EventID, err)
	}
	return nil
}

func (s *Service) paid(raw json.RawMessage) (Notification, error) {
	p, err := events.UnwrapPayload[events.OrderPaidPayload](raw)
	if err != nil {
		return Notification{}, err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Olá %s, recebemos o pagamento do pedido #%d.\n\n", p.Customer.Name, p.OrderID)
	for _, it := range p.Items {
		fmt.Fprintf(&b, "%dx %s - %s\n", it.Quantity, it.Name, brl(it.Price))
	}
	fmt.Fprintf(&b, "\nTotal: %s\n", brl(p.Total))
	return Notification{
		OrderID: p.OrderID,
		Name:    p.Customer.Name,
		Email:   p.Customer.Email,
		Phone:   p.Customer.Phone,
		Subject: fmt.Sprintf("%s: pedido #%d confirmado", s.Store, p.OrderID),
		Body:    b.String(),
	}, nil
}

func (s *Service) failed(raw json.RawMessage) (Notification, error) {
	p, err := events.UnwrapPayload[events.PaymentFailedPayload](raw)
	if err != nil {
		return Notification{}, err
	}
	return Notification{
		OrderID: p.OrderID,
		Name:    p.Customer.Name,
		Email:   p.Customer.Email,
		Phone:   p.Customer.Phone,
		Subject: fmt.Sprintf("%s: pagamento do pedido #%d não concluído", s.Store, p.OrderID),
		Body: fmt.Sprintf("Olá %s, o pagamento de %s do pedido #%d não foi concluído. Seu carrinho continua salvo para tentar de novo.\n",
			p.Customer.Name, brl(p.Total), p.OrderID),
	}, nil
}

func brl(s string) string {
	d, err := money.Parse(s)
	if err != nil {
		return s
	}
	return money.BRL(d)
}
