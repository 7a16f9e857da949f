// Package webhook receives signed payment provider callbacks.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/MikeMC777/motodetail-shop/internal/payment"
	"github.com/MikeMC777/motodetail-shop/internal/redisx"
)

// SignatureHeader carries the provider signature over the raw body.
const SignatureHeader = "Stripe-Signature"

const maxBody = 64 << 10

type Applier interface {
	Apply(ctx context.Context, out payment.Outcome) (bool, error)
}

type Receiver struct {
	provider payment.Provider
	settler  Applier
	rdb      *redis.Client
}

// NewReceiver builds the receiver. rdb may be nil, which disables event dedup;
// settlement is idempotent on its own.
func NewReceiver(provider payment.Provider, settler Applier, rdb *redis.Client) *Receiver {
	return &Receiver{provider: provider, settler: settler, rdb: rdb}
}

// Handle answers 2xx only once the outcome is persisted or known to be
// irrelevant. Anything transient is a 5xx so the provider redelivers.
//
// @Summary     Payment provider webhook
// @Tags        webhooks
// @Accept      json
// @Produce     json
// @Param       Stripe-Signature header string true "provider signature"
// @Success     200 {object} map[string]any
// @Failure     400 {object} map[string]string
// @Failure     413 {object} map[string]string
// @Failure     500 {object} map[string]string
// @Router      /webhooks/stripe [post]
func (r *Receiver) Handle(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBody+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read body"})
		return
	}
	if len(body) > maxBody {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "body too large"})
		return
	}

	ev, err := r.provider.ParseEvent(body, c.GetHeader(SignatureHeader))
	if err != nil {
		log.Printf("[webhook] rejected: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	ctx := c.Request.Context()
	if r.seen(ctx, ev.ID) {
		log.Printf("[webhook] event=%s already processed", ev.ID)
		c.JSON(http.StatusOK, gin.H{"received": true, "duplicate": true})
		return
	}
	if ev.Result == payment.ResultNone {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	applied, err := r.settler.Apply(ctx, payment.Outcome{
		OrderID:         ev.OrderID,
		Result:          ev.Result,
		PaymentIntentID: ev.PaymentIntentID,
		Reason:          ev.Reason,
		Source:          "webhook:" + ev.Type,
	})
	switch {
	case errors.Is(err, payment.ErrUnknownOrder):
		log.Printf("[webhook] event=%s type=%s references unknown order=%d, ignored", ev.ID, ev.Type, ev.OrderID)
	case err != nil:
		log.Printf("[webhook] event=%s order=%d apply: %v", ev.ID, ev.OrderID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "temporary failure"})
		return
	}
	r.remember(ctx, ev.ID)
	log.Printf("[webhook] event=%s type=%s order=%d applied=%t", ev.ID, ev.Type, ev.OrderID, applied)
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (r *Receiver) seen(ctx context.Context, eventID string) bool {
	if r.rdb == nil || eventID == "" {
		return false
	}
	ok, err := redisx.Exists(ctx, r.rdb, fmt.Sprintf(redisx.KeyWebhookEvent, eventID))
	if err != nil {
		log.Printf("[webhook] dedup lookup event=%s: %v", eventID, err)
		return false
	}
	return ok
}

func (r *Receiver) remember(ctx context.Context, eventID string) {
	if r.rdb == nil || eventID == "" {
		return
	}
	if err := r.rdb.Set(ctx, fmt.Sprintf(redisx.KeyWebhookEvent, eventID), "1", redisx.TTLWebhook).Err(); err != nil {
		log.Printf("[webhook] dedup store event=%s: %v", eventID, err)
	}
}
