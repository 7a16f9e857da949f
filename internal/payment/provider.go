// Package payment talks to the hosted payment provider and settles orders from what it reports.
package payment

import (
	"context"
	"errors"
	"time"

	"github.com/MikeMC777/motodetail-shop/internal/order"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrProvider         = errors.New("payment provider error")
	ErrUnknownOrder     = errors.New("event references an unknown order")
	ErrSessionMismatch  = errors.New("payment session belongs to another order")
)

// LineItem is one provider line; UnitAmount is in minor units.
type LineItem struct {
	Name       string
	UnitAmount int64
	Quantity   int64
}

type SessionRequest struct {
	OrderID       int64
	Method        order.PaymentMethod
	Currency      string
	Lines         []LineItem
	CustomerEmail string
	Metadata      map[string]string
	SuccessURL    string
	CancelURL     string
	// ExpiresAfter bounds how long a PIX code stays payable. Zero keeps the provider default.
	ExpiresAfter time.Duration
	// ExpiresAt closes the whole session. Zero keeps the provider default of 24h.
	ExpiresAt time.Time
}

// Hosted sessions can be given a lifetime within these bounds.
const (
	MinSessionTTL = 30 * time.Minute
	MaxSessionTTL = 24 * time.Hour
)

type SessionState string

const (
	SessionOpen     SessionState = "open"
	SessionComplete SessionState = "complete"
	SessionExpired  SessionState = "expired"
)

type Session struct {
	ID              string
	URL             string
	OrderID         int64
	State           SessionState
	Paid            bool
	PaymentIntentID string
}

type Result int

const (
	ResultNone Result = iota
	ResultPaid
	ResultFailed
)

func (r Result) String() string {
	switch r {
	case ResultPaid:
		return "paid"
	case ResultFailed:
		return "failed"
	default:
		return "none"
	}
}

// Event is a verified provider notification reduced to what settles an order.
type Event struct {
	ID              string
	Type            string
	OrderID         int64
	Result          Result
	SessionID       string
	PaymentIntentID string
	Reason          string
}

type Provider interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	// ParseEvent verifies signature against the exact payload bytes before decoding.
	ParseEvent(payload []byte, signature string) (*Event, error)
}

// Result of a session read: paid wins, an expired unpaid session failed, anything else is undecided.
func (s *Session) Result() (Result, string) {
	switch {
	case s.Paid:
		return ResultPaid, ""
	case s.State == SessionExpired:
		return ResultFailed, "session expired"
	default:
		return ResultNone, ""
	}
}
