package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusAwaitingPayment, StatusPaid))
	assert.True(t, CanTransition(StatusPaymentFailed, StatusPaid))
	assert.True(t, CanTransition(StatusPaid, StatusConfirmed))
	assert.True(t, CanTransition(StatusConfirmed, StatusShipped))
	assert.True(t, CanTransition(StatusShipped, StatusDelivered))
	assert.True(t, CanTransition(StatusPaid, StatusRefunded))

	assert.False(t, CanTransition(StatusPaid, StatusPaid))
	assert.False(t, CanTransition(StatusPaid, StatusPaymentFailed))
	assert.False(t, CanTransition(StatusCancelled, StatusPaid))
	assert.False(t, CanTransition(StatusDelivered, StatusShipped))
	assert.False(t, CanTransition("bogus", StatusPaid))
}

func TestStatusSettled(t *testing.T) {
	assert.False(t, StatusPending.Settled())
	assert.False(t, StatusAwaitingPayment.Settled())
	for _, s := range []Status{StatusPaid, StatusPaymentFailed, StatusCancelled, StatusConfirmed} {
		assert.True(t, s.Settled(), s)
	}
}

func TestPaymentStatePaid(t *testing.T) {
	for _, s := range []Status{StatusPaid, StatusConfirmed, StatusShipped, StatusDelivered} {
		assert.True(t, PaymentState{Status: s}.Paid(), s)
	}
	for _, s := range []Status{StatusPending, StatusAwaitingPayment, StatusPaymentFailed, StatusCancelled, StatusRefunded} {
		assert.False(t, PaymentState{Status: s}.Paid(), s)
	}
	assert.True(t, PaymentState{Status: StatusConfirmed, PaymentStatus: PaymentPaid}.Paid())
	assert.False(t, PaymentState{Status: StatusRefunded, PaymentStatus: PaymentPaid}.Paid())
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusRefunded.Valid())
	assert.False(t, Status("wtf").Valid())
}

func TestTotal(t *testing.T) {
	items := []Item{
		{Name: "Cera", Price: decimal.RequireFromString("25.00"), Quantity: 2},
		{Name: "Flanela", Price: decimal.RequireFromString("9.95"), Quantity: 3},
	}
	assert.Equal(t, "79.85", Total(items).StringFixed(2))
}
