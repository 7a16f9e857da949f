package order

type Status string

const (
	StatusPending         Status = "pending"
	StatusAwaitingPayment Status = "awaiting_payment"
	StatusPaid            Status = "paid"
	StatusPaymentFailed   Status = "payment_failed"
	StatusCancelled       Status = "cancelled"
	StatusConfirmed       Status = "confirmed"
	StatusShipped         Status = "shipped"
	StatusDelivered       Status = "delivered"
	StatusRefunded        Status = "refunded"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:         {StatusAwaitingPayment: true, StatusPaid: true, StatusPaymentFailed: true, StatusCancelled: true, StatusConfirmed: true},
	StatusAwaitingPayment: {StatusPaid: true, StatusPaymentFailed: true, StatusCancelled: true},
	StatusPaymentFailed:   {StatusPaid: true, StatusCancelled: true},
	StatusPaid:            {StatusConfirmed: true, StatusRefunded: true},
	StatusConfirmed:       {StatusShipped: true, StatusRefunded: true, StatusCancelled: true},
	StatusShipped:         {StatusDelivered: true},
	StatusDelivered:       {StatusRefunded: true},
	StatusCancelled:       {},
	StatusRefunded:        {},
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Settled reports whether the checkout attempt has an outcome, i.e. polling can stop.
func (s Status) Settled() bool {
	return s != StatusPending && s != StatusAwaitingPayment
}

// PaidFrom lists the states a provider "paid" outcome may move out of.
// A card can be declined and then accepted on the same hosted session.
var PaidFrom = []Status{StatusPending, StatusAwaitingPayment, StatusPaymentFailed}

// FailedFrom lists the states a provider "failed" outcome may move out of.
var FailedFrom = []Status{StatusPending, StatusAwaitingPayment}

// PaidOrLater reports whether s is paid or one of the fulfilment states that follow payment.
func (s Status) PaidOrLater() bool {
	switch s {
	case StatusPaid, StatusConfirmed, StatusShipped, StatusDelivered:
		return true
	}
	return false
}
