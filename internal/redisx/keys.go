package redisx

import "time"

const (
	// Cached payment status: order_status:{order_id} -> {"order_id":..,"status":..,"payment_status":..}
	KeyOrderStatus = "order_status:%d"

	// Invalidation counter of the cached payment status: order_status_v:{order_id}
	KeyOrderStatusVersion = "order_status_v:%d"

	// Processed provider webhook: webhook:evt:{event_id}
	KeyWebhookEvent = "webhook:evt:%s"

	// Provider read throttle for the payment-status poll: reconcile:{order_id}
	KeyReconcile = "reconcile:%d"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Shared cart blob: cart:{cart_key}
	KeyCart = "cart:%s"
)

var (
	TTLStatusCache   = 5 * time.Minute
	TTLStatusVersion = time.Hour
	TTLWebhook       = 48 * time.Hour
	TTLReconcile     = 3 * time.Second
	TTLDedup         = 48 * time.Hour
	TTLCart          = 30 * 24 * time.Hour
)
