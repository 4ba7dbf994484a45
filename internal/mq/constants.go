package mq

// Queue names and message definitions

// delay queue for order expiry
// a message is published here when a pending order is created; it dead-letters
// into the ready queue after the expiry window and the sweep consumer resolves
// the order if it is still pending
const (
	OrderExpiryDelayQueue = "order.expiry.delay"
	OrderExpiryReadyQueue = "order.expiry.ready"
	OrderExpiryExchange   = "order.expiry.exchange"
	OrderExpiryRoutingKey = "order.expiry"
)

type OrderExpiryMessage struct {
	OrderID uint `json:"order_id"`
}

// immediate queue for order notifications
// a message is published when an order completes; the notification consumer
// sends the confirmation email, failures never touch the order
const (
	OrderNotificationQueue = "order.notification.immediate"
)

type OrderNotificationMessage struct {
	OrderID uint `json:"order_id"`
}
