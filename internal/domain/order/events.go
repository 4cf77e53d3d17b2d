package order

import "time"

// Outbound event names. All order-scoped events are partitioned by order id
// so a single order's events are observed in emission order.
const (
	EventOrderCreated        = "OrderCreated"
	EventOrderConfirmed      = "OrderConfirmed"
	EventOrderCancelled      = "OrderCancelled"
	EventOrderExpirationNote = "OrderExpirationNotification"
	EventOrderTimeout        = "OrderTimeout"
)

type OrderCreated struct {
	OrderID     string      `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	UserID      string      `json:"user_id"`
	StoreID     string      `json:"store_id"`
	Items       []OrderItem `json:"items"`
	TotalAmount int64       `json:"total_amount"`
	CreatedAt   time.Time   `json:"created_at"`
}

type OrderConfirmed struct {
	OrderID       string    `json:"order_id"`
	OrderNumber   string    `json:"order_number"`
	ReservationID string    `json:"reservation_id"`
	TotalAmount   int64     `json:"total_amount"`
	ExpiresAt     time.Time `json:"expires_at"`
	ConfirmedAt   time.Time `json:"confirmed_at"`
}

type OrderCancelled struct {
	OrderID       string    `json:"order_id"`
	OrderNumber   string    `json:"order_number"`
	Reason        string    `json:"reason"`
	RefundPayment bool      `json:"refund_payment"`
	CancelledAt   time.Time `json:"cancelled_at"`
}

type OrderExpirationNotification struct {
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	UserID      string    `json:"user_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// OrderTimeout is the internal signal consumed by the reconciliation flow to
// trigger downstream compensations.
type OrderTimeout struct {
	OrderID       string    `json:"order_id"`
	OrderNumber   string    `json:"order_number"`
	ReservationID string    `json:"reservation_id,omitempty"`
	PaymentID     string    `json:"payment_id,omitempty"`
	Reason        string    `json:"reason"`
	TimedOutAt    time.Time `json:"timed_out_at"`
}
