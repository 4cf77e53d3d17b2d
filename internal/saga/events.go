package saga

import "time"

// Inbound event names, as observed from the inventory and payment
// collaborators.
const (
	EventStockReserved               = "StockReserved"
	EventStockReservationFailed      = "StockReservationFailed"
	EventPaymentCreated              = "PaymentCreated"
	EventPaymentCompleted            = "PaymentCompleted"
	EventPaymentFailed               = "PaymentFailed"
	EventPaymentCancelled            = "PaymentCancelled"
	EventPaymentInitFailed           = "PaymentInitFailed"
	EventPaymentCompletionCompensate = "PaymentCompletionCompensate"
)

type StockReserved struct {
	OrderID       string    `json:"order_id"`
	ReservationID string    `json:"reservation_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type StockReservationFailed struct {
	OrderID    string    `json:"order_id"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

type PaymentCreated struct {
	OrderID    string    `json:"order_id"`
	PaymentID  string    `json:"payment_id"`
	Amount     int64     `json:"amount"`
	OccurredAt time.Time `json:"occurred_at"`
}

type PaymentCompleted struct {
	OrderID    string    `json:"order_id"`
	PaymentID  string    `json:"payment_id"`
	Amount     int64     `json:"amount"`
	OccurredAt time.Time `json:"occurred_at"`
}

type PaymentFailed struct {
	OrderID    string    `json:"order_id"`
	PaymentID  string    `json:"payment_id"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

type PaymentCancelled struct {
	OrderID    string    `json:"order_id"`
	PaymentID  string    `json:"payment_id"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

type PaymentInitFailed struct {
	OrderID    string    `json:"order_id"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PaymentCompletionCompensate arrives when the reservation confirmation
// failed downstream after payment already completed.
type PaymentCompletionCompensate struct {
	OrderID    string    `json:"order_id"`
	PaymentID  string    `json:"payment_id"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}
