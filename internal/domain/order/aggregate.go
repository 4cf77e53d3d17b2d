package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending           Status = "PENDING"
	StatusStockReserved     Status = "STOCK_RESERVED"
	StatusOrderConfirmed    Status = "ORDER_CONFIRMED"
	StatusPaymentPending    Status = "PAYMENT_PENDING"
	StatusPaymentProcessing Status = "PAYMENT_PROCESSING"
	StatusPaymentCompleted  Status = "PAYMENT_COMPLETED"
	StatusPreparing         Status = "PREPARING"
	StatusDelivered         Status = "DELIVERED"
	StatusRefundCompleted   Status = "REFUND_COMPLETED"
	StatusOrderCancelled    Status = "ORDER_CANCELLED"
	StatusPaymentTimeout    Status = "PAYMENT_TIMEOUT"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrEmptyOrder      = errors.New("order must have at least one item")
	ErrInvalidItem     = errors.New("order item must have positive quantity and non-negative price")
	ErrInvalidStatus   = errors.New("invalid order status transition")
	ErrPaymentLinked   = errors.New("order already has a payment")
	ErrPaymentMismatch = errors.New("payment id does not match the linked payment")
	ErrNotExpired      = errors.New("order has not passed its expiry deadline")
	ErrNotCancellable  = errors.New("order cannot be cancelled in its current state")
	ErrNotRefundable   = errors.New("only delivered orders can be refunded")
	ErrVersionConflict = errors.New("order was modified concurrently")
)

// validTransitions defines allowed state transitions
var validTransitions = map[Status][]Status{
	StatusPending:           {StatusStockReserved, StatusOrderCancelled},
	StatusStockReserved:     {StatusOrderConfirmed, StatusPaymentPending, StatusOrderCancelled},
	StatusOrderConfirmed:    {StatusPaymentPending, StatusOrderCancelled},
	StatusPaymentPending:    {StatusPaymentProcessing, StatusPaymentCompleted, StatusOrderCancelled, StatusPaymentTimeout},
	StatusPaymentProcessing: {StatusPaymentCompleted, StatusOrderCancelled, StatusPaymentTimeout},
	StatusPaymentCompleted:  {StatusPreparing, StatusOrderCancelled},
	StatusPreparing:         {StatusDelivered, StatusOrderCancelled},
	StatusDelivered:         {StatusRefundCompleted},
	StatusRefundCompleted:   {}, // terminal
	StatusOrderCancelled:    {}, // terminal
	StatusPaymentTimeout:    {}, // terminal
}

// CanTransitionTo checks if the order can transition to the target status
func (o *Order) CanTransitionTo(target Status) bool {
	allowed, exists := validTransitions[o.Status]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

func (o *Order) transitionError(target Status) error {
	return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidStatus, o.Status, target)
}

type OrderItem struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
}

// Order is the aggregate root for a customer purchase. Status-dependent
// fields are mutated only through the named transition methods; a violated
// guard returns an error and leaves the order untouched.
type Order struct {
	ID            string      `json:"id"`
	OrderNumber   string      `json:"order_number"`
	UserID        string      `json:"user_id"`
	StoreID       string      `json:"store_id"`
	Items         []OrderItem `json:"items"`
	TotalAmount   int64       `json:"total_amount"`
	Status        Status      `json:"status"`
	ReservationID string      `json:"reservation_id,omitempty"`
	PaymentID     string      `json:"payment_id,omitempty"`
	RefundID      string      `json:"refund_id,omitempty"`
	FailureReason string      `json:"failure_reason,omitempty"`
	ExpiresAt     *time.Time  `json:"expires_at,omitempty"`
	ConfirmedAt   *time.Time  `json:"confirmed_at,omitempty"`
	CancelledAt   *time.Time  `json:"cancelled_at,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	Version       int64       `json:"version"`
}

// New creates a PENDING order with a fresh id and order number. Item
// quantities and prices are frozen at this point.
func New(userID, storeID string, items []OrderItem, now time.Time) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}
	for _, item := range items {
		if item.Quantity <= 0 || item.UnitPrice < 0 {
			return nil, fmt.Errorf("%w: product %s", ErrInvalidItem, item.ProductID)
		}
	}

	var total int64
	for _, item := range items {
		total += int64(item.Quantity) * item.UnitPrice
	}

	id := uuid.New().String()
	return &Order{
		ID:          id,
		OrderNumber: newOrderNumber(id, now),
		UserID:      userID,
		StoreID:     storeID,
		Items:       items,
		TotalAmount: total,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// newOrderNumber generates a human-readable order number. The suffix comes
// from the order's uuid so two orders created in the same instant still get
// distinct numbers.
func newOrderNumber(id string, now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(id, "-", ""))
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), suffix[:12])
}

// ReserveStock records a successful stock reservation and starts the
// payment-wait window.
func (o *Order) ReserveStock(reservationID string, ttl time.Duration, now time.Time) error {
	if !o.CanTransitionTo(StatusStockReserved) {
		return o.transitionError(StatusStockReserved)
	}
	expires := now.Add(ttl)
	o.Status = StatusStockReserved
	o.ReservationID = reservationID
	o.ExpiresAt = &expires
	o.UpdatedAt = now
	return nil
}

// Confirm marks the reservation acknowledged before payment setup.
func (o *Order) Confirm(now time.Time) error {
	if !o.CanTransitionTo(StatusOrderConfirmed) {
		return o.transitionError(StatusOrderConfirmed)
	}
	o.Status = StatusOrderConfirmed
	o.UpdatedAt = now
	return nil
}

// MarkPaymentPending links the payment entity. An order is linked to at most
// one payment for its whole life.
func (o *Order) MarkPaymentPending(paymentID string, now time.Time) error {
	if o.PaymentID != "" {
		return fmt.Errorf("%w: payment %s already linked", ErrPaymentLinked, o.PaymentID)
	}
	if !o.CanTransitionTo(StatusPaymentPending) {
		return o.transitionError(StatusPaymentPending)
	}
	o.Status = StatusPaymentPending
	o.PaymentID = paymentID
	o.UpdatedAt = now
	return nil
}

// MarkPaymentProcessing records that the payment gateway picked up the payment.
func (o *Order) MarkPaymentProcessing(now time.Time) error {
	if !o.CanTransitionTo(StatusPaymentProcessing) {
		return o.transitionError(StatusPaymentProcessing)
	}
	o.Status = StatusPaymentProcessing
	o.UpdatedAt = now
	return nil
}

// CompletePayment finishes the payment step. The payment id must match the
// one linked by MarkPaymentPending.
func (o *Order) CompletePayment(paymentID string, now time.Time) error {
	if o.Status != StatusPaymentPending && o.Status != StatusPaymentProcessing {
		return o.transitionError(StatusPaymentCompleted)
	}
	if o.PaymentID != paymentID {
		return fmt.Errorf("%w: got %s, linked %s", ErrPaymentMismatch, paymentID, o.PaymentID)
	}
	o.Status = StatusPaymentCompleted
	o.ConfirmedAt = &now
	o.ExpiresAt = nil
	o.UpdatedAt = now
	return nil
}

// MarkPreparing moves a paid order into fulfillment.
func (o *Order) MarkPreparing(now time.Time) error {
	if o.Status != StatusPaymentCompleted {
		return o.transitionError(StatusPreparing)
	}
	o.Status = StatusPreparing
	o.UpdatedAt = now
	return nil
}

// MarkDelivered completes fulfillment.
func (o *Order) MarkDelivered(now time.Time) error {
	if o.Status != StatusPreparing {
		return o.transitionError(StatusDelivered)
	}
	o.Status = StatusDelivered
	o.UpdatedAt = now
	return nil
}

// cancellableStates are the pre-delivery states a plain cancel may leave.
// PAYMENT_COMPLETED is deliberately absent: cancelling after payment goes
// through CompensatePayment, which also triggers the financial reversal.
var cancellableStates = map[Status]bool{
	StatusPending:           true,
	StatusStockReserved:     true,
	StatusOrderConfirmed:    true,
	StatusPaymentPending:    true,
	StatusPaymentProcessing: true,
	StatusPreparing:         true,
}

// Cancel terminates the order with a reason.
func (o *Order) Cancel(reason string, now time.Time) error {
	if !cancellableStates[o.Status] {
		return fmt.Errorf("%w: status %s", ErrNotCancellable, o.Status)
	}
	o.Status = StatusOrderCancelled
	o.FailureReason = reason
	o.CancelledAt = &now
	o.ExpiresAt = nil
	o.UpdatedAt = now
	return nil
}

// CompensatePayment cancels an already-paid order as part of a SAGA
// compensation. PREPARING is a legal source state because a paid order may
// already have advanced into fulfillment by the time the compensation event
// arrives. The caller is responsible for signalling the payment reversal at
// the collaborator boundary.
func (o *Order) CompensatePayment(reason string, now time.Time) error {
	if o.Status != StatusPaymentCompleted && o.Status != StatusPreparing {
		return fmt.Errorf("%w: status %s", ErrNotCancellable, o.Status)
	}
	o.Status = StatusOrderCancelled
	o.FailureReason = reason
	o.CancelledAt = &now
	o.ExpiresAt = nil
	o.UpdatedAt = now
	return nil
}

// Timeout forces a payment-wait order past its deadline into
// PAYMENT_TIMEOUT. It rejects orders that are not waiting for payment or
// whose deadline has not passed.
func (o *Order) Timeout(now time.Time) error {
	if o.Status != StatusPaymentPending && o.Status != StatusPaymentProcessing {
		return o.transitionError(StatusPaymentTimeout)
	}
	if o.ExpiresAt == nil || now.Before(*o.ExpiresAt) {
		return ErrNotExpired
	}
	o.Status = StatusPaymentTimeout
	o.FailureReason = fmt.Sprintf("Payment timeout after %s", o.ExpiresAt.Sub(o.CreatedAt).Round(time.Second))
	o.ExpiresAt = nil
	o.UpdatedAt = now
	return nil
}

// Refund refunds a delivered order and generates the refund id.
func (o *Order) Refund(reason string, now time.Time) error {
	if o.Status != StatusDelivered {
		return fmt.Errorf("%w: status %s", ErrNotRefundable, o.Status)
	}
	o.Status = StatusRefundCompleted
	o.RefundID = uuid.New().String()
	o.FailureReason = reason
	o.UpdatedAt = now
	return nil
}

// Expired reports whether the order's waiting window has lapsed.
func (o *Order) Expired(now time.Time) bool {
	return o.ExpiresAt != nil && !now.Before(*o.ExpiresAt)
}

// PaymentWaitingStatuses is the set of states eligible for the timeout
// reconciliation sweep.
var PaymentWaitingStatuses = []Status{StatusPaymentPending, StatusPaymentProcessing}
