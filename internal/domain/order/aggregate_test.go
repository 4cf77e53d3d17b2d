package order

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestOrder(t *testing.T) *Order {
	t.Helper()
	o, err := New("user-123", "store-1", []OrderItem{
		{ProductID: "prod-1", ProductName: "Widget", Quantity: 2, UnitPrice: 1500},
		{ProductID: "prod-2", ProductName: "Gadget", Quantity: 1, UnitPrice: 3000},
	}, testNow)
	require.NoError(t, err)
	return o
}

// orderInStatus walks the happy path until the order reaches the requested
// status.
func orderInStatus(t *testing.T, status Status) *Order {
	t.Helper()
	o := newTestOrder(t)
	step := func(err error) { require.NoError(t, err) }

	if status == StatusPending {
		return o
	}
	step(o.ReserveStock("res-1", 10*time.Minute, testNow))
	if status == StatusStockReserved {
		return o
	}
	step(o.Confirm(testNow))
	if status == StatusOrderConfirmed {
		return o
	}
	step(o.MarkPaymentPending("pay-1", testNow))
	if status == StatusPaymentPending {
		return o
	}
	step(o.MarkPaymentProcessing(testNow))
	if status == StatusPaymentProcessing {
		return o
	}
	step(o.CompletePayment("pay-1", testNow))
	if status == StatusPaymentCompleted {
		return o
	}
	step(o.MarkPreparing(testNow))
	if status == StatusPreparing {
		return o
	}
	step(o.MarkDelivered(testNow))
	if status == StatusDelivered {
		return o
	}
	t.Fatalf("no happy-path route to status %s", status)
	return nil
}

// ============================================
// Create Order Tests
// ============================================

func TestNew_Success(t *testing.T) {
	o := newTestOrder(t)

	assert.NotEmpty(t, o.ID)
	assert.True(t, strings.HasPrefix(o.OrderNumber, "ORD-20250601-"))
	assert.Equal(t, "user-123", o.UserID)
	assert.Equal(t, "store-1", o.StoreID)
	assert.Equal(t, int64(6000), o.TotalAmount) // 2*1500 + 1*3000
	assert.Equal(t, StatusPending, o.Status)
	assert.Nil(t, o.ExpiresAt)
	assert.Equal(t, testNow, o.CreatedAt)
}

func TestNew_OrderNumbersAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		o := newTestOrder(t)
		assert.Len(t, o.OrderNumber, len("ORD-20250601-")+12)
		assert.False(t, seen[o.OrderNumber], "duplicate order number %s", o.OrderNumber)
		seen[o.OrderNumber] = true
	}
}

func TestNew_EmptyItems(t *testing.T) {
	o, err := New("user-123", "store-1", []OrderItem{}, testNow)

	assert.ErrorIs(t, err, ErrEmptyOrder)
	assert.Nil(t, o)
}

func TestNew_NilItems(t *testing.T) {
	o, err := New("user-123", "store-1", nil, testNow)

	assert.ErrorIs(t, err, ErrEmptyOrder)
	assert.Nil(t, o)
}

func TestNew_ZeroQuantity(t *testing.T) {
	o, err := New("user-123", "store-1", []OrderItem{
		{ProductID: "prod-1", Quantity: 0, UnitPrice: 1000},
	}, testNow)

	assert.ErrorIs(t, err, ErrInvalidItem)
	assert.Nil(t, o)
}

func TestNew_NegativePrice(t *testing.T) {
	o, err := New("user-123", "store-1", []OrderItem{
		{ProductID: "prod-1", Quantity: 1, UnitPrice: -1},
	}, testNow)

	assert.ErrorIs(t, err, ErrInvalidItem)
	assert.Nil(t, o)
}

// ============================================
// Reserve Stock Tests
// ============================================

func TestReserveStock_FromPending(t *testing.T) {
	o := newTestOrder(t)

	err := o.ReserveStock("res-42", 10*time.Minute, testNow)

	require.NoError(t, err)
	assert.Equal(t, StatusStockReserved, o.Status)
	assert.Equal(t, "res-42", o.ReservationID)
	require.NotNil(t, o.ExpiresAt)
	assert.Equal(t, testNow.Add(10*time.Minute), *o.ExpiresAt)
}

func TestReserveStock_AlreadyReserved(t *testing.T) {
	o := orderInStatus(t, StatusStockReserved)

	err := o.ReserveStock("res-43", 10*time.Minute, testNow)

	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.Equal(t, "res-1", o.ReservationID)
}

func TestReserveStock_FromCancelled(t *testing.T) {
	o := newTestOrder(t)
	require.NoError(t, o.Cancel("changed mind", testNow))

	err := o.ReserveStock("res-42", 10*time.Minute, testNow)

	assert.ErrorIs(t, err, ErrInvalidStatus)
}

// ============================================
// Payment Linking Tests
// ============================================

func TestMarkPaymentPending_FromStockReserved(t *testing.T) {
	o := orderInStatus(t, StatusStockReserved)

	err := o.MarkPaymentPending("pay-9", testNow)

	require.NoError(t, err)
	assert.Equal(t, StatusPaymentPending, o.Status)
	assert.Equal(t, "pay-9", o.PaymentID)
}

func TestMarkPaymentPending_FromOrderConfirmed(t *testing.T) {
	o := orderInStatus(t, StatusOrderConfirmed)

	err := o.MarkPaymentPending("pay-9", testNow)

	require.NoError(t, err)
	assert.Equal(t, StatusPaymentPending, o.Status)
}

func TestMarkPaymentPending_DuplicateLink(t *testing.T) {
	o := orderInStatus(t, StatusPaymentPending)

	err := o.MarkPaymentPending("pay-other", testNow)

	assert.ErrorIs(t, err, ErrPaymentLinked)
	assert.Equal(t, "pay-1", o.PaymentID)
}

func TestMarkPaymentPending_FromPending(t *testing.T) {
	o := newTestOrder(t)

	err := o.MarkPaymentPending("pay-9", testNow)

	assert.ErrorIs(t, err, ErrInvalidStatus)
}

// ============================================
// Complete Payment Tests
// ============================================

func TestCompletePayment_FromPaymentPending(t *testing.T) {
	o := orderInStatus(t, StatusPaymentPending)
	completedAt := testNow.Add(time.Minute)

	err := o.CompletePayment("pay-1", completedAt)

	require.NoError(t, err)
	assert.Equal(t, StatusPaymentCompleted, o.Status)
	require.NotNil(t, o.ConfirmedAt)
	assert.Equal(t, completedAt, *o.ConfirmedAt)
	assert.Nil(t, o.ExpiresAt)
}

func TestCompletePayment_FromPaymentProcessing(t *testing.T) {
	o := orderInStatus(t, StatusPaymentProcessing)

	err := o.CompletePayment("pay-1", testNow)

	require.NoError(t, err)
	assert.Equal(t, StatusPaymentCompleted, o.Status)
}

func TestCompletePayment_PaymentMismatch(t *testing.T) {
	o := orderInStatus(t, StatusPaymentPending)

	err := o.CompletePayment("pay-other", testNow)

	assert.ErrorIs(t, err, ErrPaymentMismatch)
	assert.Equal(t, StatusPaymentPending, o.Status)
}

func TestCompletePayment_FromStockReserved(t *testing.T) {
	o := orderInStatus(t, StatusStockReserved)

	err := o.CompletePayment("pay-1", testNow)

	assert.ErrorIs(t, err, ErrInvalidStatus)
}

// ============================================
// Fulfillment Tests
// ============================================

func TestMarkPreparing_FromPaymentCompleted(t *testing.T) {
	o := orderInStatus(t, StatusPaymentCompleted)

	err := o.MarkPreparing(testNow)

	require.NoError(t, err)
	assert.Equal(t, StatusPreparing, o.Status)
}

func TestMarkPreparing_FromPaymentPending(t *testing.T) {
	o := orderInStatus(t, StatusPaymentPending)

	err := o.MarkPreparing(testNow)

	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestMarkDelivered_FromPreparing(t *testing.T) {
	o := orderInStatus(t, StatusPreparing)

	err := o.MarkDelivered(testNow)

	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, o.Status)
}

func TestMarkDelivered_FromPaymentCompleted(t *testing.T) {
	o := orderInStatus(t, StatusPaymentCompleted)

	err := o.MarkDelivered(testNow)

	assert.ErrorIs(t, err, ErrInvalidStatus)
}

// ============================================
// Cancel Tests
// ============================================

func TestCancel_FromPending(t *testing.T) {
	o := newTestOrder(t)

	err := o.Cancel("customer request", testNow)

	require.NoError(t, err)
	assert.Equal(t, StatusOrderCancelled, o.Status)
	assert.Equal(t, "customer request", o.FailureReason)
	require.NotNil(t, o.CancelledAt)
	assert.Equal(t, testNow, *o.CancelledAt)
}

func TestCancel_FromStockReserved_ClearsExpiry(t *testing.T) {
	o := orderInStatus(t, StatusStockReserved)
	require.NotNil(t, o.ExpiresAt)

	err := o.Cancel("out of stock downstream", testNow)

	require.NoError(t, err)
	assert.Equal(t, StatusOrderCancelled, o.Status)
	assert.Nil(t, o.ExpiresAt)
}

func TestCancel_FromDelivered(t *testing.T) {
	o := orderInStatus(t, StatusDelivered)

	err := o.Cancel("too late", testNow)

	assert.ErrorIs(t, err, ErrNotCancellable)
	assert.Equal(t, StatusDelivered, o.Status)
}

func TestCancel_FromPaymentCompleted(t *testing.T) {
	// A paid order must go through CompensatePayment so the money moves back.
	o := orderInStatus(t, StatusPaymentCompleted)

	err := o.Cancel("refund requested", testNow)

	assert.ErrorIs(t, err, ErrNotCancellable)
	assert.Equal(t, StatusPaymentCompleted, o.Status)
}

func TestCancel_AlreadyCancelled(t *testing.T) {
	o := newTestOrder(t)
	require.NoError(t, o.Cancel("first", testNow))

	err := o.Cancel("second", testNow)

	assert.ErrorIs(t, err, ErrNotCancellable)
	assert.Equal(t, "first", o.FailureReason)
}

func TestCompensatePayment_FromPaymentCompleted(t *testing.T) {
	o := orderInStatus(t, StatusPaymentCompleted)

	err := o.CompensatePayment("reservation confirm failed", testNow)

	require.NoError(t, err)
	assert.Equal(t, StatusOrderCancelled, o.Status)
	assert.Equal(t, "reservation confirm failed", o.FailureReason)
}

func TestCompensatePayment_FromPreparing(t *testing.T) {
	// The order may already be in fulfillment when the compensation event
	// arrives; the money still has to move back.
	o := orderInStatus(t, StatusPreparing)

	err := o.CompensatePayment("reservation confirm failed", testNow)

	require.NoError(t, err)
	assert.Equal(t, StatusOrderCancelled, o.Status)
	assert.Equal(t, "reservation confirm failed", o.FailureReason)
}

func TestCompensatePayment_FromPaymentPending(t *testing.T) {
	o := orderInStatus(t, StatusPaymentPending)

	err := o.CompensatePayment("reason", testNow)

	assert.ErrorIs(t, err, ErrNotCancellable)
	assert.Equal(t, StatusPaymentPending, o.Status)
}

// ============================================
// Timeout Tests
// ============================================

func TestTimeout_FromPaymentPending_Expired(t *testing.T) {
	o := orderInStatus(t, StatusPaymentPending)
	after := o.ExpiresAt.Add(time.Second)

	err := o.Timeout(after)

	require.NoError(t, err)
	assert.Equal(t, StatusPaymentTimeout, o.Status)
	assert.True(t, strings.HasPrefix(o.FailureReason, "Payment timeout after "))
	assert.Nil(t, o.ExpiresAt)
}

func TestTimeout_FromPaymentProcessing_Expired(t *testing.T) {
	o := orderInStatus(t, StatusPaymentProcessing)
	after := o.ExpiresAt.Add(time.Second)

	err := o.Timeout(after)

	require.NoError(t, err)
	assert.Equal(t, StatusPaymentTimeout, o.Status)
}

func TestTimeout_NotYetExpired(t *testing.T) {
	o := orderInStatus(t, StatusPaymentPending)

	err := o.Timeout(o.ExpiresAt.Add(-time.Second))

	assert.ErrorIs(t, err, ErrNotExpired)
	assert.Equal(t, StatusPaymentPending, o.Status)
}

func TestTimeout_AtExactDeadline(t *testing.T) {
	o := orderInStatus(t, StatusPaymentPending)

	err := o.Timeout(*o.ExpiresAt)

	require.NoError(t, err)
	assert.Equal(t, StatusPaymentTimeout, o.Status)
}

func TestTimeout_FromPending(t *testing.T) {
	// Never reserved, so there is no deadline to pass.
	o := newTestOrder(t)

	err := o.Timeout(testNow.Add(time.Hour))

	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.Equal(t, StatusPending, o.Status)
}

func TestTimeout_FromStockReserved(t *testing.T) {
	o := orderInStatus(t, StatusStockReserved)
	after := o.ExpiresAt.Add(time.Second)

	err := o.Timeout(after)

	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.Equal(t, StatusStockReserved, o.Status)
}

// ============================================
// Refund Tests
// ============================================

func TestRefund_FromDelivered(t *testing.T) {
	o := orderInStatus(t, StatusDelivered)

	err := o.Refund("defective item", testNow)

	require.NoError(t, err)
	assert.Equal(t, StatusRefundCompleted, o.Status)
	assert.NotEmpty(t, o.RefundID)
	assert.Equal(t, "defective item", o.FailureReason)
}

func TestRefund_FromPaymentCompleted(t *testing.T) {
	o := orderInStatus(t, StatusPaymentCompleted)

	err := o.Refund("not delivered yet", testNow)

	assert.ErrorIs(t, err, ErrNotRefundable)
	assert.Equal(t, StatusPaymentCompleted, o.Status)
	assert.Empty(t, o.RefundID)
}

func TestRefund_AlreadyRefunded(t *testing.T) {
	o := orderInStatus(t, StatusDelivered)
	require.NoError(t, o.Refund("first", testNow))
	refundID := o.RefundID

	err := o.Refund("second", testNow)

	assert.ErrorIs(t, err, ErrNotRefundable)
	assert.Equal(t, refundID, o.RefundID)
}

// ============================================
// Transition Matrix Tests
// ============================================

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusPending, StatusStockReserved, true},
		{StatusPending, StatusOrderCancelled, true},
		{StatusPending, StatusPaymentPending, false},
		{StatusStockReserved, StatusOrderConfirmed, true},
		{StatusStockReserved, StatusPaymentPending, true},
		{StatusStockReserved, StatusPaymentTimeout, false},
		{StatusOrderConfirmed, StatusPaymentPending, true},
		{StatusPaymentPending, StatusPaymentProcessing, true},
		{StatusPaymentPending, StatusPaymentCompleted, true},
		{StatusPaymentPending, StatusPaymentTimeout, true},
		{StatusPaymentProcessing, StatusPaymentCompleted, true},
		{StatusPaymentProcessing, StatusPaymentTimeout, true},
		{StatusPaymentCompleted, StatusPreparing, true},
		{StatusPreparing, StatusDelivered, true},
		{StatusDelivered, StatusRefundCompleted, true},
		{StatusDelivered, StatusOrderCancelled, false},
		{StatusOrderCancelled, StatusPending, false},
		{StatusOrderCancelled, StatusStockReserved, false},
		{StatusPaymentTimeout, StatusPaymentPending, false},
		{StatusRefundCompleted, StatusPending, false},
	}

	for _, tt := range tests {
		name := string(tt.from) + "->" + string(tt.to)
		t.Run(name, func(t *testing.T) {
			o := &Order{Status: tt.from}
			assert.Equal(t, tt.allowed, o.CanTransitionTo(tt.to))
		})
	}
}

// ============================================
// Expiry Helper Tests
// ============================================

func TestExpired(t *testing.T) {
	o := orderInStatus(t, StatusStockReserved)

	assert.False(t, o.Expired(o.ExpiresAt.Add(-time.Second)))
	assert.True(t, o.Expired(*o.ExpiresAt))
	assert.True(t, o.Expired(o.ExpiresAt.Add(time.Second)))
}

func TestExpired_NoDeadline(t *testing.T) {
	o := newTestOrder(t)

	assert.False(t, o.Expired(testNow.Add(time.Hour)))
}

// ============================================
// Full Order Lifecycle Test
// ============================================

func TestOrderLifecycle_HappyPath(t *testing.T) {
	o := newTestOrder(t)

	require.NoError(t, o.ReserveStock("res-1", 10*time.Minute, testNow))
	require.NoError(t, o.Confirm(testNow))
	require.NoError(t, o.MarkPaymentPending("pay-1", testNow))
	require.NoError(t, o.MarkPaymentProcessing(testNow))
	require.NoError(t, o.CompletePayment("pay-1", testNow))
	require.NoError(t, o.MarkPreparing(testNow))
	require.NoError(t, o.MarkDelivered(testNow))

	assert.Equal(t, StatusDelivered, o.Status)
	assert.Nil(t, o.ExpiresAt)
}

func TestOrderLifecycle_CancelThenNothingElse(t *testing.T) {
	o := orderInStatus(t, StatusPaymentPending)

	require.NoError(t, o.Cancel("user gave up", testNow))

	assert.ErrorIs(t, o.MarkPaymentProcessing(testNow), ErrInvalidStatus)
	assert.ErrorIs(t, o.Timeout(testNow.Add(time.Hour)), ErrInvalidStatus)
	assert.ErrorIs(t, o.Refund("nope", testNow), ErrNotRefundable)
}
