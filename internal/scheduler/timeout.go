package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/example/order-fulfillment/internal/app"
	"github.com/example/order-fulfillment/internal/domain/order"
	"github.com/example/order-fulfillment/internal/reservation"
)

// TimeoutReconciler finds orders stuck past their expiry in a payment
// waiting state, forces the timeout transition and releases their
// reservations. Orders are processed independently: one failure never
// aborts the rest, and a failed reservation release does not roll back the
// order's transition; the expiry sweep catches the leftover hold later.
type TimeoutReconciler struct {
	repo      app.OrderRepository
	engine    *reservation.Engine
	publisher app.EventPublisher
}

func NewTimeoutReconciler(repo app.OrderRepository, engine *reservation.Engine, publisher app.EventPublisher) *TimeoutReconciler {
	return &TimeoutReconciler{repo: repo, engine: engine, publisher: publisher}
}

func (r *TimeoutReconciler) Name() string { return "order-timeout-reconciler" }

func (r *TimeoutReconciler) Run(ctx context.Context, now time.Time) error {
	expired, err := r.repo.FindExpired(ctx, order.PaymentWaitingStatuses, now)
	if err != nil {
		return err
	}

	timedOut := 0
	for _, o := range expired {
		if err := r.timeoutOrder(ctx, o, now); err != nil {
			log.Printf("[Reconciler] failed to time out order %s: %v", o.ID, err)
			continue
		}
		timedOut++
	}
	if timedOut > 0 {
		log.Printf("[Reconciler] timed out %d order(s)", timedOut)
	}
	return nil
}

func (r *TimeoutReconciler) timeoutOrder(ctx context.Context, o *order.Order, now time.Time) error {
	var deadline time.Time
	if o.ExpiresAt != nil {
		deadline = *o.ExpiresAt
	}
	if err := o.Timeout(now); err != nil {
		return err
	}
	if err := r.repo.Save(ctx, o); err != nil {
		return err
	}

	if o.ReservationID != "" {
		if err := r.engine.CancelReservation(ctx, o.ReservationID); err != nil {
			// Order stays timed out; the reservation expiry sweep is the
			// second line of defense for this hold.
			log.Printf("[Reconciler] reservation release failed for order %s: %v", o.ID, err)
		}
	}

	if err := r.publisher.OrderTimeout(ctx, order.OrderTimeout{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		ReservationID: o.ReservationID,
		PaymentID:     o.PaymentID,
		Reason:        o.FailureReason,
		TimedOutAt:    now,
	}); err != nil {
		log.Printf("[Reconciler] publish OrderTimeout failed for %s: %v", o.ID, err)
	}

	// User-facing notice that the payment window lapsed, separate from the
	// internal timeout signal.
	if err := r.publisher.OrderExpirationNotification(ctx, order.OrderExpirationNotification{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		ExpiresAt:   deadline,
	}); err != nil {
		log.Printf("[Reconciler] publish OrderExpirationNotification failed for %s: %v", o.ID, err)
	}
	return nil
}
