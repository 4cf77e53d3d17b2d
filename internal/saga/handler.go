package saga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/example/order-fulfillment/internal/app"
	"github.com/example/order-fulfillment/internal/clock"
	"github.com/example/order-fulfillment/internal/domain/order"
	"github.com/example/order-fulfillment/internal/reservation"
)

// Handler is the inbound port for events produced by collaborating
// services. Each method maps one observed external fact onto a state
// machine transition plus, possibly, an outbound event. Every method
// tolerates redelivery: an event that has already taken effect is a no-op,
// never an error.
type Handler struct {
	repo      app.OrderRepository
	engine    *reservation.Engine
	publisher app.EventPublisher
	clock     clock.Clock
}

func NewHandler(repo app.OrderRepository, engine *reservation.Engine, publisher app.EventPublisher, clk clock.Clock) *Handler {
	return &Handler{repo: repo, engine: engine, publisher: publisher, clock: clk}
}

// Dispatch decodes a consumed message envelope and routes it to the matching
// handler. Unknown event types are logged and skipped.
func (h *Handler) Dispatch(ctx context.Context, key, value []byte, eventType string) error {
	switch eventType {
	case EventStockReserved:
		var ev StockReserved
		if err := json.Unmarshal(value, &ev); err != nil {
			return fmt.Errorf("failed to decode %s: %w", eventType, err)
		}
		return h.HandleStockReserved(ctx, ev)
	case EventStockReservationFailed:
		var ev StockReservationFailed
		if err := json.Unmarshal(value, &ev); err != nil {
			return fmt.Errorf("failed to decode %s: %w", eventType, err)
		}
		return h.HandleStockReservationFailed(ctx, ev)
	case EventPaymentCreated:
		var ev PaymentCreated
		if err := json.Unmarshal(value, &ev); err != nil {
			return fmt.Errorf("failed to decode %s: %w", eventType, err)
		}
		return h.HandlePaymentCreated(ctx, ev)
	case EventPaymentCompleted:
		var ev PaymentCompleted
		if err := json.Unmarshal(value, &ev); err != nil {
			return fmt.Errorf("failed to decode %s: %w", eventType, err)
		}
		return h.HandlePaymentCompleted(ctx, ev)
	case EventPaymentFailed:
		var ev PaymentFailed
		if err := json.Unmarshal(value, &ev); err != nil {
			return fmt.Errorf("failed to decode %s: %w", eventType, err)
		}
		return h.HandlePaymentFailed(ctx, ev)
	case EventPaymentCancelled:
		var ev PaymentCancelled
		if err := json.Unmarshal(value, &ev); err != nil {
			return fmt.Errorf("failed to decode %s: %w", eventType, err)
		}
		return h.HandlePaymentCancelled(ctx, ev)
	case EventPaymentInitFailed:
		var ev PaymentInitFailed
		if err := json.Unmarshal(value, &ev); err != nil {
			return fmt.Errorf("failed to decode %s: %w", eventType, err)
		}
		return h.HandlePaymentInitFailed(ctx, ev)
	case EventPaymentCompletionCompensate:
		var ev PaymentCompletionCompensate
		if err := json.Unmarshal(value, &ev); err != nil {
			return fmt.Errorf("failed to decode %s: %w", eventType, err)
		}
		return h.HandlePaymentCompletionCompensate(ctx, ev)
	default:
		log.Printf("[Saga] skipping unknown event type %q", eventType)
		return nil
	}
}

// HandleStockReserved advances a freshly reserved order toward payment
// setup.
func (h *Handler) HandleStockReserved(ctx context.Context, ev StockReserved) error {
	o, err := h.repo.Get(ctx, ev.OrderID)
	if err != nil {
		return err
	}
	if o.Status != order.StatusStockReserved {
		// Redelivery or a transition raced ahead of us.
		log.Printf("[Saga] StockReserved for order %s in status %s, skipping", o.ID, o.Status)
		return nil
	}
	if err := o.Confirm(h.clock.Now()); err != nil {
		return err
	}
	return h.repo.Save(ctx, o)
}

// HandleStockReservationFailed cancels the order. Nothing was reserved, so
// no release is attempted.
func (h *Handler) HandleStockReservationFailed(ctx context.Context, ev StockReservationFailed) error {
	reason := ev.Reason
	if reason == "" {
		reason = "stock reservation failed"
	}
	return h.cancel(ctx, ev.OrderID, reason, false, false)
}

// HandlePaymentCreated links the payment entity to the order.
func (h *Handler) HandlePaymentCreated(ctx context.Context, ev PaymentCreated) error {
	o, err := h.repo.Get(ctx, ev.OrderID)
	if err != nil {
		return err
	}
	if o.PaymentID == ev.PaymentID {
		return nil // redelivery
	}
	if err := o.MarkPaymentPending(ev.PaymentID, h.clock.Now()); err != nil {
		return err
	}
	return h.repo.Save(ctx, o)
}

// HandlePaymentCompleted finishes the payment step and confirms the
// reservation.
func (h *Handler) HandlePaymentCompleted(ctx context.Context, ev PaymentCompleted) error {
	o, err := h.repo.Get(ctx, ev.OrderID)
	if err != nil {
		return err
	}
	now := h.clock.Now()
	switch o.Status {
	case order.StatusPreparing, order.StatusDelivered:
		if o.PaymentID == ev.PaymentID {
			return nil // redelivery; payment already took effect
		}
	case order.StatusPaymentCompleted:
		if o.PaymentID == ev.PaymentID {
			// A crash between the completion save and the fulfillment save
			// strands the order here; redelivery resumes the advance.
			return h.advancePaid(ctx, o, now)
		}
	}
	if o.PaymentID == "" {
		// The PaymentCreated event was lost; link and complete in one pass.
		if err := o.MarkPaymentPending(ev.PaymentID, now); err != nil {
			return err
		}
	}
	if err := o.CompletePayment(ev.PaymentID, now); err != nil {
		return err
	}
	if err := h.repo.Save(ctx, o); err != nil {
		return err
	}
	return h.advancePaid(ctx, o, now)
}

// advancePaid confirms the reservation of a PAYMENT_COMPLETED order and
// moves it into fulfillment. Safe to re-run: ConfirmReservation tolerates an
// already-consumed reservation.
func (h *Handler) advancePaid(ctx context.Context, o *order.Order, now time.Time) error {
	if o.ReservationID != "" {
		if err := h.engine.ConfirmReservation(ctx, o.ReservationID); err != nil {
			log.Printf("[Saga] reservation confirm failed for order %s: %v", o.ID, err)
		}
	}
	if err := o.MarkPreparing(now); err != nil {
		return err
	}
	return h.repo.Save(ctx, o)
}

// HandlePaymentFailed cancels the order and releases its reservation.
func (h *Handler) HandlePaymentFailed(ctx context.Context, ev PaymentFailed) error {
	reason := ev.Reason
	if reason == "" {
		reason = "payment failed"
	}
	return h.cancel(ctx, ev.OrderID, reason, true, false)
}

// HandlePaymentCancelled cancels the order and releases its reservation.
func (h *Handler) HandlePaymentCancelled(ctx context.Context, ev PaymentCancelled) error {
	reason := ev.Reason
	if reason == "" {
		reason = "payment cancelled"
	}
	return h.cancel(ctx, ev.OrderID, reason, true, false)
}

// HandlePaymentInitFailed is the compensation for a failed payment setup.
func (h *Handler) HandlePaymentInitFailed(ctx context.Context, ev PaymentInitFailed) error {
	reason := ev.Reason
	if reason == "" {
		reason = "payment initialization failed"
	}
	return h.cancel(ctx, ev.OrderID, reason, true, false)
}

// HandlePaymentCompletionCompensate cancels an already-paid order. This is
// the only post-payment cancellation, so the outbound event also signals
// the financial reversal.
func (h *Handler) HandlePaymentCompletionCompensate(ctx context.Context, ev PaymentCompletionCompensate) error {
	reason := ev.Reason
	if reason == "" {
		reason = "reservation confirmation failed after payment"
	}
	return h.cancel(ctx, ev.OrderID, reason, true, true)
}

// cancel is the shared compensation path. refundPayment selects the
// post-payment CompensatePayment transition and flags the reversal on the
// outbound event.
func (h *Handler) cancel(ctx context.Context, orderID, reason string, releaseStock, refundPayment bool) error {
	o, err := h.repo.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if o.Status == order.StatusOrderCancelled {
		return nil // redelivery; already compensated
	}

	now := h.clock.Now()
	if refundPayment {
		err = o.CompensatePayment(reason, now)
	} else {
		err = o.Cancel(reason, now)
	}
	if err != nil {
		if errors.Is(err, order.ErrNotCancellable) {
			log.Printf("[Saga] order %s not cancellable in status %s, skipping", o.ID, o.Status)
			return nil
		}
		return err
	}
	if err := h.repo.Save(ctx, o); err != nil {
		return err
	}

	if releaseStock && o.ReservationID != "" {
		if err := h.engine.CancelReservation(ctx, o.ReservationID); err != nil {
			log.Printf("[Saga] reservation release failed for order %s: %v", o.ID, err)
		}
	}

	if err := h.publisher.OrderCancelled(ctx, order.OrderCancelled{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		Reason:        reason,
		RefundPayment: refundPayment,
		CancelledAt:   now,
	}); err != nil {
		log.Printf("[Saga] publish OrderCancelled failed for %s: %v", o.ID, err)
	}
	return nil
}
