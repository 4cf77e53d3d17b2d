package reservation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/example/order-fulfillment/internal/catalog"
	"github.com/example/order-fulfillment/internal/clock"
)

// casAttempts bounds the optimistic retry loop per product so a hot counter
// fails fast under contention instead of starving callers.
const casAttempts = 10

// Engine orchestrates try-reserve / confirm / cancel / sweep against the
// stock ledger and the reservation store. It is the only component allowed
// to mutate either.
type Engine struct {
	ledger  Ledger
	store   Store
	catalog catalog.ProductCatalog
	clock   clock.Clock
}

func NewEngine(ledger Ledger, store Store, cat catalog.ProductCatalog, clk clock.Clock) *Engine {
	return &Engine{ledger: ledger, store: store, catalog: cat, clock: clk}
}

// TryReserve decrements the ledger for every item and persists a reservation
// with the given TTL. The operation is all-or-nothing: if a later item fails
// after earlier items succeeded, every decrement already taken is rolled
// back before ErrInsufficientStock is returned. Infrastructure failures
// during the decrement phase also fail closed as insufficient stock.
func (e *Engine) TryReserve(ctx context.Context, orderID, storeID string, items []ReservedProduct, reservationID string, ttl time.Duration) (*StockReservation, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no items", ErrInvalidQuantity)
	}
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: product %s", ErrInvalidQuantity, item.ProductID)
		}
	}

	taken := make([]ReservedProduct, 0, len(items))
	for _, item := range items {
		if err := e.decrement(ctx, item.ProductID, item.Quantity); err != nil {
			e.rollback(ctx, taken)
			if errors.Is(err, ErrInsufficientStock) {
				return nil, err
			}
			// Fail closed: an unreachable ledger must never oversell.
			log.Printf("[Engine] ledger decrement failed for product %s: %v", item.ProductID, err)
			return nil, fmt.Errorf("%w: product %s", ErrInsufficientStock, item.ProductID)
		}
		taken = append(taken, item)
	}

	now := e.clock.Now()
	res := &StockReservation{
		ReservationID: reservationID,
		OrderID:       orderID,
		StoreID:       storeID,
		Products:      items,
		Status:        StatusReserved,
		ReservedAt:    now,
		ExpiresAt:     now.Add(ttl),
	}
	if err := e.store.Save(ctx, res); err != nil {
		e.rollback(ctx, taken)
		log.Printf("[Engine] failed to persist reservation %s: %v", reservationID, err)
		return nil, fmt.Errorf("%w: reservation store unavailable", ErrInsufficientStock)
	}
	return res, nil
}

// decrement performs the bounded optimistic decrement for one product,
// lazily seeding the counter from the catalog when it does not exist yet.
// Absence of a ledger entry is not zero stock.
func (e *Engine) decrement(ctx context.Context, productID string, quantity int64) error {
	for attempt := 0; attempt < casAttempts; attempt++ {
		current, exists, err := e.ledger.Get(ctx, productID)
		if err != nil {
			return err
		}
		if !exists {
			if err := e.initFromCatalog(ctx, productID); err != nil {
				return err
			}
			continue
		}
		if current < quantity {
			return fmt.Errorf("%w: product %s has %d, requested %d", ErrInsufficientStock, productID, current, quantity)
		}
		swapped, err := e.ledger.CompareAndSwap(ctx, productID, current, current-quantity)
		if err != nil {
			return err
		}
		if swapped {
			return nil
		}
		// CAS conflict, re-read and retry.
	}
	return fmt.Errorf("%w: product %s contended beyond %d attempts", ErrInsufficientStock, productID, casAttempts)
}

// increment restores quantity to a counter with the same bounded CAS loop.
func (e *Engine) increment(ctx context.Context, productID string, quantity int64) error {
	for attempt := 0; attempt < casAttempts; attempt++ {
		current, exists, err := e.ledger.Get(ctx, productID)
		if err != nil {
			return err
		}
		if !exists {
			// A reserved product always has a counter; recreate it if the
			// store lost it rather than dropping the stock.
			if err := e.ledger.Init(ctx, productID, quantity); err != nil {
				return err
			}
			return nil
		}
		swapped, err := e.ledger.CompareAndSwap(ctx, productID, current, current+quantity)
		if err != nil {
			return err
		}
		if swapped {
			return nil
		}
	}
	return fmt.Errorf("%w: product %s", ErrLedgerConflict, productID)
}

func (e *Engine) initFromCatalog(ctx context.Context, productID string) error {
	product, err := e.catalog.LoadByID(ctx, productID)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrProductNotInCatalog, productID)
	}
	// Create-if-absent: a racing initializer loses cleanly.
	if err := e.ledger.Init(ctx, productID, product.Stock); err != nil {
		return err
	}
	return nil
}

// rollback returns previously taken quantities. Failures are logged and the
// remaining items still get restored; the expiry sweep is the backstop for
// anything left behind.
func (e *Engine) rollback(ctx context.Context, taken []ReservedProduct) {
	for _, item := range taken {
		if err := e.increment(ctx, item.ProductID, item.Quantity); err != nil {
			log.Printf("[Engine] rollback failed for product %s qty %d: %v", item.ProductID, item.Quantity, err)
		}
	}
}

// ConfirmReservation finalizes a reservation, removing its record and expiry
// entry in one atomic claim. A missing reservation means it was already
// confirmed or released; redelivered events make that a normal no-op.
func (e *Engine) ConfirmReservation(ctx context.Context, reservationID string) error {
	res, err := e.store.Claim(ctx, reservationID)
	if err != nil {
		if errors.Is(err, ErrReservationNotFound) {
			log.Printf("[Engine] confirm %s: already terminal, skipping", reservationID)
			return nil
		}
		return err
	}
	now := e.clock.Now()
	res.Status = StatusConfirmed
	res.ConfirmedAt = &now
	log.Printf("[Engine] reservation %s confirmed for order %s", reservationID, res.OrderID)
	return nil
}

// CancelReservation releases a reservation, restoring every reserved
// quantity to the ledger. Idempotent: a missing reservation is a no-op.
func (e *Engine) CancelReservation(ctx context.Context, reservationID string) error {
	res, err := e.store.Claim(ctx, reservationID)
	if err != nil {
		if errors.Is(err, ErrReservationNotFound) {
			log.Printf("[Engine] cancel %s: already terminal, skipping", reservationID)
			return nil
		}
		return err
	}

	for _, item := range res.Products {
		if err := e.increment(ctx, item.ProductID, item.Quantity); err != nil {
			log.Printf("[Engine] restore failed for reservation %s product %s: %v", reservationID, item.ProductID, err)
		}
	}
	now := e.clock.Now()
	res.Status = StatusReleased
	res.ReleasedAt = &now
	log.Printf("[Engine] reservation %s released for order %s", reservationID, res.OrderID)
	return nil
}

// GetReservation is the user-facing lookup; unlike confirm/cancel it
// reports a missing reservation as ErrReservationNotFound.
func (e *Engine) GetReservation(ctx context.Context, reservationID string) (*StockReservation, error) {
	return e.store.Find(ctx, reservationID)
}

// ProcessExpiredReservations releases every reservation whose schedule time
// passed without an explicit confirm or cancel. Failure on one reservation
// never aborts the rest, and racing an explicit confirm/cancel on the same
// id is safe because CancelReservation is idempotent.
func (e *Engine) ProcessExpiredReservations(ctx context.Context, now time.Time) (int, error) {
	expired, err := e.store.Expired(ctx, now)
	if err != nil {
		return 0, err
	}

	released := 0
	for _, res := range expired {
		if err := e.CancelReservation(ctx, res.ReservationID); err != nil {
			log.Printf("[Engine] sweep failed to release reservation %s: %v", res.ReservationID, err)
			continue
		}
		released++
	}
	if released > 0 {
		log.Printf("[Engine] sweep released %d expired reservation(s)", released)
	}
	return released, nil
}
