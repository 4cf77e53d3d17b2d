package reservation

import (
	"context"
	"time"
)

// Ledger holds the authoritative per-product remaining-quantity counters.
// The sole mutation primitive is an atomic conditional swap so that a hot
// product never blocks unrelated callers.
type Ledger interface {
	// Get returns the current quantity and whether the counter exists.
	Get(ctx context.Context, productID string) (int64, bool, error)
	// CompareAndSwap replaces the counter only if it still equals old.
	// It returns false (without error) on a conflicting concurrent write.
	CompareAndSwap(ctx context.Context, productID string, old, new int64) (bool, error)
	// Init creates the counter only if it does not exist yet. A racing
	// initializer loses cleanly and the caller re-reads.
	Init(ctx context.Context, productID string, quantity int64) error
}

// Store persists reservations together with their expiry-index entries.
// Save and Claim must cover both structures atomically.
type Store interface {
	// Save writes the reservation record and schedules its expiry entry.
	Save(ctx context.Context, res *StockReservation) error
	// Find resolves a reservation by primary record, falling back to the
	// expiry index when the primary already lapsed. Returns
	// ErrReservationNotFound when neither holds it.
	Find(ctx context.Context, reservationID string) (*StockReservation, error)
	// Claim atomically removes the reservation and its expiry entry and
	// returns the removed record. Of any number of racing claimers exactly
	// one receives the record; the rest get ErrReservationNotFound.
	Claim(ctx context.Context, reservationID string) (*StockReservation, error)
	// Expired lists reservations whose expiry schedule is at or before now.
	Expired(ctx context.Context, now time.Time) ([]*StockReservation, error)
}
