package reservation

import (
	"errors"
	"time"
)

type Status string

const (
	StatusReserved  Status = "RESERVED"
	StatusConfirmed Status = "CONFIRMED"
	StatusReleased  Status = "RELEASED"
)

var (
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrInvalidQuantity     = errors.New("quantity must be positive")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrLedgerConflict      = errors.New("ledger update conflicted")
	ErrProductNotInCatalog = errors.New("product not found in catalog")
)

// ReservedProduct is one line of a reservation.
type ReservedProduct struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

// StockReservation is a time-boxed hold against the stock ledger. It is
// owned exclusively by the Engine; orders hold only the id. The TTL is
// advisory: presence of the stored record, not the clock, decides whether
// the reservation is still active.
type StockReservation struct {
	ReservationID string            `json:"reservation_id"`
	OrderID       string            `json:"order_id"`
	StoreID       string            `json:"store_id"`
	Products      []ReservedProduct `json:"products"`
	Status        Status            `json:"status"`
	ReservedAt    time.Time         `json:"reserved_at"`
	ExpiresAt     time.Time         `json:"expires_at"`
	ConfirmedAt   *time.Time        `json:"confirmed_at,omitempty"`
	ReleasedAt    *time.Time        `json:"released_at,omitempty"`
}
