package app

import (
	"context"
	"time"

	"github.com/example/order-fulfillment/internal/domain/order"
)

// OrderRepository is the persistence port for the order aggregate. Save
// enforces optimistic concurrency on the aggregate's Version: a stale write
// fails with order.ErrVersionConflict so two racing transitions cannot both
// win.
type OrderRepository interface {
	Create(ctx context.Context, o *order.Order) error
	Save(ctx context.Context, o *order.Order) error
	Get(ctx context.Context, id string) (*order.Order, error)
	GetByOrderNumber(ctx context.Context, orderNumber string) (*order.Order, error)
	ListByUser(ctx context.Context, userID string) ([]*order.Order, error)
	ListByStore(ctx context.Context, storeID string) ([]*order.Order, error)
	ListByStatus(ctx context.Context, status order.Status) ([]*order.Order, error)
	// FindExpired returns orders in any of the given statuses whose
	// expiresAt is at or before now.
	FindExpired(ctx context.Context, statuses []order.Status, now time.Time) ([]*order.Order, error)
}

// EventPublisher is the outbound port, one send-and-forget method per event
// type. Publish failures are logged by implementations and never roll back
// local state.
type EventPublisher interface {
	OrderCreated(ctx context.Context, ev order.OrderCreated) error
	OrderConfirmed(ctx context.Context, ev order.OrderConfirmed) error
	OrderCancelled(ctx context.Context, ev order.OrderCancelled) error
	OrderExpirationNotification(ctx context.Context, ev order.OrderExpirationNotification) error
	OrderTimeout(ctx context.Context, ev order.OrderTimeout) error
}
