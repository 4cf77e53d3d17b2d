package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/example/order-fulfillment/internal/catalog"
	"github.com/example/order-fulfillment/internal/clock"
	"github.com/example/order-fulfillment/internal/domain/order"
	"github.com/example/order-fulfillment/internal/reservation"
)

var ErrStoreUnknown = errors.New("store does not exist")

const defaultReservationTTL = 10 * time.Minute

// OrderService is the command side: it creates orders, runs the reservation
// attempt and publishes the resulting events.
type OrderService struct {
	repo      OrderRepository
	engine    *reservation.Engine
	catalog   catalog.ProductCatalog
	stores    catalog.StoreDirectory
	publisher EventPublisher
	clock     clock.Clock
	ttl       time.Duration
}

type OrderServiceOption func(*OrderService)

// WithReservationTTL overrides the default payment-wait TTL for new orders.
func WithReservationTTL(d time.Duration) OrderServiceOption {
	return func(s *OrderService) {
		if d > 0 {
			s.ttl = d
		}
	}
}

func NewOrderService(repo OrderRepository, engine *reservation.Engine, cat catalog.ProductCatalog, stores catalog.StoreDirectory, publisher EventPublisher, clk clock.Clock, opts ...OrderServiceOption) *OrderService {
	svc := &OrderService{
		repo:      repo,
		engine:    engine,
		catalog:   cat,
		stores:    stores,
		publisher: publisher,
		clock:     clk,
		ttl:       defaultReservationTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type CreateOrderInput struct {
	UserID  string
	StoreID string
	Items   []order.OrderItem
}

// CreateOrder creates a PENDING order, attempts the stock reservation, and
// on success moves the order to STOCK_RESERVED and emits created/confirmed
// events for the payment step. Insufficient stock cancels the order; nothing
// was reserved, so there is no release to run.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*order.Order, error) {
	exists, err := s.stores.Exists(ctx, in.StoreID)
	if err != nil {
		return nil, fmt.Errorf("store lookup failed: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrStoreUnknown, in.StoreID)
	}

	items, err := s.priceItems(ctx, in.StoreID, in.Items)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	o, err := order.New(in.UserID, in.StoreID, items, now)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, o); err != nil {
		return nil, err
	}

	if err := s.publisher.OrderCreated(ctx, order.OrderCreated{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		StoreID:     o.StoreID,
		Items:       o.Items,
		TotalAmount: o.TotalAmount,
		CreatedAt:   o.CreatedAt,
	}); err != nil {
		log.Printf("[OrderService] publish OrderCreated failed for %s: %v", o.ID, err)
	}

	products := make([]reservation.ReservedProduct, 0, len(o.Items))
	for _, item := range o.Items {
		products = append(products, reservation.ReservedProduct{ProductID: item.ProductID, Quantity: int64(item.Quantity)})
	}

	reservationID := uuid.New().String()
	if _, err := s.engine.TryReserve(ctx, o.ID, o.StoreID, products, reservationID, s.ttl); err != nil {
		if cancelErr := s.cancelOrder(ctx, o, "insufficient stock", false); cancelErr != nil {
			log.Printf("[OrderService] cancel after failed reservation failed for %s: %v", o.ID, cancelErr)
		}
		return nil, err
	}

	now = s.clock.Now()
	if err := o.ReserveStock(reservationID, s.ttl, now); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, o); err != nil {
		return nil, err
	}

	if err := s.publisher.OrderConfirmed(ctx, order.OrderConfirmed{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		ReservationID: o.ReservationID,
		TotalAmount:   o.TotalAmount,
		ExpiresAt:     *o.ExpiresAt,
		ConfirmedAt:   now,
	}); err != nil {
		log.Printf("[OrderService] publish OrderConfirmed failed for %s: %v", o.ID, err)
	}
	return o, nil
}

// priceItems resolves names and unit prices from the authoritative catalog
// so a placed order freezes the catalog's numbers, not the caller's.
func (s *OrderService) priceItems(ctx context.Context, storeID string, items []order.OrderItem) ([]order.OrderItem, error) {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.catalog.LoadAllByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*catalog.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	priced := make([]order.OrderItem, 0, len(items))
	for _, item := range items {
		p, ok := byID[item.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", catalog.ErrProductNotFound, item.ProductID)
		}
		if p.StoreID != storeID {
			return nil, fmt.Errorf("product %s does not belong to store %s", item.ProductID, storeID)
		}
		priced = append(priced, order.OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    item.Quantity,
			UnitPrice:   p.Price,
		})
	}
	return priced, nil
}

// CancelOrder is the user-initiated cancellation: guard check, persist,
// release the reservation, emit the cancelled event.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, reason string) error {
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return err
	}
	return s.cancelOrder(ctx, o, reason, true)
}

func (s *OrderService) cancelOrder(ctx context.Context, o *order.Order, reason string, releaseStock bool) error {
	now := s.clock.Now()
	if err := o.Cancel(reason, now); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, o); err != nil {
		return err
	}

	if releaseStock && o.ReservationID != "" {
		if err := s.engine.CancelReservation(ctx, o.ReservationID); err != nil {
			// The expiry sweep is the backstop for a failed release.
			log.Printf("[OrderService] reservation release failed for order %s: %v", o.ID, err)
		}
	}

	if err := s.publisher.OrderCancelled(ctx, order.OrderCancelled{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Reason:      reason,
		CancelledAt: now,
	}); err != nil {
		log.Printf("[OrderService] publish OrderCancelled failed for %s: %v", o.ID, err)
	}
	return nil
}

// RefundOrder refunds a delivered order.
func (s *OrderService) RefundOrder(ctx context.Context, orderID, reason string) (*order.Order, error) {
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := o.Refund(reason, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// GetOrder looks up a single order; a missing order is user-visible
// not-found here, unlike the tolerant SAGA paths.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*order.Order, error) {
	return s.repo.Get(ctx, orderID)
}

func (s *OrderService) GetOrderByNumber(ctx context.Context, orderNumber string) (*order.Order, error) {
	return s.repo.GetByOrderNumber(ctx, orderNumber)
}

func (s *OrderService) ListOrdersByUser(ctx context.Context, userID string) ([]*order.Order, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *OrderService) ListOrdersByStore(ctx context.Context, storeID string) ([]*order.Order, error) {
	return s.repo.ListByStore(ctx, storeID)
}
