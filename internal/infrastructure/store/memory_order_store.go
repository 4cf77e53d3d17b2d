package store

import (
	"context"
	"sync"
	"time"

	"github.com/example/order-fulfillment/internal/app"
	"github.com/example/order-fulfillment/internal/domain/order"
)

// MemoryOrderStore is an in-process OrderRepository with the same optimistic
// version check as the Postgres store.
type MemoryOrderStore struct {
	mu     sync.RWMutex
	orders map[string]order.Order
}

func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{orders: make(map[string]order.Order)}
}

func (s *MemoryOrderStore) Create(ctx context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.Version = 1
	s.orders[o.ID] = *o
	return nil
}

func (s *MemoryOrderStore) Save(ctx context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.orders[o.ID]
	if !ok {
		return order.ErrOrderNotFound
	}
	if stored.Version != o.Version {
		return order.ErrVersionConflict
	}
	o.Version++
	s.orders[o.ID] = *o
	return nil
}

func (s *MemoryOrderStore) Get(ctx context.Context, id string) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	cp := o
	return &cp, nil
}

func (s *MemoryOrderStore) GetByOrderNumber(ctx context.Context, orderNumber string) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orders {
		if o.OrderNumber == orderNumber {
			cp := o
			return &cp, nil
		}
	}
	return nil, order.ErrOrderNotFound
}

func (s *MemoryOrderStore) ListByUser(ctx context.Context, userID string) ([]*order.Order, error) {
	return s.list(func(o order.Order) bool { return o.UserID == userID }), nil
}

func (s *MemoryOrderStore) ListByStore(ctx context.Context, storeID string) ([]*order.Order, error) {
	return s.list(func(o order.Order) bool { return o.StoreID == storeID }), nil
}

func (s *MemoryOrderStore) ListByStatus(ctx context.Context, status order.Status) ([]*order.Order, error) {
	return s.list(func(o order.Order) bool { return o.Status == status }), nil
}

func (s *MemoryOrderStore) FindExpired(ctx context.Context, statuses []order.Status, now time.Time) ([]*order.Order, error) {
	eligible := make(map[order.Status]bool, len(statuses))
	for _, st := range statuses {
		eligible[st] = true
	}
	return s.list(func(o order.Order) bool {
		return eligible[o.Status] && o.ExpiresAt != nil && !now.Before(*o.ExpiresAt)
	}), nil
}

func (s *MemoryOrderStore) list(match func(order.Order) bool) []*order.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*order.Order
	for _, o := range s.orders {
		if match(o) {
			cp := o
			out = append(out, &cp)
		}
	}
	return out
}

var _ app.OrderRepository = (*MemoryOrderStore)(nil)
