package mocks

import (
	"context"
	"sync"

	"github.com/example/order-fulfillment/internal/domain/order"
)

// MockEventPublisher is a mock implementation of EventPublisher for testing
type MockEventPublisher struct {
	mu sync.Mutex

	// For tracking published events in tests
	CreatedEvents    []order.OrderCreated
	ConfirmedEvents  []order.OrderConfirmed
	CancelledEvents  []order.OrderCancelled
	ExpirationEvents []order.OrderExpirationNotification
	TimeoutEvents    []order.OrderTimeout

	PublishErr error
}

// NewMockEventPublisher creates a new MockEventPublisher
func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{}
}

func (m *MockEventPublisher) OrderCreated(ctx context.Context, ev order.OrderCreated) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreatedEvents = append(m.CreatedEvents, ev)
	return m.PublishErr
}

func (m *MockEventPublisher) OrderConfirmed(ctx context.Context, ev order.OrderConfirmed) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ConfirmedEvents = append(m.ConfirmedEvents, ev)
	return m.PublishErr
}

func (m *MockEventPublisher) OrderCancelled(ctx context.Context, ev order.OrderCancelled) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CancelledEvents = append(m.CancelledEvents, ev)
	return m.PublishErr
}

func (m *MockEventPublisher) OrderExpirationNotification(ctx context.Context, ev order.OrderExpirationNotification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ExpirationEvents = append(m.ExpirationEvents, ev)
	return m.PublishErr
}

func (m *MockEventPublisher) OrderTimeout(ctx context.Context, ev order.OrderTimeout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TimeoutEvents = append(m.TimeoutEvents, ev)
	return m.PublishErr
}

// Reset clears all recorded events
func (m *MockEventPublisher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreatedEvents = nil
	m.ConfirmedEvents = nil
	m.CancelledEvents = nil
	m.ExpirationEvents = nil
	m.TimeoutEvents = nil
}
