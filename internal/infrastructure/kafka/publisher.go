package kafka

import (
	"context"

	"github.com/example/order-fulfillment/internal/app"
	"github.com/example/order-fulfillment/internal/domain/order"
)

// EventPublisher implements the outbound port over the Kafka producer.
// Every method keys the message by order id.
type EventPublisher struct {
	producer *Producer
}

func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func (p *EventPublisher) OrderCreated(ctx context.Context, ev order.OrderCreated) error {
	return p.producer.Publish(ctx, ev.OrderID, order.EventOrderCreated, ev)
}

func (p *EventPublisher) OrderConfirmed(ctx context.Context, ev order.OrderConfirmed) error {
	return p.producer.Publish(ctx, ev.OrderID, order.EventOrderConfirmed, ev)
}

func (p *EventPublisher) OrderCancelled(ctx context.Context, ev order.OrderCancelled) error {
	return p.producer.Publish(ctx, ev.OrderID, order.EventOrderCancelled, ev)
}

func (p *EventPublisher) OrderExpirationNotification(ctx context.Context, ev order.OrderExpirationNotification) error {
	return p.producer.Publish(ctx, ev.OrderID, order.EventOrderExpirationNote, ev)
}

func (p *EventPublisher) OrderTimeout(ctx context.Context, ev order.OrderTimeout) error {
	return p.producer.Publish(ctx, ev.OrderID, order.EventOrderTimeout, ev)
}

var _ app.EventPublisher = (*EventPublisher)(nil)
