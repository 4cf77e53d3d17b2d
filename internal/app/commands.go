package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/example/order-fulfillment/internal/domain/order"
)

// Command names accepted on the command topic.
const (
	CommandCreateOrder = "CreateOrder"
	CommandCancelOrder = "CancelOrder"
	CommandRefundOrder = "RefundOrder"
)

type CreateOrderCommand struct {
	UserID  string            `json:"user_id"`
	StoreID string            `json:"store_id"`
	Items   []order.OrderItem `json:"items"`
}

type CancelOrderCommand struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

type RefundOrderCommand struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

// CommandHandler routes consumed command messages to the OrderService. The
// transport deserializes nothing; it hands the raw payload plus the
// event_type header here.
type CommandHandler struct {
	svc *OrderService
}

func NewCommandHandler(svc *OrderService) *CommandHandler {
	return &CommandHandler{svc: svc}
}

func (h *CommandHandler) Dispatch(ctx context.Context, key, value []byte, commandType string) error {
	switch commandType {
	case CommandCreateOrder:
		var cmd CreateOrderCommand
		if err := json.Unmarshal(value, &cmd); err != nil {
			return fmt.Errorf("failed to decode %s: %w", commandType, err)
		}
		o, err := h.svc.CreateOrder(ctx, CreateOrderInput(cmd))
		if err != nil {
			return err
		}
		log.Printf("[Command] created order %s (%s)", o.ID, o.OrderNumber)
		return nil
	case CommandCancelOrder:
		var cmd CancelOrderCommand
		if err := json.Unmarshal(value, &cmd); err != nil {
			return fmt.Errorf("failed to decode %s: %w", commandType, err)
		}
		return h.svc.CancelOrder(ctx, cmd.OrderID, cmd.Reason)
	case CommandRefundOrder:
		var cmd RefundOrderCommand
		if err := json.Unmarshal(value, &cmd); err != nil {
			return fmt.Errorf("failed to decode %s: %w", commandType, err)
		}
		_, err := h.svc.RefundOrder(ctx, cmd.OrderID, cmd.Reason)
		return err
	default:
		log.Printf("[Command] skipping unknown command type %q", commandType)
		return nil
	}
}
