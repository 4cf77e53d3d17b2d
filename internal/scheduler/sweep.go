package scheduler

import (
	"context"
	"time"

	"github.com/example/order-fulfillment/internal/reservation"
)

// ExpirySweeper releases reservations whose TTL lapsed without an explicit
// confirm or cancel. It is the recovery path for crashed or lost
// compensations.
type ExpirySweeper struct {
	engine *reservation.Engine
}

func NewExpirySweeper(engine *reservation.Engine) *ExpirySweeper {
	return &ExpirySweeper{engine: engine}
}

func (s *ExpirySweeper) Name() string { return "reservation-expiry-sweep" }

func (s *ExpirySweeper) Run(ctx context.Context, now time.Time) error {
	_, err := s.engine.ProcessExpiredReservations(ctx, now)
	return err
}
