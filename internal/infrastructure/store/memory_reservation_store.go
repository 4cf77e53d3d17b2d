package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/order-fulfillment/internal/reservation"
)

// MemoryReservationStore keeps the primary reservation records and the
// time-ordered expiry index in process. The primary record honors the
// reservation TTL (it disappears like a Redis key would); the index entry
// survives until explicitly claimed so a crashed compensation can still be
// recovered from it.
type MemoryReservationStore struct {
	mu      sync.Mutex
	primary map[string]reservation.StockReservation
	index   map[string]reservation.StockReservation
}

func NewMemoryReservationStore() *MemoryReservationStore {
	return &MemoryReservationStore{
		primary: make(map[string]reservation.StockReservation),
		index:   make(map[string]reservation.StockReservation),
	}
}

func (s *MemoryReservationStore) Save(ctx context.Context, res *reservation.StockReservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.primary[res.ReservationID] = *res
	s.index[res.ReservationID] = *res
	return nil
}

func (s *MemoryReservationStore) Find(ctx context.Context, reservationID string) (*reservation.StockReservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if res, ok := s.primary[reservationID]; ok {
		cp := res
		return &cp, nil
	}
	// Primary may have lapsed while the index entry is still recoverable.
	if res, ok := s.index[reservationID]; ok {
		cp := res
		return &cp, nil
	}
	return nil, reservation.ErrReservationNotFound
}

func (s *MemoryReservationStore) Claim(ctx context.Context, reservationID string) (*reservation.StockReservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, okPrimary := s.primary[reservationID]
	idx, okIndex := s.index[reservationID]
	if !okPrimary && !okIndex {
		return nil, reservation.ErrReservationNotFound
	}
	if !okPrimary {
		res = idx
	}
	delete(s.primary, reservationID)
	delete(s.index, reservationID)
	cp := res
	return &cp, nil
}

func (s *MemoryReservationStore) Expired(ctx context.Context, now time.Time) ([]*reservation.StockReservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []*reservation.StockReservation
	for _, res := range s.index {
		if !res.ExpiresAt.After(now) {
			cp := res
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ExpiresAt.Before(due[j].ExpiresAt) })
	return due, nil
}

// DropPrimary simulates the primary record's TTL lapsing while the expiry
// index entry survives (crash-recovery path). Test helper.
func (s *MemoryReservationStore) DropPrimary(reservationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.primary, reservationID)
}

var _ reservation.Store = (*MemoryReservationStore)(nil)
