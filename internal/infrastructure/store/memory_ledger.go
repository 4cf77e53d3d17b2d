package store

import (
	"context"
	"sync"

	"github.com/example/order-fulfillment/internal/reservation"
)

// MemoryLedger is an in-process stock ledger with compare-and-swap
// semantics, used in tests and single-node wiring.
type MemoryLedger struct {
	mu       sync.Mutex
	counters map[string]int64
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{counters: make(map[string]int64)}
}

func (l *MemoryLedger) Get(ctx context.Context, productID string) (int64, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	qty, ok := l.counters[productID]
	return qty, ok, nil
}

func (l *MemoryLedger) CompareAndSwap(ctx context.Context, productID string, old, new int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	current, ok := l.counters[productID]
	if !ok || current != old {
		return false, nil
	}
	l.counters[productID] = new
	return true, nil
}

func (l *MemoryLedger) Init(ctx context.Context, productID string, quantity int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.counters[productID]; ok {
		return nil
	}
	l.counters[productID] = quantity
	return nil
}

var _ reservation.Ledger = (*MemoryLedger)(nil)
