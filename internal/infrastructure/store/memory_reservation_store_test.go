package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/order-fulfillment/internal/reservation"
)

var resNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testReservation(id string, expiresAt time.Time) *reservation.StockReservation {
	return &reservation.StockReservation{
		ReservationID: id,
		OrderID:       "order-" + id,
		StoreID:       "store-1",
		Products:      []reservation.ReservedProduct{{ProductID: "prod-1", Quantity: 3}},
		Status:        reservation.StatusReserved,
		ReservedAt:    resNow,
		ExpiresAt:     expiresAt,
	}
}

// ============================================
// Save / Find Tests
// ============================================

func TestMemoryReservationStore_SaveAndFind(t *testing.T) {
	s := NewMemoryReservationStore()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, testReservation("res-1", resNow.Add(time.Hour))))

	found, err := s.Find(ctx, "res-1")
	require.NoError(t, err)
	assert.Equal(t, "order-res-1", found.OrderID)
	assert.Equal(t, reservation.StatusReserved, found.Status)
}

func TestMemoryReservationStore_FindMissing(t *testing.T) {
	s := NewMemoryReservationStore()

	_, err := s.Find(context.Background(), "res-ghost")

	assert.ErrorIs(t, err, reservation.ErrReservationNotFound)
}

func TestMemoryReservationStore_FindFallsBackToIndex(t *testing.T) {
	s := NewMemoryReservationStore()
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, testReservation("res-1", resNow.Add(time.Hour))))

	s.DropPrimary("res-1")

	found, err := s.Find(ctx, "res-1")
	require.NoError(t, err)
	assert.Equal(t, "res-1", found.ReservationID)
}

// ============================================
// Claim Tests
// ============================================

func TestMemoryReservationStore_Claim(t *testing.T) {
	s := NewMemoryReservationStore()
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, testReservation("res-1", resNow.Add(time.Hour))))

	claimed, err := s.Claim(ctx, "res-1")
	require.NoError(t, err)
	assert.Equal(t, "res-1", claimed.ReservationID)
	assert.Len(t, claimed.Products, 1)

	// Both the primary record and the index entry are gone.
	_, err = s.Find(ctx, "res-1")
	assert.ErrorIs(t, err, reservation.ErrReservationNotFound)
	due, err := s.Expired(ctx, resNow.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestMemoryReservationStore_ClaimTwice(t *testing.T) {
	s := NewMemoryReservationStore()
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, testReservation("res-1", resNow.Add(time.Hour))))

	_, err := s.Claim(ctx, "res-1")
	require.NoError(t, err)

	// Exactly one claimant wins.
	_, err = s.Claim(ctx, "res-1")
	assert.ErrorIs(t, err, reservation.ErrReservationNotFound)
}

func TestMemoryReservationStore_ClaimViaIndexOnly(t *testing.T) {
	s := NewMemoryReservationStore()
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, testReservation("res-1", resNow.Add(time.Hour))))
	s.DropPrimary("res-1")

	claimed, err := s.Claim(ctx, "res-1")
	require.NoError(t, err)
	assert.Equal(t, []reservation.ReservedProduct{{ProductID: "prod-1", Quantity: 3}}, claimed.Products)
}

// ============================================
// Expiry Index Tests
// ============================================

func TestMemoryReservationStore_Expired(t *testing.T) {
	s := NewMemoryReservationStore()
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, testReservation("res-late", resNow.Add(2*time.Hour))))
	require.NoError(t, s.Save(ctx, testReservation("res-early", resNow.Add(10*time.Minute))))
	require.NoError(t, s.Save(ctx, testReservation("res-mid", resNow.Add(30*time.Minute))))

	due, err := s.Expired(ctx, resNow.Add(time.Hour))

	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "res-early", due[0].ReservationID)
	assert.Equal(t, "res-mid", due[1].ReservationID)
}

func TestMemoryReservationStore_Expired_BoundaryInclusive(t *testing.T) {
	s := NewMemoryReservationStore()
	ctx := context.Background()
	deadline := resNow.Add(time.Hour)
	require.NoError(t, s.Save(ctx, testReservation("res-1", deadline)))

	due, err := s.Expired(ctx, deadline)

	require.NoError(t, err)
	assert.Len(t, due, 1)
}

func TestMemoryReservationStore_Expired_SurvivesPrimaryLapse(t *testing.T) {
	s := NewMemoryReservationStore()
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, testReservation("res-1", resNow.Add(10*time.Minute))))
	s.DropPrimary("res-1")

	due, err := s.Expired(ctx, resNow.Add(time.Hour))

	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "res-1", due[0].ReservationID)
}
