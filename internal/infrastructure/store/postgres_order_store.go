package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/example/order-fulfillment/internal/app"
	"github.com/example/order-fulfillment/internal/domain/order"
)

// ConnectPostgres opens and verifies a PostgreSQL connection.
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return db, nil
}

// PostgresOrderStore persists the order aggregate in the orders table.
// Save is a version-checked UPDATE: zero rows affected means another writer
// got there first and the caller must reload.
type PostgresOrderStore struct {
	db *sql.DB
}

func NewPostgresOrderStore(db *sql.DB) *PostgresOrderStore {
	return &PostgresOrderStore{db: db}
}

const orderColumns = `id, order_number, user_id, store_id, items, total_amount, status,
	reservation_id, payment_id, refund_id, failure_reason,
	expires_at, confirmed_at, cancelled_at, created_at, updated_at, version`

func (s *PostgresOrderStore) Create(ctx context.Context, o *order.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}
	o.Version = 1
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		o.ID, o.OrderNumber, o.UserID, o.StoreID, items, o.TotalAmount, o.Status,
		nullable(o.ReservationID), nullable(o.PaymentID), nullable(o.RefundID), nullable(o.FailureReason),
		o.ExpiresAt, o.ConfirmedAt, o.CancelledAt, o.CreatedAt, o.UpdatedAt, o.Version)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (s *PostgresOrderStore) Save(ctx context.Context, o *order.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE orders SET
			status=$2, reservation_id=$3, payment_id=$4, refund_id=$5,
			failure_reason=$6, expires_at=$7, confirmed_at=$8, cancelled_at=$9,
			items=$10, updated_at=$11, version=version+1
		WHERE id=$1 AND version=$12`,
		o.ID, o.Status, nullable(o.ReservationID), nullable(o.PaymentID), nullable(o.RefundID),
		nullable(o.FailureReason), o.ExpiresAt, o.ConfirmedAt, o.CancelledAt,
		items, o.UpdatedAt, o.Version)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return order.ErrVersionConflict
	}
	o.Version++
	return nil
}

func (s *PostgresOrderStore) Get(ctx context.Context, id string) (*order.Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id)
	return scanOrder(row)
}

func (s *PostgresOrderStore) GetByOrderNumber(ctx context.Context, orderNumber string) (*order.Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_number=$1`, orderNumber)
	return scanOrder(row)
}

func (s *PostgresOrderStore) ListByUser(ctx context.Context, userID string) ([]*order.Order, error) {
	return s.query(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id=$1 ORDER BY created_at DESC`, userID)
}

func (s *PostgresOrderStore) ListByStore(ctx context.Context, storeID string) ([]*order.Order, error) {
	return s.query(ctx, `SELECT `+orderColumns+` FROM orders WHERE store_id=$1 ORDER BY created_at DESC`, storeID)
}

func (s *PostgresOrderStore) ListByStatus(ctx context.Context, status order.Status) ([]*order.Order, error) {
	return s.query(ctx, `SELECT `+orderColumns+` FROM orders WHERE status=$1 ORDER BY created_at DESC`, status)
}

func (s *PostgresOrderStore) FindExpired(ctx context.Context, statuses []order.Status, now time.Time) ([]*order.Order, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	list := make([]string, 0, len(statuses))
	for _, st := range statuses {
		list = append(list, string(st))
	}
	return s.query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status = ANY($1) AND expires_at IS NOT NULL AND expires_at <= $2
		ORDER BY expires_at`, pq.Array(list), now)
}

func (s *PostgresOrderStore) query(ctx context.Context, q string, args ...any) ([]*order.Order, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []*order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*order.Order, error) {
	var o order.Order
	var items []byte
	var reservationID, paymentID, refundID, failureReason sql.NullString
	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.StoreID, &items, &o.TotalAmount, &o.Status,
		&reservationID, &paymentID, &refundID, &failureReason,
		&o.ExpiresAt, &o.ConfirmedAt, &o.CancelledAt, &o.CreatedAt, &o.UpdatedAt, &o.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, order.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("failed to decode order items: %w", err)
	}
	o.ReservationID = reservationID.String
	o.PaymentID = paymentID.String
	o.RefundID = refundID.String
	o.FailureReason = failureReason.String
	return &o, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ app.OrderRepository = (*PostgresOrderStore)(nil)
