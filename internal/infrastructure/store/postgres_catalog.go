package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/example/order-fulfillment/internal/catalog"
)

// PostgresCatalog reads the replicated product and store tables that mirror
// the catalog collaborator.
type PostgresCatalog struct {
	db *sql.DB
}

func NewPostgresCatalog(db *sql.DB) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

func (c *PostgresCatalog) LoadByID(ctx context.Context, productID string) (*catalog.Product, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT id, store_id, name, price, stock FROM products WHERE id=$1`, productID)
	var p catalog.Product
	if err := row.Scan(&p.ID, &p.StoreID, &p.Name, &p.Price, &p.Stock); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	return &p, nil
}

func (c *PostgresCatalog) LoadAllByID(ctx context.Context, productIDs []string) ([]*catalog.Product, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, store_id, name, price, stock FROM products WHERE id = ANY($1)`, pq.Array(productIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	defer rows.Close()

	var products []*catalog.Product
	for rows.Next() {
		var p catalog.Product
		if err := rows.Scan(&p.ID, &p.StoreID, &p.Name, &p.Price, &p.Stock); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(products) != len(productIDs) {
		return nil, catalog.ErrProductNotFound
	}
	return products, nil
}

func (c *PostgresCatalog) LoadStore(ctx context.Context, storeID string) (*catalog.Store, error) {
	row := c.db.QueryRowContext(ctx, `SELECT id, name FROM stores WHERE id=$1`, storeID)
	var s catalog.Store
	if err := row.Scan(&s.ID, &s.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, catalog.ErrStoreNotFound
		}
		return nil, fmt.Errorf("failed to load store: %w", err)
	}
	return &s, nil
}

func (c *PostgresCatalog) Exists(ctx context.Context, storeID string) (bool, error) {
	var exists bool
	err := c.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM stores WHERE id=$1)`, storeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check store: %w", err)
	}
	return exists, nil
}

var _ catalog.ProductCatalog = (*PostgresCatalog)(nil)
var _ catalog.StoreDirectory = (*PostgresCatalog)(nil)
