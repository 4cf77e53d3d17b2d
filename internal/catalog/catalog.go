package catalog

import (
	"context"
	"errors"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrStoreNotFound   = errors.New("store not found")
)

// Product is the catalog's view of a sellable item, including the
// authoritative initial stock used to seed the ledger lazily.
type Product struct {
	ID      string
	StoreID string
	Name    string
	Price   int64
	Stock   int64
}

type Store struct {
	ID   string
	Name string
}

// ProductCatalog is the collaborator port for product lookups.
type ProductCatalog interface {
	LoadByID(ctx context.Context, productID string) (*Product, error)
	LoadAllByID(ctx context.Context, productIDs []string) ([]*Product, error)
}

// StoreDirectory is the collaborator port for store existence checks.
type StoreDirectory interface {
	LoadStore(ctx context.Context, storeID string) (*Store, error)
	Exists(ctx context.Context, storeID string) (bool, error)
}
