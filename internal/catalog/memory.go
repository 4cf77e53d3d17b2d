package catalog

import (
	"context"
	"sync"
)

// MemoryCatalog is an in-memory ProductCatalog, used in tests and local
// wiring where the real catalog service is absent.
type MemoryCatalog struct {
	mu       sync.RWMutex
	products map[string]Product
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{products: make(map[string]Product)}
}

func (c *MemoryCatalog) AddProduct(p Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
}

func (c *MemoryCatalog) LoadByID(ctx context.Context, productID string) (*Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[productID]
	if !ok {
		return nil, ErrProductNotFound
	}
	return &p, nil
}

func (c *MemoryCatalog) LoadAllByID(ctx context.Context, productIDs []string) ([]*Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	products := make([]*Product, 0, len(productIDs))
	for _, id := range productIDs {
		p, ok := c.products[id]
		if !ok {
			return nil, ErrProductNotFound
		}
		cp := p
		products = append(products, &cp)
	}
	return products, nil
}

// MemoryDirectory is an in-memory StoreDirectory.
type MemoryDirectory struct {
	mu     sync.RWMutex
	stores map[string]Store
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{stores: make(map[string]Store)}
}

func (d *MemoryDirectory) AddStore(s Store) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stores[s.ID] = s
}

func (d *MemoryDirectory) LoadStore(ctx context.Context, storeID string) (*Store, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.stores[storeID]
	if !ok {
		return nil, ErrStoreNotFound
	}
	return &s, nil
}

func (d *MemoryDirectory) Exists(ctx context.Context, storeID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.stores[storeID]
	return ok, nil
}
