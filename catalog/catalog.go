// Package catalog loads and filters the product list shown on the
// terminal's home screen.
package catalog

import (
	"context"
	"sync"

	"github.com/vietpos/terminal/api"
	"github.com/vietpos/terminal/core"
)

// CategoryAll is the synthetic category matching every product
const CategoryAll = "all"

// ProductLister fetches the catalog from the backend
type ProductLister interface {
	ListProducts(ctx context.Context) ([]api.Product, error)
}

// Catalog holds the loaded product list. Safe for concurrent use.
type Catalog struct {
	lister ProductLister
	logger core.Logger

	mu       sync.RWMutex
	products []api.Product
}

// New creates a catalog backed by the given lister
func New(lister ProductLister, logger core.Logger) *Catalog {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Catalog{
		lister: lister,
		logger: logger,
	}
}

// Load fetches the product list, replacing any previous snapshot.
// On failure the previous snapshot is kept.
func (c *Catalog) Load(ctx context.Context) error {
	products, err := c.lister.ListProducts(ctx)
	if err != nil {
		c.logger.Error("Failed to load catalog", map[string]interface{}{
			"error": err.Error(),
		})
		return err
	}

	c.mu.Lock()
	c.products = products
	c.mu.Unlock()

	c.logger.Info("Catalog loaded", map[string]interface{}{
		"products": len(products),
	})
	return nil
}

// Products returns the current snapshot
func (c *Catalog) Products() []api.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]api.Product, len(c.products))
	copy(out, c.products)
	return out
}

// Categories returns CategoryAll followed by the distinct product
// categories in the order they first appear in the catalog.
func (c *Catalog) Categories() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]bool)
	out := []string{CategoryAll}
	for _, p := range c.products {
		if p.Category == "" || seen[p.Category] {
			continue
		}
		seen[p.Category] = true
		out = append(out, p.Category)
	}
	return out
}

// Filter returns the products in the given category. CategoryAll and
// the empty string return the whole catalog.
func (c *Catalog) Filter(category string) []api.Product {
	if category == "" || category == CategoryAll {
		return c.Products()
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []api.Product
	for _, p := range c.products {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

// Find returns the product with the given id, if loaded
func (c *Catalog) Find(productID string) (api.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, p := range c.products {
		if p.ID == productID {
			return p, true
		}
	}
	return api.Product{}, false
}
