// Package cart implements the in-memory order accumulator.
//
// A cart holds one line per product, keyed by product id, and keeps
// lines in the order products were first added so the review screen is
// stable across quantity changes.
package cart

import (
	"sync"

	"github.com/vietpos/terminal/api"
)

// Line is one product entry in the cart
type Line struct {
	Product  api.Product
	Quantity int
}

// Subtotal returns price times quantity for the line
func (l Line) Subtotal() int64 {
	return l.Product.Price * int64(l.Quantity)
}

// Cart accumulates order lines. Safe for concurrent use.
type Cart struct {
	mu    sync.Mutex
	lines map[string]*Line
	order []string
}

// New creates an empty cart
func New() *Cart {
	return &Cart{
		lines: make(map[string]*Line),
	}
}

// Add puts one unit of the product in the cart. Adding a product that
// is already present increments its quantity instead of creating a
// second line.
func (c *Cart) Add(p api.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if line, ok := c.lines[p.ID]; ok {
		line.Quantity++
		return
	}
	c.lines[p.ID] = &Line{Product: p, Quantity: 1}
	c.order = append(c.order, p.ID)
}

// Remove takes one unit of the product out of the cart. The line is
// dropped when its quantity reaches zero. Removing an absent product
// is a no-op.
func (c *Cart) Remove(productID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	line, ok := c.lines[productID]
	if !ok {
		return
	}
	line.Quantity--
	if line.Quantity > 0 {
		return
	}
	delete(c.lines, productID)
	for i, id := range c.order {
		if id == productID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Quantity returns the unit count for a product, zero if absent
func (c *Cart) Quantity(productID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if line, ok := c.lines[productID]; ok {
		return line.Quantity
	}
	return 0
}

// Total returns the sum of all line subtotals in VND
func (c *Cart) Total() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var total int64
	for _, line := range c.lines {
		total += line.Subtotal()
	}
	return total
}

// ItemCount returns the total number of units across all lines
func (c *Cart) ItemCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var count int
	for _, line := range c.lines {
		count += line.Quantity
	}
	return count
}

// Len returns the number of distinct product lines
func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines)
}

// IsEmpty reports whether the cart has no lines
func (c *Cart) IsEmpty() bool {
	return c.Len() == 0
}

// Lines returns a snapshot of the cart in first-added order
func (c *Cart) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Line, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.lines[id])
	}
	return out
}

// Items converts the cart to the order submission shape
func (c *Cart) Items() []api.OrderItem {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]api.OrderItem, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, api.OrderItem{
			ProductID: id,
			Quantity:  c.lines[id].Quantity,
		})
	}
	return out
}

// Clear empties the cart
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = make(map[string]*Line)
	c.order = nil
}
