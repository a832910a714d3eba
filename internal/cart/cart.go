// Package cart holds an in-progress sale before checkout: an ordered list of
// product/service lines keyed by (item id, kind).
package cart

import "bengkelpos/backend/internal/domain"

type Line struct {
	Kind       string
	ItemID     string
	Name       string
	Price      int64
	Qty        int
	Technician string
}

func (l Line) Subtotal() int64 {
	return l.Price * int64(l.Qty)
}

type Cart struct {
	lines []Line
}

func New() *Cart {
	return &Cart{lines: make([]Line, 0, 8)}
}

// Add merges into an existing line with the same (item id, kind), incrementing
// quantity; otherwise it appends a new line with qty 1.
func (c *Cart) Add(line Line) {
	if line.Qty < 1 {
		line.Qty = 1
	}
	for i := range c.lines {
		if c.lines[i].ItemID == line.ItemID && c.lines[i].Kind == line.Kind {
			c.lines[i].Qty += line.Qty
			return
		}
	}
	c.lines = append(c.lines, line)
}

// SetQty sets a line's quantity directly, flooring at 1. Use Remove to drop a line.
func (c *Cart) SetQty(itemID, kind string, qty int) bool {
	if qty < 1 {
		qty = 1
	}
	for i := range c.lines {
		if c.lines[i].ItemID == itemID && c.lines[i].Kind == kind {
			c.lines[i].Qty = qty
			return true
		}
	}
	return false
}

func (c *Cart) Remove(itemID, kind string) bool {
	for i := range c.lines {
		if c.lines[i].ItemID == itemID && c.lines[i].Kind == kind {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Total() int64 {
	var total int64
	for _, line := range c.lines {
		total += line.Subtotal()
	}
	return total
}

// Reprice re-resolves every service line's unit price, keeping quantities.
// Called when the attached member (and thus the vehicle classification)
// changes while items are already in the cart.
func (c *Cart) Reprice(resolve func(serviceID string) int64) {
	for i := range c.lines {
		if c.lines[i].Kind != domain.ItemKindService {
			continue
		}
		c.lines[i].Price = resolve(c.lines[i].ItemID)
	}
}

// Items converts the cart into transaction item snapshots.
func (c *Cart) Items() []domain.TransactionItem {
	items := make([]domain.TransactionItem, 0, len(c.lines))
	for _, line := range c.lines {
		items = append(items, domain.TransactionItem{
			Kind:       line.Kind,
			ItemID:     line.ItemID,
			Name:       line.Name,
			Price:      line.Price,
			Qty:        line.Qty,
			Subtotal:   line.Subtotal(),
			Technician: line.Technician,
		})
	}
	return items
}
