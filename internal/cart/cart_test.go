package cart

import (
	"testing"

	"bengkelpos/backend/internal/domain"
)

func TestAddMergesSameItem(t *testing.T) {
	c := New()
	c.Add(Line{Kind: domain.ItemKindProduct, ItemID: "prd-1", Name: "Kopi Susu", Price: 18000, Qty: 1})
	c.Add(Line{Kind: domain.ItemKindProduct, ItemID: "prd-1", Name: "Kopi Susu", Price: 18000, Qty: 1})

	lines := c.Lines()
	if len(lines) != 1 {
		t.Fatalf("expected 1 merged line, got %d", len(lines))
	}
	if lines[0].Qty != 2 {
		t.Fatalf("expected qty 2, got %d", lines[0].Qty)
	}
	if lines[0].Subtotal() != 36000 {
		t.Fatalf("expected subtotal 36000, got %d", lines[0].Subtotal())
	}
}

func TestSameIDDifferentKindAreSeparateLines(t *testing.T) {
	c := New()
	c.Add(Line{Kind: domain.ItemKindProduct, ItemID: "x-1", Price: 5000})
	c.Add(Line{Kind: domain.ItemKindService, ItemID: "x-1", Price: 20000})

	if len(c.Lines()) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(c.Lines()))
	}
}

func TestSetQtyFloorsAtOne(t *testing.T) {
	c := New()
	c.Add(Line{Kind: domain.ItemKindProduct, ItemID: "prd-1", Price: 5000})

	if !c.SetQty("prd-1", domain.ItemKindProduct, 0) {
		t.Fatalf("expected SetQty to find the line")
	}
	if got := c.Lines()[0].Qty; got != 1 {
		t.Fatalf("expected qty floored to 1, got %d", got)
	}

	c.SetQty("prd-1", domain.ItemKindProduct, 7)
	if got := c.Lines()[0].Qty; got != 7 {
		t.Fatalf("expected qty 7, got %d", got)
	}
}

func TestRemoveDeletesLine(t *testing.T) {
	c := New()
	c.Add(Line{Kind: domain.ItemKindProduct, ItemID: "prd-1", Price: 5000})
	c.Add(Line{Kind: domain.ItemKindService, ItemID: "svc-1", Price: 30000})

	if !c.Remove("prd-1", domain.ItemKindProduct) {
		t.Fatalf("expected Remove to succeed")
	}
	if len(c.Lines()) != 1 || c.Lines()[0].ItemID != "svc-1" {
		t.Fatalf("unexpected lines after remove: %+v", c.Lines())
	}
}

func TestTotalIsSumOfLineSubtotals(t *testing.T) {
	c := New()
	c.Add(Line{Kind: domain.ItemKindProduct, ItemID: "prd-1", Price: 50000, Qty: 2})
	c.Add(Line{Kind: domain.ItemKindService, ItemID: "svc-1", Price: 30000, Qty: 1})

	if got := c.Total(); got != 130000 {
		t.Fatalf("expected total 130000, got %d", got)
	}
}

func TestRepriceOnMemberChangeOnlyTouchesServices(t *testing.T) {
	c := New()
	c.Add(Line{Kind: domain.ItemKindProduct, ItemID: "prd-1", Price: 50000, Qty: 2})
	c.Add(Line{Kind: domain.ItemKindService, ItemID: "svc-1", Price: 30000, Qty: 1})

	// Member switched to a vehicle with no matching tier: service drops to 0.
	c.Reprice(func(serviceID string) int64 { return 0 })

	if got := c.Total(); got != 100000 {
		t.Fatalf("expected total 100000 after reprice, got %d", got)
	}
	for _, line := range c.Lines() {
		if line.Kind == domain.ItemKindProduct && line.Price != 50000 {
			t.Fatalf("product price must not change on reprice, got %d", line.Price)
		}
	}
}
