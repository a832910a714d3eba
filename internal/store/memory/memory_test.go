package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"bengkelpos/backend/internal/domain"
	"bengkelpos/backend/internal/store"
)

func TestCheckoutRejectsDuplicateLinesOversellingStock(t *testing.T) {
	repo := NewSeeded(time.UTC)
	ctx := context.Background()

	// Two lines of the same product, each within stock on its own (20 on
	// hand), but 30 in total.
	tx := domain.Transaction{
		Type: domain.TxTypeBengkel,
		Items: []domain.TransactionItem{
			{Kind: domain.ItemKindProduct, ItemID: "prd-busi", Name: "Busi", Price: 18000, Qty: 15},
			{Kind: domain.ItemKindProduct, ItemID: "prd-busi", Name: "Busi", Price: 18000, Qty: 15},
		},
		PaymentMethod: "cash",
		PaymentAmount: 540000,
	}
	if _, err := repo.CreateCheckout(ctx, tx, domain.PointConfig{EarnPer: 10000, EarnPoint: 1}); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("CreateCheckout err = %v, want ErrInsufficientStock", err)
	}

	product, err := repo.GetProduct(ctx, "prd-busi")
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if product.Stock != 20 {
		t.Fatalf("stock after failed checkout = %d, want 20", product.Stock)
	}

	// Duplicate lines that fit together still go through.
	tx.Items[0].Qty = 8
	tx.Items[1].Qty = 8
	tx.PaymentAmount = 288000
	created, err := repo.CreateCheckout(ctx, tx, domain.PointConfig{EarnPer: 10000, EarnPoint: 1})
	if err != nil {
		t.Fatalf("CreateCheckout: %v", err)
	}
	if created.Subtotal != 288000 {
		t.Fatalf("subtotal = %d, want 288000", created.Subtotal)
	}
	product, err = repo.GetProduct(ctx, "prd-busi")
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if product.Stock != 4 {
		t.Fatalf("stock after checkout = %d, want 4", product.Stock)
	}
}
