package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"bengkelpos/backend/internal/domain"
)

func TestCheckoutDeductsStockAndAccruesPoints(t *testing.T) {
	databaseURL := os.Getenv("BENGKELPOS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set BENGKELPOS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	loc, err := time.LoadLocation("Asia/Jakarta")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	s, err := New(ctx, databaseURL, loc)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	productID := fmt.Sprintf("prd-it-%d", stamp)
	memberID := fmt.Sprintf("mbr-it-%d", stamp)
	txID := fmt.Sprintf("trx-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM transaction_payments WHERE transaction_id = $1`, txID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM transaction_items WHERE transaction_id = $1`, txID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, txID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM stock_movements WHERE product_id = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM members WHERE id = $1`, memberID)
	})

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category, price, cost_price, stock, min_stock, unit, active, created_at, updated_at)
		VALUES ($1, 'Oli IT', 'oli', 50000, 35000, 10, 2, 'botol', true, now(), now())
	`, productID); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO members (id, member_code, name, phone, points, visit_count, joined_at)
		VALUES ($1, $2, 'Member IT', $3, 5, 1, now())
	`, memberID, fmt.Sprintf("MBR-IT-%d", stamp), fmt.Sprintf("08%d", stamp)); err != nil {
		t.Fatalf("insert member: %v", err)
	}

	tx := domain.Transaction{
		ID:       txID,
		Type:     domain.TxTypeBengkel,
		MemberID: memberID,
		Items: []domain.TransactionItem{
			{Kind: domain.ItemKindProduct, ItemID: productID, Name: "Oli IT", Price: 50000, Qty: 2},
		},
		PaymentMethod: "cash",
		PaymentAmount: 100000,
		Cashier:       "kasir",
	}

	created, err := s.CreateCheckout(ctx, tx, domain.PointConfig{EarnPer: 10000, EarnPoint: 1})
	if err != nil {
		t.Fatalf("create checkout: %v", err)
	}
	if created.FinalAmount != 100000 {
		t.Fatalf("expected final amount 100000, got %d", created.FinalAmount)
	}
	if created.PointsEarned != 10 {
		t.Fatalf("expected 10 points earned, got %d", created.PointsEarned)
	}
	if created.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("expected payment status paid, got %s", created.PaymentStatus)
	}
	if created.InvoiceNumber == "" {
		t.Fatal("expected an invoice number")
	}

	var stock int
	if err := s.db.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock); err != nil {
		t.Fatalf("query stock: %v", err)
	}
	if stock != 8 {
		t.Fatalf("expected stock 8 after checkout, got %d", stock)
	}

	var points int64
	var visits int
	if err := s.db.QueryRowContext(ctx, `
		SELECT points, visit_count FROM members WHERE id = $1
	`, memberID).Scan(&points, &visits); err != nil {
		t.Fatalf("query member: %v", err)
	}
	if points != 15 {
		t.Fatalf("expected 15 points after checkout, got %d", points)
	}
	if visits != 2 {
		t.Fatalf("expected visit count 2 after checkout, got %d", visits)
	}

	var direction string
	var qty, before, after int
	if err := s.db.QueryRowContext(ctx, `
		SELECT direction, qty, stock_before, stock_after
		FROM stock_movements
		WHERE product_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, productID).Scan(&direction, &qty, &before, &after); err != nil {
		t.Fatalf("query movement: %v", err)
	}
	if direction != domain.MovementOut || qty != 2 || before != 10 || after != 8 {
		t.Fatalf("unexpected ledger entry: %s qty=%d before=%d after=%d", direction, qty, before, after)
	}
}
