package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"bengkelpos/backend/internal/domain"
	"bengkelpos/backend/internal/store"
	"bengkelpos/backend/internal/store/memory"
)

func newTestService() *Service {
	repo := memory.NewSeeded(time.UTC)
	return New(repo, nil, time.Minute, time.UTC)
}

func kasirCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "kasir", Role: "kasir"})
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: "admin"})
}

func TestCheckoutRequiresAuthenticatedActor(t *testing.T) {
	svc := newTestService()

	_, err := svc.Checkout(context.Background(), domain.CheckoutRequest{
		Type:          domain.TxTypeKafe,
		PaymentMethod: "cash",
		PaymentAmount: 12500,
		Items: []domain.CheckoutItem{
			{Kind: domain.ItemKindProduct, ID: "prd-kopi-susu", Qty: 1},
		},
	})
	if err == nil {
		t.Fatalf("expected checkout without actor to fail")
	}
}

func TestCheckoutDeductsStockAndAccruesPoints(t *testing.T) {
	svc := newTestService()
	ctx := kasirCtx()

	// 2x Oli Mesin (100000) + Cuci Kendaraan for an R2/Kecil member (15000).
	tx, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Type:          domain.TxTypeBengkel,
		MemberID:      "mbr-andi",
		PaymentMethod: "cash",
		PaymentAmount: 120000,
		Items: []domain.CheckoutItem{
			{Kind: domain.ItemKindProduct, ID: "prd-oli-mesin", Qty: 2},
			{Kind: domain.ItemKindService, ID: "svc-cuci", Qty: 1, Technician: "Budi"},
		},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if tx.Subtotal != 115000 {
		t.Fatalf("expected subtotal 115000, got %d", tx.Subtotal)
	}
	if tx.FinalAmount != 115000 {
		t.Fatalf("expected final amount 115000, got %d", tx.FinalAmount)
	}
	if tx.ChangeAmount != 5000 {
		t.Fatalf("expected change 5000, got %d", tx.ChangeAmount)
	}
	if tx.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("expected paid status, got %s", tx.PaymentStatus)
	}
	if tx.PointsEarned != 11 {
		t.Fatalf("expected 11 points earned, got %d", tx.PointsEarned)
	}
	if tx.InvoiceNumber == "" {
		t.Fatal("expected an invoice number")
	}
	if tx.Cashier != "kasir" {
		t.Fatalf("expected cashier kasir, got %s", tx.Cashier)
	}

	product, err := svc.GetProduct(ctx, "prd-oli-mesin")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Stock != 18 {
		t.Fatalf("expected stock 18 after checkout, got %d", product.Stock)
	}

	member, err := svc.GetMember(ctx, "mbr-andi")
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if member.Points != 31 {
		t.Fatalf("expected 31 points after checkout, got %d", member.Points)
	}
	if member.VisitCount != 5 {
		t.Fatalf("expected visit count 5, got %d", member.VisitCount)
	}

	movements, err := svc.ListStockMovements(ctx, "prd-oli-mesin", time.Time{}, time.Time{}, 1)
	if err != nil {
		t.Fatalf("list movements: %v", err)
	}
	if len(movements) != 1 {
		t.Fatalf("expected one movement, got %d", len(movements))
	}
	mv := movements[0]
	if mv.Direction != domain.MovementOut || mv.Qty != 2 || mv.StockBefore != 20 || mv.StockAfter != 18 {
		t.Fatalf("unexpected ledger entry: %s qty=%d before=%d after=%d", mv.Direction, mv.Qty, mv.StockBefore, mv.StockAfter)
	}
}

func TestCheckoutRejectsInsufficientStock(t *testing.T) {
	svc := newTestService()

	_, err := svc.Checkout(kasirCtx(), domain.CheckoutRequest{
		Type:          domain.TxTypeBengkel,
		PaymentMethod: "cash",
		PaymentAmount: 99999999,
		Items: []domain.CheckoutItem{
			{Kind: domain.ItemKindProduct, ID: "prd-oli-mesin", Qty: 999},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	// A failed checkout must leave no trace in the ledger.
	product, err := svc.GetProduct(kasirCtx(), "prd-oli-mesin")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Stock != 20 {
		t.Fatalf("expected stock untouched at 20, got %d", product.Stock)
	}
}

func TestCheckoutRejectsOverdrawnPoints(t *testing.T) {
	svc := newTestService()

	_, err := svc.Checkout(kasirCtx(), domain.CheckoutRequest{
		Type:          domain.TxTypeBengkel,
		MemberID:      "mbr-andi",
		PointsUsed:    50,
		PaymentMethod: "cash",
		PaymentAmount: 100000,
		Items: []domain.CheckoutItem{
			{Kind: domain.ItemKindProduct, ID: "prd-oli-mesin", Qty: 2},
		},
	})
	if !errors.Is(err, store.ErrInsufficientPoints) {
		t.Fatalf("expected ErrInsufficientPoints, got %v", err)
	}
}

func TestCheckoutRejectsPointsWithoutMember(t *testing.T) {
	svc := newTestService()

	_, err := svc.Checkout(kasirCtx(), domain.CheckoutRequest{
		Type:          domain.TxTypeKafe,
		PointsUsed:    5,
		PaymentMethod: "cash",
		PaymentAmount: 12500,
		Items: []domain.CheckoutItem{
			{Kind: domain.ItemKindProduct, ID: "prd-kopi-susu", Qty: 1},
		},
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestQuoteResolvesTieredServicePrice(t *testing.T) {
	svc := newTestService()
	ctx := kasirCtx()

	// mbr-sari drives an R4/Sedang: the svc-cuci tier says 35000.
	quote, err := svc.Quote(ctx, domain.QuoteRequest{
		MemberID: "mbr-sari",
		Items: []domain.CheckoutItem{
			{Kind: domain.ItemKindService, ID: "svc-cuci", Qty: 1},
		},
	})
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	if quote.Subtotal != 35000 {
		t.Fatalf("expected member tier price 35000, got %d", quote.Subtotal)
	}

	// Walk-in with an explicit classification.
	quote, err = svc.Quote(ctx, domain.QuoteRequest{
		VehicleType: domain.VehicleTypeR2,
		VehicleSize: domain.VehicleSizeBesar,
		Items: []domain.CheckoutItem{
			{Kind: domain.ItemKindService, ID: "svc-cuci", Qty: 1},
		},
	})
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	if quote.Subtotal != 20000 {
		t.Fatalf("expected explicit tier price 20000, got %d", quote.Subtotal)
	}
}

func TestResolveServicePriceTierRules(t *testing.T) {
	svc := newTestService()
	ctx := kasirCtx()

	// Tiered service, unmatched combination: price is zero, never the base.
	price, err := svc.ResolveServicePrice(ctx, "svc-cuci", domain.VehicleTypeR3, domain.VehicleSizeKecil)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if price != 0 {
		t.Fatalf("expected 0 for unmatched tier, got %d", price)
	}

	// Untiered service falls back to the base price.
	price, err = svc.ResolveServicePrice(ctx, "svc-servis-ringan", domain.VehicleTypeR2, domain.VehicleSizeKecil)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if price != 50000 {
		t.Fatalf("expected base price 50000, got %d", price)
	}
}

func TestQueueLifecycle(t *testing.T) {
	svc := newTestService()
	ctx := kasirCtx()

	queue, err := svc.CreateQueue(ctx, domain.QueueCreateRequest{MemberID: "mbr-andi"})
	if err != nil {
		t.Fatalf("create queue: %v", err)
	}
	if queue.TicketNumber != "Q001" {
		t.Fatalf("expected ticket Q001, got %s", queue.TicketNumber)
	}
	if queue.Status != domain.QueueStatusWaiting {
		t.Fatalf("expected waiting status, got %s", queue.Status)
	}
	if queue.MemberName != "Andi Wijaya" {
		t.Fatalf("expected joined member name, got %q", queue.MemberName)
	}

	second, err := svc.CreateQueue(ctx, domain.QueueCreateRequest{VehiclePlate: "B 9999 XYZ"})
	if err != nil {
		t.Fatalf("create second queue: %v", err)
	}
	if second.TicketNumber != "Q002" {
		t.Fatalf("expected ticket Q002, got %s", second.TicketNumber)
	}

	if _, err := svc.UpdateQueueStatus(ctx, queue.ID, domain.QueueStatusInService); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if _, err := svc.UpdateQueueStatus(ctx, queue.ID, domain.QueueStatusInService); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on repeat transition, got %v", err)
	}

	// Only waiting tickets may be removed.
	if err := svc.DeleteQueue(ctx, queue.ID); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState deleting in-service ticket, got %v", err)
	}
	if err := svc.DeleteQueue(ctx, second.ID); err != nil {
		t.Fatalf("delete waiting ticket: %v", err)
	}

	// Checkout closes the linked ticket.
	tx, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Type:          domain.TxTypeBengkel,
		MemberID:      "mbr-andi",
		QueueID:       queue.ID,
		PaymentMethod: "cash",
		PaymentAmount: 15000,
		Items: []domain.CheckoutItem{
			{Kind: domain.ItemKindService, ID: "svc-cuci", Qty: 1},
		},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	closed, err := svc.GetQueue(ctx, queue.ID)
	if err != nil {
		t.Fatalf("get queue: %v", err)
	}
	if closed.Status != domain.QueueStatusDone {
		t.Fatalf("expected done status after checkout, got %s", closed.Status)
	}
	if closed.TransactionID != tx.ID {
		t.Fatalf("expected queue linked to %s, got %s", tx.ID, closed.TransactionID)
	}

	// A closed ticket already carries its transaction and cannot be linked
	// to another checkout.
	_, err = svc.Checkout(ctx, domain.CheckoutRequest{
		Type:          domain.TxTypeBengkel,
		QueueID:       queue.ID,
		PaymentMethod: "cash",
		PaymentAmount: 15000,
		Items: []domain.CheckoutItem{
			{Kind: domain.ItemKindService, ID: "svc-cuci", Qty: 1},
		},
	})
	if !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState reusing closed ticket, got %v", err)
	}
}

func TestLoyaltyMilestoneClaimedOnce(t *testing.T) {
	svc := newTestService()
	ctx := kasirCtx()

	// mbr-andi sits at 4 visits; the fifth reaches the milestone.
	_, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Type:          domain.TxTypeBengkel,
		MemberID:      "mbr-andi",
		PaymentMethod: "cash",
		PaymentAmount: 15000,
		Items: []domain.CheckoutItem{
			{Kind: domain.ItemKindService, ID: "svc-cuci", Qty: 1},
		},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	status, err := svc.LoyaltyStatus(ctx, "mbr-andi")
	if err != nil {
		t.Fatalf("loyalty status: %v", err)
	}
	if !status.Eligible || status.Milestone != 5 {
		t.Fatalf("expected eligible at milestone 5, got eligible=%v milestone=%d", status.Eligible, status.Milestone)
	}

	claim, err := svc.ClaimReward(ctx, "mbr-andi")
	if err != nil {
		t.Fatalf("claim reward: %v", err)
	}
	if claim.MilestoneVisit != 5 || claim.RewardName != "Cuci Gratis" {
		t.Fatalf("unexpected claim: %+v", claim)
	}

	if _, err := svc.ClaimReward(ctx, "mbr-andi"); !errors.Is(err, store.ErrMilestoneClaimed) {
		t.Fatalf("expected ErrMilestoneClaimed on second claim, got %v", err)
	}

	status, err = svc.LoyaltyStatus(ctx, "mbr-andi")
	if err != nil {
		t.Fatalf("loyalty status: %v", err)
	}
	if status.Eligible {
		t.Fatalf("expected eligibility consumed after claim")
	}
}

func TestTerminPaymentSettlesTransaction(t *testing.T) {
	svc := newTestService()
	ctx := kasirCtx()

	tx, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Type:          domain.TxTypeBengkel,
		MemberID:      "mbr-sari",
		PaymentMethod: "cash",
		PaymentAmount: 40000,
		Items: []domain.CheckoutItem{
			{Kind: domain.ItemKindProduct, ID: "prd-oli-mesin", Qty: 2},
		},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if tx.PaymentStatus != domain.PaymentStatusTermin {
		t.Fatalf("expected termin status, got %s", tx.PaymentStatus)
	}
	if len(tx.Payments) != 1 || tx.Payments[0].Amount != 40000 {
		t.Fatalf("expected initial payment of 40000 recorded, got %+v", tx.Payments)
	}

	settled, err := svc.AddPayment(ctx, tx.ID, domain.PaymentCreateRequest{Amount: 60000, Method: "transfer"})
	if err != nil {
		t.Fatalf("add payment: %v", err)
	}
	if settled.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("expected paid after settlement, got %s", settled.PaymentStatus)
	}

	if _, err := svc.AddPayment(ctx, tx.ID, domain.PaymentCreateRequest{Amount: 1000, Method: "cash"}); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState paying a settled transaction, got %v", err)
	}
}

func TestStockMutationsRequireAdmin(t *testing.T) {
	svc := newTestService()

	_, err := svc.StockIn(kasirCtx(), domain.StockInRequest{ProductID: "prd-busi", Qty: 5})
	if err == nil {
		t.Fatalf("expected kasir stock-in to be rejected")
	}

	mv, err := svc.StockIn(adminCtx(), domain.StockInRequest{ProductID: "prd-busi", Qty: 5, Description: "Restock"})
	if err != nil {
		t.Fatalf("stock in: %v", err)
	}
	if mv.StockBefore != 20 || mv.StockAfter != 25 {
		t.Fatalf("unexpected movement: before=%d after=%d", mv.StockBefore, mv.StockAfter)
	}

	adj, err := svc.StockAdjust(adminCtx(), domain.StockAdjustmentRequest{ProductID: "prd-busi", NewTotal: 22, Description: "Stock opname"})
	if err != nil {
		t.Fatalf("stock adjust: %v", err)
	}
	if adj.Direction != domain.MovementAdjustment || adj.StockAfter != 22 {
		t.Fatalf("unexpected adjustment: %+v", adj)
	}

	drifts, err := svc.ReconcileStock(adminCtx())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(drifts) != 0 {
		t.Fatalf("expected no drift after ledger-driven changes, got %+v", drifts)
	}
}

func TestUpdateMemberPointsRequiresAdmin(t *testing.T) {
	svc := newTestService()

	points := int64(100)
	_, err := svc.UpdateMember(kasirCtx(), "mbr-andi", domain.MemberUpdateRequest{Points: &points})
	if err == nil {
		t.Fatalf("expected kasir point edit to be rejected")
	}

	member, err := svc.UpdateMember(adminCtx(), "mbr-andi", domain.MemberUpdateRequest{Points: &points})
	if err != nil {
		t.Fatalf("admin point edit: %v", err)
	}
	if member.Points != 100 {
		t.Fatalf("expected 100 points, got %d", member.Points)
	}
}

func TestCreateMemberRejectsDuplicatePhone(t *testing.T) {
	svc := newTestService()

	_, err := svc.CreateMember(kasirCtx(), domain.MemberCreateRequest{
		Name:  "Duplikat",
		Phone: "081234560001",
	})
	if !errors.Is(err, store.ErrDuplicatePhone) {
		t.Fatalf("expected ErrDuplicatePhone, got %v", err)
	}
}

func TestReminderScanMarksDue(t *testing.T) {
	svc := newTestService()
	ctx := kasirCtx()

	reminder, err := svc.CreateReminder(ctx, domain.ReminderCreateRequest{
		MemberID:    "mbr-andi",
		ServiceName: "Ganti Oli",
		DueDate:     "2026-01-15",
	})
	if err != nil {
		t.Fatalf("create reminder: %v", err)
	}
	if reminder.Status != domain.ReminderStatusPending {
		t.Fatalf("expected pending status, got %s", reminder.Status)
	}

	updated, err := svc.UpdateReminderStatus(ctx, reminder.ID, domain.ReminderStatusSent)
	if err != nil {
		t.Fatalf("update reminder: %v", err)
	}
	if updated.Status != domain.ReminderStatusSent {
		t.Fatalf("expected sent status, got %s", updated.Status)
	}
}

func TestSalesReportAggregatesCheckouts(t *testing.T) {
	svc := newTestService()
	ctx := kasirCtx()

	_, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Type:          domain.TxTypeKafe,
		PaymentMethod: "cash",
		PaymentAmount: 25000,
		Items: []domain.CheckoutItem{
			{Kind: domain.ItemKindProduct, ID: "prd-kopi-susu", Qty: 2},
		},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	summary, err := svc.SalesReport(ctx, "today", "", "")
	if err != nil {
		t.Fatalf("sales report: %v", err)
	}
	if summary.TransactionCount != 1 {
		t.Fatalf("expected one transaction today, got %d", summary.TransactionCount)
	}
	if summary.Revenue != 25000 {
		t.Fatalf("expected revenue 25000, got %d", summary.Revenue)
	}
	if len(summary.ByType) != 1 || summary.ByType[0].Type != domain.TxTypeKafe || summary.ByType[0].Revenue != 25000 {
		t.Fatalf("expected kafe revenue 25000, got %+v", summary.ByType)
	}
}
