package report

import (
	"bytes"
	"testing"
	"time"

	"bengkelpos/backend/internal/domain"
)

var jakarta = time.FixedZone("WIB", 7*3600)

func TestResolvePeriodToday(t *testing.T) {
	now := time.Date(2025, 3, 14, 15, 30, 0, 0, jakarta)
	period, err := ResolvePeriod("today", "", "", now, jakarta)
	if err != nil {
		t.Fatalf("resolve today: %v", err)
	}
	wantFrom := time.Date(2025, 3, 14, 0, 0, 0, 0, jakarta)
	if !period.From.Equal(wantFrom) {
		t.Fatalf("from = %v, want %v", period.From, wantFrom)
	}
	if !period.To.Equal(wantFrom.AddDate(0, 0, 1)) {
		t.Fatalf("to = %v, want next midnight", period.To)
	}
}

func TestResolvePeriodWeekStartsMonday(t *testing.T) {
	// 2025-03-14 is a Friday; the week starts Monday 2025-03-10.
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, jakarta)
	period, err := ResolvePeriod("week", "", "", now, jakarta)
	if err != nil {
		t.Fatalf("resolve week: %v", err)
	}
	wantFrom := time.Date(2025, 3, 10, 0, 0, 0, 0, jakarta)
	if !period.From.Equal(wantFrom) {
		t.Fatalf("from = %v, want %v", period.From, wantFrom)
	}
	if !period.To.Equal(wantFrom.AddDate(0, 0, 7)) {
		t.Fatalf("to = %v, want %v", period.To, wantFrom.AddDate(0, 0, 7))
	}
}

func TestResolvePeriodCustom(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, jakarta)
	period, err := ResolvePeriod("custom", "2025-01-01", "2025-01-31", now, jakarta)
	if err != nil {
		t.Fatalf("resolve custom: %v", err)
	}
	// to is inclusive of its whole day
	if !period.To.Equal(time.Date(2025, 2, 1, 0, 0, 0, 0, jakarta)) {
		t.Fatalf("to = %v, want 2025-02-01 midnight", period.To)
	}
	if _, err := ResolvePeriod("custom", "2025-02-01", "2025-01-01", now, jakarta); err == nil {
		t.Fatal("expected error for reversed custom range")
	}
	if _, err := ResolvePeriod("quarter", "", "", now, jakarta); err == nil {
		t.Fatal("expected error for unknown period")
	}
}

func sampleTransactions() []domain.Transaction {
	day1 := time.Date(2025, 3, 10, 9, 0, 0, 0, jakarta)
	day2 := time.Date(2025, 3, 11, 14, 0, 0, 0, jakarta)
	return []domain.Transaction{
		{
			ID: "trx-1", Type: domain.TxTypeBengkel, MemberID: "mbr-1",
			FinalAmount: 130000, Discount: 0, PointsEarned: 13,
			PaymentMethod: "cash", CreatedAt: day1,
			Items: []domain.TransactionItem{
				{Kind: domain.ItemKindProduct, ItemID: "prd-1", Name: "Oli Mesin", Price: 50000, Qty: 2, Subtotal: 100000},
				{Kind: domain.ItemKindService, ItemID: "svc-1", Name: "Cuci Motor", Price: 30000, Qty: 1, Subtotal: 30000, Technician: "Budi"},
			},
		},
		{
			ID: "trx-2", Type: domain.TxTypeKafe,
			FinalAmount: 25000, PaymentMethod: "qris", CreatedAt: day2,
			Items: []domain.TransactionItem{
				{Kind: domain.ItemKindProduct, ItemID: "prd-2", Name: "Kopi Susu", Price: 12500, Qty: 2, Subtotal: 25000},
			},
		},
		{
			ID: "trx-3", Type: domain.TxTypeBengkel, MemberID: "mbr-1",
			FinalAmount: 60000, PaymentMethod: "cash", CreatedAt: day2,
			Items: []domain.TransactionItem{
				{Kind: domain.ItemKindService, ItemID: "svc-1", Name: "Cuci Motor", Price: 30000, Qty: 2, Subtotal: 60000, Technician: "Budi"},
			},
		},
	}
}

func weekOf(t *testing.T) Period {
	t.Helper()
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, jakarta)
	period, err := ResolvePeriod("week", "", "", now, jakarta)
	if err != nil {
		t.Fatalf("resolve week: %v", err)
	}
	return period
}

func TestSalesSummary(t *testing.T) {
	summary := Sales(weekOf(t), sampleTransactions(), jakarta)
	if summary.TransactionCount != 3 {
		t.Fatalf("count = %d, want 3", summary.TransactionCount)
	}
	if summary.Revenue != 215000 {
		t.Fatalf("revenue = %d, want 215000", summary.Revenue)
	}
	if summary.AverageTicket != 71666 {
		t.Fatalf("average = %d, want 71666", summary.AverageTicket)
	}
	if len(summary.ByType) != 2 || summary.ByType[0].Type != domain.TxTypeBengkel || summary.ByType[0].Revenue != 190000 {
		t.Fatalf("unexpected type breakdown: %+v", summary.ByType)
	}
	if len(summary.ByDay) != 2 || summary.ByDay[0].Date != "2025-03-10" || summary.ByDay[1].Revenue != 85000 {
		t.Fatalf("unexpected day breakdown: %+v", summary.ByDay)
	}
}

func TestTopItemsRanking(t *testing.T) {
	items := TopItems(sampleTransactions(), 2)
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	// Cuci Motor sold 3 times across two transactions.
	if items[0].ItemID != "svc-1" || items[0].Qty != 3 || items[0].Revenue != 90000 {
		t.Fatalf("unexpected top item: %+v", items[0])
	}
}

func TestMovementSummary(t *testing.T) {
	moves := []domain.StockMovement{
		{ProductID: "prd-1", ProductName: "Oli Mesin", Direction: domain.MovementIn, Qty: 10, StockBefore: 0, StockAfter: 10},
		{ProductID: "prd-1", ProductName: "Oli Mesin", Direction: domain.MovementOut, Qty: 2, StockBefore: 10, StockAfter: 8},
		{ProductID: "prd-1", ProductName: "Oli Mesin", Direction: domain.MovementAdjustment, Qty: 1, StockBefore: 8, StockAfter: 7},
	}
	summary := Movements(weekOf(t), moves)
	if summary.TotalIn != 10 || summary.TotalOut != 2 {
		t.Fatalf("totals = %d/%d, want 10/2", summary.TotalIn, summary.TotalOut)
	}
	if len(summary.Products) != 1 {
		t.Fatalf("products = %d, want 1", len(summary.Products))
	}
	row := summary.Products[0]
	if row.Adjustment != -1 || row.Net != 7 {
		t.Fatalf("row = %+v, want adjustment -1 net 7", row)
	}
}

func TestMemberSummary(t *testing.T) {
	period := weekOf(t)
	members := []domain.Member{
		{ID: "mbr-1", Name: "Andi", JoinedAt: time.Date(2025, 3, 11, 0, 0, 0, 0, jakarta)},
		{ID: "mbr-2", Name: "Sari", JoinedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, jakarta)},
	}
	summary := Members(period, members, sampleTransactions(), 5)
	if summary.NewMembers != 1 {
		t.Fatalf("new members = %d, want 1", summary.NewMembers)
	}
	if summary.Active != 1 {
		t.Fatalf("active = %d, want 1", summary.Active)
	}
	if summary.Top[0].MemberID != "mbr-1" || summary.Top[0].Visits != 2 || summary.Top[0].Spend != 190000 {
		t.Fatalf("unexpected top member: %+v", summary.Top[0])
	}
}

func TestCommissionSummary(t *testing.T) {
	summary := Commissions(weekOf(t), sampleTransactions(), 10)
	if len(summary.Technicians) != 1 {
		t.Fatalf("technicians = %d, want 1", len(summary.Technicians))
	}
	row := summary.Technicians[0]
	if row.Technician != "Budi" || row.ServiceCount != 3 || row.ServiceRevenue != 90000 {
		t.Fatalf("unexpected row: %+v", row)
	}
	if row.Commission != 9000 {
		t.Fatalf("commission = %d, want 9000", row.Commission)
	}
}

func TestSalesXLSXProducesWorkbook(t *testing.T) {
	data, err := SalesXLSX(Sales(weekOf(t), sampleTransactions(), jakarta))
	if err != nil {
		t.Fatalf("build workbook: %v", err)
	}
	// xlsx files are zip archives.
	if !bytes.HasPrefix(data, []byte("PK")) {
		t.Fatal("expected zip magic at start of workbook")
	}
}
