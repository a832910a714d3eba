// Package report reduces transaction and stock data into the summaries served
// by the reporting endpoints. Reducers are pure: they take the rows for a
// period and return aggregates, so the same code backs both stores.
package report

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"bengkelpos/backend/internal/domain"
)

// Period is a half-open interval [From, To).
type Period struct {
	Name string    `json:"name"`
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// ResolvePeriod maps a period name to concrete bounds in loc. Custom periods
// take from/to as YYYY-MM-DD dates, with to inclusive of its whole day.
func ResolvePeriod(name, fromStr, toStr string, now time.Time, loc *time.Location) (Period, error) {
	now = now.In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	switch name {
	case "", "today":
		return Period{Name: "today", From: today, To: today.AddDate(0, 0, 1)}, nil
	case "week":
		// Week starts Monday.
		offset := (int(today.Weekday()) + 6) % 7
		start := today.AddDate(0, 0, -offset)
		return Period{Name: "week", From: start, To: start.AddDate(0, 0, 7)}, nil
	case "month":
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
		return Period{Name: "month", From: start, To: start.AddDate(0, 1, 0)}, nil
	case "year":
		start := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, loc)
		return Period{Name: "year", From: start, To: start.AddDate(1, 0, 0)}, nil
	case "custom":
		from, err := time.ParseInLocation("2006-01-02", fromStr, loc)
		if err != nil {
			return Period{}, fmt.Errorf("invalid from date %q", fromStr)
		}
		to, err := time.ParseInLocation("2006-01-02", toStr, loc)
		if err != nil {
			return Period{}, fmt.Errorf("invalid to date %q", toStr)
		}
		if to.Before(from) {
			return Period{}, fmt.Errorf("to date precedes from date")
		}
		return Period{Name: "custom", From: from, To: to.AddDate(0, 0, 1)}, nil
	}
	return Period{}, fmt.Errorf("unknown period %q", name)
}

type SalesByMethod struct {
	Method  string `json:"method"`
	Count   int    `json:"count"`
	Revenue int64  `json:"revenue"`
}

type SalesByType struct {
	Type    string `json:"type"`
	Count   int    `json:"count"`
	Revenue int64  `json:"revenue"`
}

type SalesByDay struct {
	Date    string `json:"date"`
	Count   int    `json:"count"`
	Revenue int64  `json:"revenue"`
}

type SalesSummary struct {
	Period           Period          `json:"period"`
	TransactionCount int             `json:"transaction_count"`
	Revenue          int64           `json:"revenue"`
	Discount         int64           `json:"discount"`
	PointsUsed       int64           `json:"points_used"`
	PointsEarned     int64           `json:"points_earned"`
	AverageTicket    int64           `json:"average_ticket"`
	ByType           []SalesByType   `json:"by_type"`
	ByMethod         []SalesByMethod `json:"by_method"`
	ByDay            []SalesByDay    `json:"by_day"`
}

// Sales reduces the period's transactions into revenue totals with breakdowns
// by transaction type, payment method and day.
func Sales(period Period, txs []domain.Transaction, loc *time.Location) SalesSummary {
	summary := SalesSummary{
		Period:   period,
		ByType:   make([]SalesByType, 0, 2),
		ByMethod: make([]SalesByMethod, 0, 4),
		ByDay:    make([]SalesByDay, 0, 8),
	}
	byType := map[string]*SalesByType{}
	byMethod := map[string]*SalesByMethod{}
	byDay := map[string]*SalesByDay{}
	for _, tx := range txs {
		summary.TransactionCount++
		summary.Revenue += tx.FinalAmount
		summary.Discount += tx.Discount
		summary.PointsUsed += tx.PointsUsed
		summary.PointsEarned += tx.PointsEarned

		t, ok := byType[tx.Type]
		if !ok {
			t = &SalesByType{Type: tx.Type}
			byType[tx.Type] = t
		}
		t.Count++
		t.Revenue += tx.FinalAmount

		m, ok := byMethod[tx.PaymentMethod]
		if !ok {
			m = &SalesByMethod{Method: tx.PaymentMethod}
			byMethod[tx.PaymentMethod] = m
		}
		m.Count++
		m.Revenue += tx.FinalAmount

		date := tx.CreatedAt.In(loc).Format("2006-01-02")
		d, ok := byDay[date]
		if !ok {
			d = &SalesByDay{Date: date}
			byDay[date] = d
		}
		d.Count++
		d.Revenue += tx.FinalAmount
	}
	if summary.TransactionCount > 0 {
		summary.AverageTicket = summary.Revenue / int64(summary.TransactionCount)
	}
	for _, t := range byType {
		summary.ByType = append(summary.ByType, *t)
	}
	for _, m := range byMethod {
		summary.ByMethod = append(summary.ByMethod, *m)
	}
	for _, d := range byDay {
		summary.ByDay = append(summary.ByDay, *d)
	}
	slices.SortFunc(summary.ByType, func(a, b SalesByType) int { return strings.Compare(a.Type, b.Type) })
	slices.SortFunc(summary.ByMethod, func(a, b SalesByMethod) int { return strings.Compare(a.Method, b.Method) })
	slices.SortFunc(summary.ByDay, func(a, b SalesByDay) int { return strings.Compare(a.Date, b.Date) })
	return summary
}

type TopItem struct {
	Kind    string `json:"kind"`
	ItemID  string `json:"item_id"`
	Name    string `json:"name"`
	Qty     int    `json:"qty"`
	Revenue int64  `json:"revenue"`
}

// TopItems ranks sold products and services by quantity, revenue breaking ties.
func TopItems(txs []domain.Transaction, limit int) []TopItem {
	byKey := map[string]*TopItem{}
	for _, tx := range txs {
		for _, item := range tx.Items {
			key := item.Kind + ":" + item.ItemID
			top, ok := byKey[key]
			if !ok {
				top = &TopItem{Kind: item.Kind, ItemID: item.ItemID, Name: item.Name}
				byKey[key] = top
			}
			top.Qty += item.Qty
			top.Revenue += item.Subtotal
		}
	}
	items := make([]TopItem, 0, len(byKey))
	for _, top := range byKey {
		items = append(items, *top)
	}
	slices.SortFunc(items, func(a, b TopItem) int {
		if a.Qty != b.Qty {
			return b.Qty - a.Qty
		}
		if a.Revenue != b.Revenue {
			if b.Revenue > a.Revenue {
				return 1
			}
			return -1
		}
		return strings.Compare(a.Name, b.Name)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

type MovementRow struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	In          int    `json:"in"`
	Out         int    `json:"out"`
	Adjustment  int    `json:"adjustment"`
	Net         int    `json:"net"`
}

type MovementSummary struct {
	Period   Period        `json:"period"`
	TotalIn  int           `json:"total_in"`
	TotalOut int           `json:"total_out"`
	Products []MovementRow `json:"products"`
}

// Movements totals the ledger per product. Adjustment rows contribute their
// delta (stock_after - stock_before), signed.
func Movements(period Period, moves []domain.StockMovement) MovementSummary {
	summary := MovementSummary{Period: period, Products: make([]MovementRow, 0, 8)}
	byProduct := map[string]*MovementRow{}
	for _, mv := range moves {
		row, ok := byProduct[mv.ProductID]
		if !ok {
			row = &MovementRow{ProductID: mv.ProductID, ProductName: mv.ProductName}
			byProduct[mv.ProductID] = row
		}
		switch mv.Direction {
		case domain.MovementIn:
			row.In += mv.Qty
			summary.TotalIn += mv.Qty
		case domain.MovementOut:
			row.Out += mv.Qty
			summary.TotalOut += mv.Qty
		case domain.MovementAdjustment:
			row.Adjustment += mv.StockAfter - mv.StockBefore
		}
		row.Net = row.In - row.Out + row.Adjustment
	}
	for _, row := range byProduct {
		summary.Products = append(summary.Products, *row)
	}
	slices.SortFunc(summary.Products, func(a, b MovementRow) int {
		return strings.Compare(a.ProductName, b.ProductName)
	})
	return summary
}

type MemberRow struct {
	MemberID string `json:"member_id"`
	Name     string `json:"name"`
	Visits   int    `json:"visits"`
	Spend    int64  `json:"spend"`
}

type MemberSummary struct {
	Period     Period      `json:"period"`
	NewMembers int         `json:"new_members"`
	Active     int         `json:"active_members"`
	Top        []MemberRow `json:"top"`
}

// Members counts signups inside the period and ranks member spend across it.
func Members(period Period, members []domain.Member, txs []domain.Transaction, limit int) MemberSummary {
	summary := MemberSummary{Period: period, Top: make([]MemberRow, 0, 8)}
	names := make(map[string]string, len(members))
	for _, m := range members {
		names[m.ID] = m.Name
		if !m.JoinedAt.Before(period.From) && m.JoinedAt.Before(period.To) {
			summary.NewMembers++
		}
	}
	byMember := map[string]*MemberRow{}
	for _, tx := range txs {
		if tx.MemberID == "" {
			continue
		}
		row, ok := byMember[tx.MemberID]
		if !ok {
			row = &MemberRow{MemberID: tx.MemberID, Name: names[tx.MemberID]}
			byMember[tx.MemberID] = row
		}
		row.Visits++
		row.Spend += tx.FinalAmount
	}
	summary.Active = len(byMember)
	for _, row := range byMember {
		summary.Top = append(summary.Top, *row)
	}
	slices.SortFunc(summary.Top, func(a, b MemberRow) int {
		if a.Spend != b.Spend {
			if b.Spend > a.Spend {
				return 1
			}
			return -1
		}
		return strings.Compare(a.Name, b.Name)
	})
	if limit > 0 && len(summary.Top) > limit {
		summary.Top = summary.Top[:limit]
	}
	return summary
}

type CommissionRow struct {
	Technician     string `json:"technician"`
	ServiceCount   int    `json:"service_count"`
	ServiceRevenue int64  `json:"service_revenue"`
	Commission     int64  `json:"commission"`
}

type CommissionSummary struct {
	Period      Period          `json:"period"`
	Percent     float64         `json:"percent"`
	Technicians []CommissionRow `json:"technicians"`
}

// Commissions attributes service-line revenue to technicians and applies the
// configured percentage, rounding down to whole rupiah.
func Commissions(period Period, txs []domain.Transaction, percent float64) CommissionSummary {
	summary := CommissionSummary{Period: period, Percent: percent, Technicians: make([]CommissionRow, 0, 4)}
	byTech := map[string]*CommissionRow{}
	for _, tx := range txs {
		for _, item := range tx.Items {
			if item.Kind != domain.ItemKindService {
				continue
			}
			name := strings.TrimSpace(item.Technician)
			if name == "" {
				continue
			}
			row, ok := byTech[name]
			if !ok {
				row = &CommissionRow{Technician: name}
				byTech[name] = row
			}
			row.ServiceCount += item.Qty
			row.ServiceRevenue += item.Subtotal
		}
	}
	for _, row := range byTech {
		row.Commission = int64(float64(row.ServiceRevenue) * percent / 100)
		summary.Technicians = append(summary.Technicians, *row)
	}
	slices.SortFunc(summary.Technicians, func(a, b CommissionRow) int {
		if a.ServiceRevenue != b.ServiceRevenue {
			if b.ServiceRevenue > a.ServiceRevenue {
				return 1
			}
			return -1
		}
		return strings.Compare(a.Technician, b.Technician)
	})
	return summary
}
