package report

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// SalesXLSX renders a sales summary as a spreadsheet: totals first, then the
// per-day breakdown.
func SalesXLSX(summary SalesSummary) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())

	rows := [][]interface{}{
		{"Periode", summary.Period.Name},
		{"Dari", summary.Period.From.Format("2006-01-02")},
		{"Sampai", summary.Period.To.AddDate(0, 0, -1).Format("2006-01-02")},
		{"Jumlah Transaksi", summary.TransactionCount},
		{"Pendapatan", summary.Revenue},
		{"Diskon", summary.Discount},
		{"Poin Dipakai", summary.PointsUsed},
		{"Poin Didapat", summary.PointsEarned},
		{"Rata-rata Transaksi", summary.AverageTicket},
		{},
		{"Tanggal", "Transaksi", "Pendapatan"},
	}
	for _, d := range summary.ByDay {
		rows = append(rows, []interface{}{d.Date, d.Count, d.Revenue})
	}
	rows = append(rows, []interface{}{}, []interface{}{"Metode Bayar", "Transaksi", "Pendapatan"})
	for _, m := range summary.ByMethod {
		rows = append(rows, []interface{}{m.Method, m.Count, m.Revenue})
	}
	if err := writeRows(f, sheet, rows); err != nil {
		return nil, err
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func TopItemsXLSX(items []TopItem) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())

	rows := [][]interface{}{{"Jenis", "ID", "Nama", "Terjual", "Pendapatan"}}
	for _, item := range items {
		rows = append(rows, []interface{}{item.Kind, item.ItemID, item.Name, item.Qty, item.Revenue})
	}
	if err := writeRows(f, sheet, rows); err != nil {
		return nil, err
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func MovementsXLSX(summary MovementSummary) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())

	rows := [][]interface{}{
		{"Total Masuk", summary.TotalIn},
		{"Total Keluar", summary.TotalOut},
		{},
		{"ID Produk", "Nama", "Masuk", "Keluar", "Penyesuaian", "Netto"},
	}
	for _, p := range summary.Products {
		rows = append(rows, []interface{}{p.ProductID, p.ProductName, p.In, p.Out, p.Adjustment, p.Net})
	}
	if err := writeRows(f, sheet, rows); err != nil {
		return nil, err
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("sheet row: %w", err)
		}
	}
	return nil
}
