package httpapi

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"bengkelpos/backend/internal/domain"
	"bengkelpos/backend/internal/report"
)

func salesSummaryToCSV(summary report.SalesSummary) string {
	lines := []string{
		"section,key,value",
		fmt.Sprintf("summary,period,%s", summary.Period.Name),
		fmt.Sprintf("summary,from,%s", summary.Period.From.Format("2006-01-02")),
		fmt.Sprintf("summary,to,%s", summary.Period.To.Format("2006-01-02")),
		fmt.Sprintf("summary,transactions,%d", summary.TransactionCount),
		fmt.Sprintf("summary,revenue,%d", summary.Revenue),
		fmt.Sprintf("summary,discount,%d", summary.Discount),
		fmt.Sprintf("summary,points_used,%d", summary.PointsUsed),
		fmt.Sprintf("summary,points_earned,%d", summary.PointsEarned),
		fmt.Sprintf("summary,average_ticket,%d", summary.AverageTicket),
	}
	for _, byType := range summary.ByType {
		lines = append(lines, fmt.Sprintf("type,%s_transactions,%d", byType.Type, byType.Count))
		lines = append(lines, fmt.Sprintf("type,%s_revenue,%d", byType.Type, byType.Revenue))
	}
	for _, byMethod := range summary.ByMethod {
		lines = append(lines, fmt.Sprintf("payment,%s_transactions,%d", byMethod.Method, byMethod.Count))
		lines = append(lines, fmt.Sprintf("payment,%s_revenue,%d", byMethod.Method, byMethod.Revenue))
	}
	for _, byDay := range summary.ByDay {
		lines = append(lines, fmt.Sprintf("day,%s_transactions,%d", byDay.Date, byDay.Count))
		lines = append(lines, fmt.Sprintf("day,%s_revenue,%d", byDay.Date, byDay.Revenue))
	}
	return strings.Join(lines, "\n") + "\n"
}

// salesReportHTMLTmpl renders the printable sales report. All user-controlled
// fields are auto-escaped by html/template to prevent XSS.
var salesReportHTMLTmpl = template.Must(template.New("sales-report").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Laporan Penjualan {{.Period.Name}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; font-size: 13px; }
    h2, h3 { margin-bottom: 4px; }
  </style>
</head>
<body>
  <h2>Laporan Penjualan ({{.Period.Name}})</h2>
  <p>{{.Period.From.Format "2006-01-02"}} s/d {{.Period.To.Format "2006-01-02"}}</p>
  <p>Transaksi: {{.TransactionCount}} | Pendapatan: Rp {{.Revenue}} | Diskon: Rp {{.Discount}} | Rata-rata: Rp {{.AverageTicket}}</p>

  <h3>Per Jenis</h3>
  <table>
    <thead><tr><th>Jenis</th><th>Transaksi</th><th>Pendapatan</th></tr></thead>
    <tbody>{{range .ByType}}<tr><td>{{.Type}}</td><td style="text-align:right;">{{.Count}}</td><td style="text-align:right;">{{.Revenue}}</td></tr>{{end}}</tbody>
  </table>

  <h3>Per Metode Pembayaran</h3>
  <table>
    <thead><tr><th>Metode</th><th>Transaksi</th><th>Pendapatan</th></tr></thead>
    <tbody>{{range .ByMethod}}<tr><td>{{.Method}}</td><td style="text-align:right;">{{.Count}}</td><td style="text-align:right;">{{.Revenue}}</td></tr>{{end}}</tbody>
  </table>

  <h3>Per Hari</h3>
  <table>
    <thead><tr><th>Tanggal</th><th>Transaksi</th><th>Pendapatan</th></tr></thead>
    <tbody>{{range .ByDay}}<tr><td>{{.Date}}</td><td style="text-align:right;">{{.Count}}</td><td style="text-align:right;">{{.Revenue}}</td></tr>{{end}}</tbody>
  </table>
</body>
</html>
`))

func salesSummaryToPrintableHTML(summary report.SalesSummary) string {
	var buf bytes.Buffer
	if err := salesReportHTMLTmpl.Execute(&buf, summary); err != nil {
		// Fallback: return a plain-text error page rather than leaking internal details.
		return "<!doctype html><html><body><p>Report rendering error.</p></body></html>"
	}
	return buf.String()
}

// receiptHTMLTmpl renders a 58mm-style struk for thermal printing via the
// browser print dialog.
var receiptHTMLTmpl = template.Must(template.New("receipt").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Struk {{.Tx.InvoiceNumber}}</title>
  <style>
    body { font-family: monospace; font-size: 12px; width: 220px; margin: 0 auto; }
    .center { text-align: center; }
    .row { display: flex; justify-content: space-between; }
    hr { border: none; border-top: 1px dashed #000; }
  </style>
</head>
<body>
  <div class="center">
    <strong>{{.Profile.Name}}</strong><br />
    {{.Profile.Address}}<br />
    {{.Profile.Phone}}
  </div>
  <hr />
  <div class="row"><span>{{.Tx.InvoiceNumber}}</span><span>{{.Tx.CreatedAt.Format "02/01/2006 15:04"}}</span></div>
  <div class="row"><span>Kasir</span><span>{{.Tx.Cashier}}</span></div>
  <hr />
  {{range .Tx.Items}}
  <div>{{.Name}}{{if .Technician}} ({{.Technician}}){{end}}</div>
  <div class="row"><span>{{.Qty}} x {{.Price}}</span><span>{{.Subtotal}}</span></div>
  {{end}}
  <hr />
  <div class="row"><span>Subtotal</span><span>{{.Tx.Subtotal}}</span></div>
  {{if .Tx.Discount}}<div class="row"><span>Diskon</span><span>-{{.Tx.Discount}}</span></div>{{end}}
  {{if .Tx.PointsUsed}}<div class="row"><span>Poin Dipakai</span><span>-{{.Tx.PointsUsed}}</span></div>{{end}}
  <div class="row"><strong>Total</strong><strong>{{.Tx.FinalAmount}}</strong></div>
  <div class="row"><span>Bayar ({{.Tx.PaymentMethod}})</span><span>{{.Tx.PaymentAmount}}</span></div>
  {{if .Tx.ChangeAmount}}<div class="row"><span>Kembali</span><span>{{.Tx.ChangeAmount}}</span></div>{{end}}
  {{if .Tx.PointsEarned}}<div class="row"><span>Poin Didapat</span><span>{{.Tx.PointsEarned}}</span></div>{{end}}
  <hr />
  <div class="center">Status: {{.Tx.PaymentStatus}}</div>
  <div class="center">Terima kasih atas kunjungan Anda</div>
</body>
</html>
`))

func receiptToPrintableHTML(profile domain.StoreProfile, tx domain.Transaction) string {
	var buf bytes.Buffer
	data := struct {
		Profile domain.StoreProfile
		Tx      domain.Transaction
	}{Profile: profile, Tx: tx}
	if err := receiptHTMLTmpl.Execute(&buf, data); err != nil {
		return "<!doctype html><html><body><p>Receipt rendering error.</p></body></html>"
	}
	return buf.String()
}

// kwitansiHTMLTmpl renders a payment receipt for a transaction, listing the
// installments recorded so far and the outstanding balance.
var kwitansiHTMLTmpl = template.Must(template.New("kwitansi").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Kwitansi {{.Tx.InvoiceNumber}}</title>
  <style>
    body { font-family: sans-serif; font-size: 13px; width: 480px; margin: 24px auto; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; }
    .row { display: flex; justify-content: space-between; margin-top: 4px; }
    .status { margin-top: 12px; font-weight: bold; text-align: center; }
  </style>
</head>
<body>
  <h2 style="text-align:center;">KWITANSI</h2>
  <div style="text-align:center;">
    <strong>{{.Profile.Name}}</strong><br />
    {{.Profile.Address}}<br />
    {{.Profile.Phone}}
  </div>
  <div class="row"><span>No. Invoice</span><span>{{.Tx.InvoiceNumber}}</span></div>
  <div class="row"><span>Tanggal</span><span>{{.Tx.CreatedAt.Format "02/01/2006 15:04"}}</span></div>
  {{if .Tx.Cashier}}<div class="row"><span>Kasir</span><span>{{.Tx.Cashier}}</span></div>{{end}}

  {{if .Tx.Payments}}
  <table>
    <thead><tr><th>Tanggal</th><th>Metode</th><th>Catatan</th><th style="text-align:right;">Jumlah</th></tr></thead>
    <tbody>{{range .Tx.Payments}}<tr><td>{{.CreatedAt.Format "02/01/2006"}}</td><td>{{.Method}}</td><td>{{.Note}}</td><td style="text-align:right;">{{.Amount}}</td></tr>{{end}}</tbody>
  </table>
  {{end}}

  <div class="row"><span>Total Tagihan</span><span>Rp {{.Tx.FinalAmount}}</span></div>
  <div class="row"><span>Dibayar</span><span>Rp {{.Paid}}</span></div>
  <div class="row"><span>Sisa</span><span>Rp {{.Remaining}}</span></div>
  <div class="status">{{if eq .Tx.PaymentStatus "paid"}}LUNAS{{else}}BELUM LUNAS{{end}}</div>
</body>
</html>
`))

func kwitansiToPrintableHTML(profile domain.StoreProfile, tx domain.Transaction) string {
	paid := int64(0)
	for _, p := range tx.Payments {
		paid += p.Amount
	}
	// Fully paid cash sales carry no installment rows; the header amount is
	// the payment.
	if tx.PaymentStatus == domain.PaymentStatusPaid && paid < tx.FinalAmount {
		paid = tx.FinalAmount
	}
	remaining := tx.FinalAmount - paid
	if remaining < 0 {
		remaining = 0
	}

	var buf bytes.Buffer
	data := struct {
		Profile   domain.StoreProfile
		Tx        domain.Transaction
		Paid      int64
		Remaining int64
	}{Profile: profile, Tx: tx, Paid: paid, Remaining: remaining}
	if err := kwitansiHTMLTmpl.Execute(&buf, data); err != nil {
		return "<!doctype html><html><body><p>Kwitansi rendering error.</p></body></html>"
	}
	return buf.String()
}

var memberCardHTMLTmpl = template.Must(template.New("member-card").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Kartu Member {{.Member.MemberCode}}</title>
  <style>
    body { font-family: sans-serif; }
    .card { width: 320px; margin: 24px auto; border: 1px solid #333; border-radius: 8px; padding: 16px; }
    .code { font-size: 22px; font-weight: bold; letter-spacing: 2px; margin: 8px 0; }
    .muted { color: #555; font-size: 12px; }
  </style>
</head>
<body>
  <div class="card">
    <strong>{{.Profile.Name}}</strong>
    <div class="code">{{.Member.MemberCode}}</div>
    <div>{{.Member.Name}}</div>
    <div class="muted">{{.Member.Phone}}</div>
    {{if .Member.VehiclePlate}}<div class="muted">{{.Member.VehiclePlate}}{{if .Member.VehicleModel}} &middot; {{.Member.VehicleModel}}{{end}}</div>{{end}}
    <div class="muted">Bergabung {{.Member.JoinedAt.Format "02/01/2006"}}</div>
  </div>
</body>
</html>
`))

func memberCardToPrintableHTML(profile domain.StoreProfile, member domain.Member) string {
	var buf bytes.Buffer
	data := struct {
		Profile domain.StoreProfile
		Member  domain.Member
	}{Profile: profile, Member: member}
	if err := memberCardHTMLTmpl.Execute(&buf, data); err != nil {
		return "<!doctype html><html><body><p>Card rendering error.</p></body></html>"
	}
	return buf.String()
}

var queueTicketHTMLTmpl = template.Must(template.New("queue-ticket").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Antrian {{.Queue.TicketNumber}}</title>
  <style>
    body { font-family: monospace; font-size: 12px; width: 220px; margin: 0 auto; text-align: center; }
    .ticket { font-size: 36px; font-weight: bold; margin: 12px 0; }
    hr { border: none; border-top: 1px dashed #000; }
  </style>
</head>
<body>
  <strong>{{.Profile.Name}}</strong><br />
  {{.Queue.CreatedAt.Format "02/01/2006 15:04"}}
  <div class="ticket">{{.Queue.TicketNumber}}</div>
  {{if .Queue.MemberName}}<div>{{.Queue.MemberName}}</div>{{end}}
  {{if .Queue.VehiclePlate}}<div>{{.Queue.VehiclePlate}}</div>{{end}}
  {{if .Queue.VehicleModel}}<div>{{.Queue.VehicleModel}}</div>{{end}}
  <hr />
  <div>Mohon menunggu nomor Anda dipanggil</div>
</body>
</html>
`))

func queueTicketToPrintableHTML(profile domain.StoreProfile, queue domain.Queue) string {
	var buf bytes.Buffer
	data := struct {
		Profile domain.StoreProfile
		Queue   domain.Queue
	}{Profile: profile, Queue: queue}
	if err := queueTicketHTMLTmpl.Execute(&buf, data); err != nil {
		return "<!doctype html><html><body><p>Ticket rendering error.</p></body></html>"
	}
	return buf.String()
}
