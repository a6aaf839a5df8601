package billing

import (
	"fmt"
	"html/template"
	"io"

	"dentaldesk/internal/models"
)

var printTemplate = template.Must(template.New("invoice").Funcs(template.FuncMap{
	"money": func(v float64) string { return fmt.Sprintf("$%.2f", v) },
	"date": func(v any) string {
		switch t := v.(type) {
		case interface{ Format(string) string }:
			return t.Format("Jan 2, 2006")
		default:
			return ""
		}
	},
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Invoice {{.Invoice.Number}}</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; margin: 40px; color: #1f2937; }
h1 { color: #14B8A6; margin-bottom: 0; }
table { width: 100%; border-collapse: collapse; margin-top: 24px; }
th, td { padding: 8px; border-bottom: 1px solid #e5e7eb; text-align: left; }
td.num, th.num { text-align: right; }
.totals td { font-weight: bold; }
.status { display: inline-block; padding: 2px 8px; border-radius: 4px; background: #f3f4f6; }
</style>
</head>
<body>
<h1>{{.Clinic}}</h1>
<p>Invoice <strong>{{.Invoice.Number}}</strong> <span class="status">{{.Invoice.Status}}</span></p>
<p>Patient: {{if .Invoice.PatientName}}{{.Invoice.PatientName}}{{else}}{{.Invoice.PatientID}}{{end}}<br>
Date: {{date .Invoice.Date}}{{if .Invoice.DueDate}}<br>
Due: {{date .Invoice.DueDate}}{{end}}</p>
<table>
<tr><th>Description</th><th class="num">Qty</th><th class="num">Unit price</th><th class="num">Amount</th></tr>
{{range .Invoice.Items}}<tr><td>{{.Description}}</td><td class="num">{{.Quantity}}</td><td class="num">{{money .UnitPrice}}</td><td class="num">{{money .Amount}}</td></tr>
{{end}}<tr class="totals"><td colspan="3">Total</td><td class="num">{{money .Invoice.TotalAmount}}</td></tr>
<tr class="totals"><td colspan="3">Paid</td><td class="num">{{money .Invoice.AmountPaid}}</td></tr>
<tr class="totals"><td colspan="3">Balance due</td><td class="num">{{money .Balance}}</td></tr>
</table>
{{if .Invoice.Payments}}<h3>Payments</h3>
<table>
<tr><th>Date</th><th>Method</th><th>Reference</th><th class="num">Amount</th></tr>
{{range .Invoice.Payments}}<tr><td>{{date .Date}}</td><td>{{.Method}}</td><td>{{.Reference}}</td><td class="num">{{money .Amount}}</td></tr>
{{end}}</table>{{end}}
{{if .Invoice.Notes}}<p>{{.Invoice.Notes}}</p>{{end}}
</body>
</html>
`))

// RenderPrintable writes a printable HTML page for inv
func RenderPrintable(w io.Writer, inv *models.Invoice, clinicName string) error {
	if clinicName == "" {
		clinicName = "DentalDesk"
	}
	return printTemplate.Execute(w, struct {
		Clinic  string
		Invoice *models.Invoice
		Balance float64
	}{clinicName, inv, inv.Balance()})
}
