package export

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"diesel-manager-web/internal/backend"
)

// PDFRenderer prints invoices through headless Chromium.
type PDFRenderer struct {
	ChromiumPath string
	Timeout      time.Duration
}

// Render prints inv to PDF. It fails when no Chromium is available; callers
// can fall back to the HTML view.
func (r PDFRenderer) Render(ctx context.Context, inv backend.Invoice) ([]byte, error) {
	html, err := InvoiceHTML(inv)
	if err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	if r.ChromiumPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(r.ChromiumPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	runCtx, cancelRun := chromedp.NewContext(allocCtx)
	defer cancelRun()
	runCtx, cancelTimeout := context.WithTimeout(runCtx, timeout)
	defer cancelTimeout()

	var pdf []byte
	err = chromedp.Run(runCtx,
		chromedp.Navigate("data:text/html,"+url.PathEscape(html)),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("chromedp run failed: %w", err)
	}
	return pdf, nil
}

var invoiceTmpl = template.Must(template.New("invoice").Funcs(template.FuncMap{
	"money": func(v float64) string { return fmt.Sprintf("QAR %.2f", v) },
	"qty":   func(v float64) string { return fmt.Sprintf("%.2f", v) },
}).Parse(invoiceHTML))

// InvoiceHTML renders the printable invoice document.
func InvoiceHTML(inv backend.Invoice) (string, error) {
	var buf bytes.Buffer
	if err := invoiceTmpl.Execute(&buf, inv); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const invoiceHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>Invoice {{.InvoiceNumber}}</title>
  <style>
    body { font-family: 'Helvetica Neue', Arial, sans-serif; margin: 24px; color: #0f172a; }
    h1 { margin: 0 0 8px; }
    .meta { display: flex; justify-content: space-between; margin-bottom: 16px; }
    .label { font-size: 12px; color: #475569; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { padding: 8px; border-bottom: 1px solid #e2e8f0; text-align: left; }
    th { background: #f8fafc; }
    .num { text-align: right; }
  </style>
</head>
<body>
  <div class="meta">
    <div>
      <h1>Invoice {{.InvoiceNumber}}</h1>
      <div class="label">Bill to</div>
      <div>{{.BillTo}}</div>
    </div>
    <div style="text-align:right">
      <div class="label">Period</div>
      <div>{{.PeriodFrom}} to {{.PeriodTo}}</div>
      {{if not .CreatedAt.IsZero}}<div class="label">Issued</div>
      <div>{{.CreatedAt.Format "2006-01-02"}}</div>{{end}}
    </div>
  </div>
  <table>
    <thead>
      <tr><th>Description</th><th class="num">Quantity (L)</th><th class="num">Unit price</th><th class="num">Amount</th></tr>
    </thead>
    <tbody>
    {{range .Lines}}
      <tr><td>{{.Description}}</td><td class="num">{{qty .Quantity}}</td><td class="num">{{money .UnitPrice}}</td><td class="num">{{money .Amount}}</td></tr>
    {{end}}
    </tbody>
  </table>
  <p class="num"><strong>Total {{money .Total}}</strong></p>
</body>
</html>
`
