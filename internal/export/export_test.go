package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"diesel-manager-web/internal/backend"
)

func TestWriteReport(t *testing.T) {
	report := backend.Report{
		From: "2024-01-01",
		To:   "2024-01-31",
		Rows: []backend.ReportRow{
			{Date: time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC), Kind: "consumption", Reference: "c1", PlateNumber: "ABC-42", VehicleType: "Pickup", TankName: "Main", Quantity: 40},
			{Date: time.Date(2024, 1, 4, 9, 0, 0, 0, time.UTC), Kind: "receiving", Reference: "RCV-0001", TankName: "Main", Quantity: 5000},
		},
		TotalConsumed: 40,
		TotalReceived: 5000,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, report))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(ReportSheet)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 8)

	assert.Equal(t, "Diesel report 2024-01-01 to 2024-01-31", rows[0][0])
	assert.Equal(t, reportHeaders, rows[2])
	assert.Equal(t, []string{"2024-01-03", "consumption", "c1", "ABC-42", "Pickup", "Main", "40"}, rows[3])
	assert.Equal(t, "RCV-0001", rows[4][2])

	label, err := f.GetCellValue(ReportSheet, "F7")
	require.NoError(t, err)
	assert.Equal(t, "Total consumed", label)
	total, err := f.GetCellValue(ReportSheet, "G8")
	require.NoError(t, err)
	assert.Equal(t, "5000", total)
}

func TestInvoiceHTML(t *testing.T) {
	html, err := InvoiceHTML(backend.Invoice{
		InvoiceNumber: "INV-7",
		BillTo:        "Acme <Rentals>",
		PeriodFrom:    "2024-01-01",
		PeriodTo:      "2024-01-31",
		Lines:         []backend.InvoiceLine{{Description: "Diesel for RENT-01", Quantity: 120, UnitPrice: 2.05, Amount: 246}},
		Total:         246,
	})
	require.NoError(t, err)

	assert.Contains(t, html, "Invoice INV-7")
	assert.Contains(t, html, "Acme &lt;Rentals&gt;")
	assert.Contains(t, html, "Diesel for RENT-01")
	assert.Contains(t, html, "120.00")
	assert.Contains(t, html, "QAR 246.00")
	assert.NotContains(t, html, "Issued")
}
