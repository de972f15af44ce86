package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Receipt carries the fields printed on a payment receipt.
type Receipt struct {
	SchoolName  string
	Reference   string
	StudentName string
	FeeCategory string
	Method      string
	Amount      float64
	PaidAt      time.Time
}

// ReceiptExporter renders payment receipts as PDF documents.
type ReceiptExporter struct{}

// NewReceiptExporter constructs a receipt exporter.
func NewReceiptExporter() *ReceiptExporter {
	return &ReceiptExporter{}
}

// Render produces a single-page A5 receipt.
func (e *ReceiptExporter) Render(r Receipt) ([]byte, error) {
	if r.Reference == "" {
		return nil, fmt.Errorf("receipt requires a transaction reference")
	}

	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.SetMargins(12, 14, 12)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 9, strings.ToUpper(r.SchoolName), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 7, "Payment Receipt", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	lines := []struct {
		label string
		value string
	}{
		{"Receipt No", r.Reference},
		{"Date", r.PaidAt.Format("02 Jan 2006 15:04")},
		{"Student", r.StudentName},
		{"Fee Category", r.FeeCategory},
		{"Payment Method", strings.ReplaceAll(r.Method, "_", " ")},
		{"Amount", fmt.Sprintf("%.2f", r.Amount)},
	}

	for _, line := range lines {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(40, 8, line.label, "B", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 8, line.value, "B", 1, "", false, 0, "")
	}

	pdf.Ln(6)
	pdf.SetFont("Arial", "I", 8)
	pdf.CellFormat(0, 6, "This is a system generated receipt.", "", 1, "C", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render receipt pdf: %w", err)
	}
	return buf.Bytes(), nil
}
