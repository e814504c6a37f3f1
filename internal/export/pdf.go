package export

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/go-pdf/fpdf"

	"github.com/e6ai/expense-agent/internal/entity"
	"github.com/e6ai/expense-agent/internal/reports"
)

// pageBreakY is the y position (mm) past which line items flow to a new page.
const pageBreakY = 250.0

// RenderPDF writes a monthly expense report PDF to w: title, grand total, the
// per-category breakdown, then line items in chronological order.
func RenderPDF(report reports.MonthlyReport, w io.Writer) error {
	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	monthLabel := fmt.Sprintf("%s %d", report.Month.String(), report.Year)

	pdf.SetFont("Helvetica", "B", 18)
	// Core fonts are cp1252; keep the title ASCII.
	pdf.CellFormat(0, 10, fmt.Sprintf("Expense Report - %s", monthLabel), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 8, fmt.Sprintf("Total: %.2f", report.GrandTotal), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 8, "By category", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	for _, ct := range report.Totals {
		pdf.CellFormat(90, 7, string(ct.Category), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 7, fmt.Sprintf("%.2f", ct.Total), "", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 8, "Receipts", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)

	// Receipts arrive newest-first from the store; the report reads better
	// chronologically.
	items := make([]*entity.Receipt, len(report.Receipts))
	copy(items, report.Receipts)
	sort.SliceStable(items, func(i, j int) bool { return items[i].Date.Before(items[j].Date) })

	for _, r := range items {
		if pdf.GetY() > pageBreakY {
			pdf.AddPage()
			pdf.SetFont("Helvetica", "", 10)
		}
		pdf.CellFormat(25, 6, r.Date.Format("2006-01-02"), "", 0, "L", false, 0, "")
		pdf.CellFormat(75, 6, r.Vendor, "", 0, "L", false, 0, "")
		pdf.CellFormat(45, 6, string(r.Category), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, fmt.Sprintf("%.2f %s", r.Amount, r.Currency), "", 1, "R", false, 0, "")
	}

	return pdf.Output(w)
}

// WritePDF renders the report to path, replacing any existing file.
func WritePDF(report reports.MonthlyReport, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create pdf: %w", err)
	}
	if err := RenderPDF(report, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
