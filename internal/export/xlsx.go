package export

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/e6ai/expense-agent/internal/entity"
)

// RenderXLSX returns an XLSX workbook (as bytes) with one row per receipt,
// oldest purchase first.
func RenderXLSX(receipts []*entity.Receipt) ([]byte, error) {
	sorted := make([]*entity.Receipt, len(receipts))
	copy(sorted, receipts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	f := excelize.NewFile()
	const sheet = "Receipts"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Date",
		"Vendor",
		"Category",
		"Amount",
		"Currency",
		"Notes",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, r := range sorted {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		if !r.Date.IsZero() {
			write(1, r.Date.Format("2006-01-02"))
		} else {
			write(1, "")
		}
		write(2, r.Vendor)
		write(3, string(r.Category))
		write(4, r.Amount)
		write(5, r.Currency)
		write(6, truncate(r.Notes, 140))

		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 14)
	_ = f.SetColWidth(sheet, "B", "B", 28)
	_ = f.SetColWidth(sheet, "C", "C", 22)
	_ = f.SetColWidth(sheet, "D", "E", 12)
	_ = f.SetColWidth(sheet, "F", "F", 48)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
