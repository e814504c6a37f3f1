package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/e6ai/expense-agent/internal/entity"
)

// csvHeader is the fixed column order consumers of the export rely on.
const csvHeader = "Date,Vendor,Category,Amount,Currency"

// RenderCSV renders receipts as CSV text, oldest purchase first. Vendor and
// category are always quoted since both commonly contain commas and
// ampersands; amounts are fixed to two decimals.
func RenderCSV(receipts []*entity.Receipt) string {
	sorted := make([]*entity.Receipt, len(receipts))
	copy(sorted, receipts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	var b strings.Builder
	b.WriteString(csvHeader)
	b.WriteByte('\n')
	for _, r := range sorted {
		b.WriteString(fmt.Sprintf("%s,%s,%s,%.2f,%s\n",
			r.Date.Format("2006-01-02"),
			quote(r.Vendor),
			quote(string(r.Category)),
			r.Amount,
			r.Currency,
		))
	}
	return b.String()
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
