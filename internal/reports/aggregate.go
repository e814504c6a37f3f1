// Package reports contains the pure monthly-aggregation logic behind the
// report and export surfaces.
package reports

import (
	"sort"
	"time"

	"github.com/e6ai/expense-agent/constants"
	"github.com/e6ai/expense-agent/internal/entity"
)

// CategoryTotal is one slice of the monthly breakdown.
type CategoryTotal struct {
	Category constants.Category `json:"category"`
	Total    float64            `json:"total"`
}

// MonthlyReport summarizes one calendar month of spending.
type MonthlyReport struct {
	Year       int               `json:"year"`
	Month      time.Month        `json:"month"`
	Receipts   []*entity.Receipt `json:"receipts"`
	Totals     []CategoryTotal   `json:"totals"`
	GrandTotal float64           `json:"grand_total"`
}

// MonthlySummary filters receipts by calendar-month equality on the purchase
// date, groups by category summing amounts, and totals the month. Totals are
// sorted descending by amount; equal totals order by category label so the
// result is deterministic. Pure and idempotent.
func MonthlySummary(receipts []*entity.Receipt, year int, month time.Month) MonthlyReport {
	report := MonthlyReport{Year: year, Month: month}

	byCategory := make(map[constants.Category]float64)
	for _, r := range receipts {
		if r.Date.Year() != year || r.Date.Month() != month {
			continue
		}
		report.Receipts = append(report.Receipts, r)
		byCategory[r.Category] += r.Amount
		report.GrandTotal += r.Amount
	}

	for cat, total := range byCategory {
		report.Totals = append(report.Totals, CategoryTotal{Category: cat, Total: total})
	}
	sort.Slice(report.Totals, func(i, j int) bool {
		if report.Totals[i].Total != report.Totals[j].Total {
			return report.Totals[i].Total > report.Totals[j].Total
		}
		return report.Totals[i].Category < report.Totals[j].Category
	})

	return report
}

// AvailableMonths returns the distinct months receipts fall into, newest
// first, each as the first instant of the month in UTC.
func AvailableMonths(receipts []*entity.Receipt) []time.Time {
	seen := make(map[time.Time]struct{})
	for _, r := range receipts {
		m := time.Date(r.Date.Year(), r.Date.Month(), 1, 0, 0, 0, 0, time.UTC)
		seen[m] = struct{}{}
	}
	months := make([]time.Time, 0, len(seen))
	for m := range seen {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].After(months[j]) })
	return months
}
