// Package export renders monthly expense data as CSV, PDF, and XLSX.
package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/e6ai/expense-agent/internal/repository"
	"github.com/e6ai/expense-agent/internal/reports"
)

// Service is a tiny façade over the receipt store that produces export bytes
// for a calendar month.
type Service struct {
	repo   repository.ReceiptRepository
	logger *slog.Logger
}

func NewService(repo repository.ReceiptRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// MonthCSV renders the given month's receipts as CSV text.
func (s *Service) MonthCSV(ctx context.Context, year int, month time.Month) ([]byte, error) {
	start := time.Now()
	recs, err := s.repo.ListMonth(ctx, year, month)
	if err != nil {
		return nil, fmt.Errorf("query receipts: %w", err)
	}
	out := []byte(RenderCSV(recs))
	s.logger.Info("export.csv.ok",
		"month", fmt.Sprintf("%04d-%02d", year, month),
		"rows", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// MonthPDF renders the given month's report as a PDF document.
func (s *Service) MonthPDF(ctx context.Context, year int, month time.Month) ([]byte, error) {
	start := time.Now()
	recs, err := s.repo.ListMonth(ctx, year, month)
	if err != nil {
		return nil, fmt.Errorf("query receipts: %w", err)
	}
	report := reports.MonthlySummary(recs, year, month)
	var buf bytes.Buffer
	if err := RenderPDF(report, &buf); err != nil {
		return nil, fmt.Errorf("pdf write: %w", err)
	}
	s.logger.Info("export.pdf.ok",
		"month", fmt.Sprintf("%04d-%02d", year, month),
		"rows", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// MonthXLSX renders the given month's receipts as an XLSX workbook.
func (s *Service) MonthXLSX(ctx context.Context, year int, month time.Month) ([]byte, error) {
	start := time.Now()
	recs, err := s.repo.ListMonth(ctx, year, month)
	if err != nil {
		return nil, fmt.Errorf("query receipts: %w", err)
	}
	out, err := RenderXLSX(recs)
	if err != nil {
		return nil, err
	}
	s.logger.Info("export.xlsx.ok",
		"month", fmt.Sprintf("%04d-%02d", year, month),
		"rows", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// WriteTemp writes content to a file named filename under the system temp
// directory, replacing any previous export with that name, and returns the
// full path.
func WriteTemp(content []byte, filename string) (string, error) {
	path := filepath.Join(os.TempDir(), filepath.Base(filename))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}
