package export

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e6ai/expense-agent/constants"
	"github.com/e6ai/expense-agent/internal/entity"
	"github.com/e6ai/expense-agent/internal/reports"
)

func sampleReceipts() []*entity.Receipt {
	return []*entity.Receipt{
		{
			ID:       uuid.New(),
			Vendor:   "Blue Bottle",
			Amount:   4.5,
			Currency: "USD",
			Date:     time.Date(2026, time.June, 20, 0, 0, 0, 0, time.UTC),
			Category: constants.FoodAndDrink,
		},
		{
			ID:       uuid.New(),
			Vendor:   "Metro, Inc.",
			Amount:   2.75,
			Currency: "USD",
			Date:     time.Date(2026, time.June, 3, 0, 0, 0, 0, time.UTC),
			Category: constants.Transport,
		},
	}
}

func TestRenderCSV(t *testing.T) {
	out := RenderCSV(sampleReceipts())
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")

	require.Len(t, lines, 3)
	assert.Equal(t, "Date,Vendor,Category,Amount,Currency", lines[0])
	// Ascending by date, vendor and category quoted, two decimals.
	assert.Equal(t, `2026-06-03,"Metro, Inc.","Transport",2.75,USD`, lines[1])
	assert.Equal(t, `2026-06-20,"Blue Bottle","Food & Drink",4.50,USD`, lines[2])
}

func TestRenderCSVEmpty(t *testing.T) {
	out := RenderCSV(nil)
	assert.Equal(t, "Date,Vendor,Category,Amount,Currency\n", out)
}

func TestRenderCSVEscapesQuotes(t *testing.T) {
	recs := []*entity.Receipt{{
		Vendor:   `Joe's "Diner"`,
		Amount:   10,
		Currency: "USD",
		Date:     time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC),
		Category: constants.FoodAndDrink,
	}}
	out := RenderCSV(recs)
	assert.Contains(t, out, `"Joe's ""Diner"""`)
}

func TestRenderPDF(t *testing.T) {
	report := reports.MonthlySummary(sampleReceipts(), 2026, time.June)

	var buf bytes.Buffer
	require.NoError(t, RenderPDF(report, &buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
	assert.Greater(t, buf.Len(), 500)
}

func TestWritePDFOverwrites(t *testing.T) {
	path := t.TempDir() + "/report.pdf"
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	report := reports.MonthlySummary(sampleReceipts(), 2026, time.June)
	require.NoError(t, WritePDF(report, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestRenderXLSX(t *testing.T) {
	out, err := RenderXLSX(sampleReceipts())
	require.NoError(t, err)
	// XLSX is a zip container.
	assert.True(t, bytes.HasPrefix(out, []byte("PK")))
}

func TestWriteTemp(t *testing.T) {
	path, err := WriteTemp([]byte("a,b,c\n"), "expenses.csv")
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(path) })

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a,b,c\n", string(data))
}

type stubRepo struct {
	recs []*entity.Receipt
	err  error
}

func (s *stubRepo) Insert(context.Context, *entity.Receipt) error { return errors.New("unused") }
func (s *stubRepo) GetByID(context.Context, uuid.UUID) (*entity.Receipt, error) {
	return nil, errors.New("unused")
}
func (s *stubRepo) ListAll(context.Context) ([]*entity.Receipt, error) { return s.recs, s.err }
func (s *stubRepo) ListMonth(context.Context, int, time.Month) ([]*entity.Receipt, error) {
	return s.recs, s.err
}
func (s *stubRepo) Update(context.Context, *entity.Receipt) error { return errors.New("unused") }
func (s *stubRepo) Delete(context.Context, uuid.UUID) error       { return errors.New("unused") }

func TestServiceMonthExports(t *testing.T) {
	svc := NewService(&stubRepo{recs: sampleReceipts()}, nil)
	ctx := context.Background()

	csvOut, err := svc.MonthCSV(ctx, 2026, time.June)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(csvOut), "Date,Vendor,Category,Amount,Currency"))

	pdfOut, err := svc.MonthPDF(ctx, 2026, time.June)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdfOut, []byte("%PDF")))

	xlsxOut, err := svc.MonthXLSX(ctx, 2026, time.June)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(xlsxOut, []byte("PK")))
}

func TestServiceStoreFailure(t *testing.T) {
	svc := NewService(&stubRepo{err: errors.New("db down")}, nil)

	_, err := svc.MonthCSV(context.Background(), 2026, time.June)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}
