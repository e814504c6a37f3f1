package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e6ai/expense-agent/constants"
	"github.com/e6ai/expense-agent/internal/credentials"
	"github.com/e6ai/expense-agent/internal/export"
	"github.com/e6ai/expense-agent/internal/llm"
	"github.com/e6ai/expense-agent/internal/receipts"
	"github.com/e6ai/expense-agent/internal/repository"
	"github.com/e6ai/expense-agent/internal/storage"
)

type fakeExtractor struct {
	result llm.ExtractionResult
	err    error
}

func (f *fakeExtractor) Extract(_ context.Context, _ []byte) (llm.ExtractionResult, []byte, error) {
	if f.err != nil {
		return llm.ExtractionResult{}, nil, f.err
	}
	return f.result, []byte(`{}`), nil
}

func newTestServer(t *testing.T, extractor llm.Extractor) *Server {
	t.Helper()

	dir := t.TempDir()
	db, err := repository.Open(filepath.Join(dir, "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := repository.NewReceiptRepository(db, nil)
	images, err := storage.NewLocalStorage(filepath.Join(dir, "images"))
	require.NoError(t, err)

	creds, err := credentials.NewManager(context.Background(), credentials.NewMemoryStore(), nil)
	require.NoError(t, err)

	rs := receipts.NewService(repo, extractor, images, nil)
	es := export.NewService(repo, nil)
	return NewServer(rs, es, creds, nil)
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func confirmReceipt(t *testing.T, srv *Server, date string, amount float64, category string) map[string]any {
	t.Helper()
	rec := doJSON(t, srv, http.MethodPost, "/api/receipts", confirmPayload{
		Vendor:   "Blue Bottle",
		Amount:   amount,
		Currency: "USD",
		Date:     date,
		Category: category,
		ImageB64: base64.StdEncoding.EncodeToString([]byte("jpeg-bytes")),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestExtractReturnsDraft(t *testing.T) {
	srv := newTestServer(t, &fakeExtractor{result: llm.ExtractionResult{
		Vendor:   "Starbucks",
		Amount:   4.5,
		Currency: "USD",
		Date:     time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
		Category: constants.FoodAndDrink,
	}})

	req := httptest.NewRequest(http.MethodPost, "/api/extract", bytes.NewReader([]byte("image-bytes")))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var draft draftResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &draft))
	assert.Equal(t, "Starbucks", draft.Vendor)
	assert.InDelta(t, 4.5, draft.Amount, 1e-9)
	assert.Equal(t, "2026-03-02", draft.Date)
	assert.Equal(t, "Food & Drink", draft.Category)

	image, err := base64.StdEncoding.DecodeString(draft.ImageB64)
	require.NoError(t, err)
	assert.Equal(t, []byte("image-bytes"), image)

	// Drafts are not persisted.
	list := doJSON(t, srv, http.MethodGet, "/api/receipts", nil)
	assert.Equal(t, "[]\n", list.Body.String())
}

func TestExtractErrorMapping(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"no credential", llm.ErrNoCredential, http.StatusUnauthorized, "settings"},
		{"encoding failed", llm.ErrEncodingFailed, http.StatusUnprocessableEntity, "image"},
		{"in flight", llm.ErrExtractionInFlight, http.StatusConflict, "already running"},
		{"api error", &llm.APIError{StatusCode: 429, Body: "rate limited"}, http.StatusBadGateway, "extraction service"},
		{"parse failed", fmt.Errorf("%w: no choices", llm.ErrParseFailed), http.StatusBadGateway, "response"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeExtractor{err: tc.err})

			req := httptest.NewRequest(http.MethodPost, "/api/extract", bytes.NewReader([]byte("image")))
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Contains(t, strings.ToLower(resp.Error), tc.message)
		})
	}
}

func TestExtractEmptyBody(t *testing.T) {
	srv := newTestServer(t, &fakeExtractor{})
	req := httptest.NewRequest(http.MethodPost, "/api/extract", bytes.NewReader(nil))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReceiptLifecycle(t *testing.T) {
	srv := newTestServer(t, &fakeExtractor{})

	created := confirmReceipt(t, srv, "2026-06-10", 12.5, "Transport")
	id := created["id"].(string)
	require.NotEmpty(t, id)

	get := doJSON(t, srv, http.MethodGet, "/api/receipts/"+id, nil)
	require.Equal(t, http.StatusOK, get.Code)
	var fetched map[string]any
	require.NoError(t, json.Unmarshal(get.Body.Bytes(), &fetched))
	assert.Equal(t, "Blue Bottle", fetched["vendor"])
	assert.Equal(t, "Transport", fetched["category"])

	img := doJSON(t, srv, http.MethodGet, "/api/receipts/"+id+"/image", nil)
	require.Equal(t, http.StatusOK, img.Code)
	assert.Equal(t, "jpeg-bytes", img.Body.String())
	assert.Equal(t, "image/jpeg", img.Header().Get("Content-Type"))

	patch := doJSON(t, srv, http.MethodPatch, "/api/receipts/"+id, map[string]any{"amount": 20.0})
	require.Equal(t, http.StatusOK, patch.Code)
	var updated map[string]any
	require.NoError(t, json.Unmarshal(patch.Body.Bytes(), &updated))
	assert.InDelta(t, 20.0, updated["amount"].(float64), 1e-9)

	del := doJSON(t, srv, http.MethodDelete, "/api/receipts/"+id, nil)
	require.Equal(t, http.StatusNoContent, del.Code)

	gone := doJSON(t, srv, http.MethodGet, "/api/receipts/"+id, nil)
	assert.Equal(t, http.StatusNotFound, gone.Code)
}

func TestConfirmUnknownCategoryBecomesOther(t *testing.T) {
	srv := newTestServer(t, &fakeExtractor{})
	created := confirmReceipt(t, srv, "2026-06-10", 5, "Groceries")
	assert.Equal(t, "Other", created["category"])
}

func TestListByMonth(t *testing.T) {
	srv := newTestServer(t, &fakeExtractor{})
	confirmReceipt(t, srv, "2026-06-10", 10, "Food & Drink")
	confirmReceipt(t, srv, "2026-05-01", 99, "Travel")

	rec := doJSON(t, srv, http.MethodGet, "/api/receipts?month=2026-06", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.InDelta(t, 10.0, list[0]["amount"].(float64), 1e-9)
}

func TestMonthlyReport(t *testing.T) {
	srv := newTestServer(t, &fakeExtractor{})
	confirmReceipt(t, srv, "2026-06-10", 10, "Food & Drink")
	confirmReceipt(t, srv, "2026-06-11", 5, "Food & Drink")
	confirmReceipt(t, srv, "2026-06-12", 3, "Transport")

	rec := doJSON(t, srv, http.MethodGet, "/api/reports/2026-06", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var report struct {
		Totals []struct {
			Category string  `json:"category"`
			Total    float64 `json:"total"`
		} `json:"totals"`
		GrandTotal float64 `json:"grand_total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Len(t, report.Totals, 2)
	assert.Equal(t, "Food & Drink", report.Totals[0].Category)
	assert.InDelta(t, 15.0, report.Totals[0].Total, 1e-9)
	assert.InDelta(t, 18.0, report.GrandTotal, 1e-9)
}

func TestReportMonthList(t *testing.T) {
	srv := newTestServer(t, &fakeExtractor{})
	confirmReceipt(t, srv, "2026-06-10", 10, "Food & Drink")
	confirmReceipt(t, srv, "2026-01-20", 5, "Travel")

	rec := doJSON(t, srv, http.MethodGet, "/api/reports", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var months []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &months))
	assert.Equal(t, []string{"2026-06", "2026-01"}, months)
}

func TestReportBadMonth(t *testing.T) {
	srv := newTestServer(t, &fakeExtractor{})
	rec := doJSON(t, srv, http.MethodGet, "/api/reports/June-2026", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportFormats(t *testing.T) {
	srv := newTestServer(t, &fakeExtractor{})
	confirmReceipt(t, srv, "2026-06-10", 4.5, "Food & Drink")

	csvRec := doJSON(t, srv, http.MethodGet, "/api/export/csv?month=2026-06", nil)
	require.Equal(t, http.StatusOK, csvRec.Code)
	assert.Equal(t, "text/csv", csvRec.Header().Get("Content-Type"))
	assert.Contains(t, csvRec.Header().Get("Content-Disposition"), "expenses-2026-06.csv")
	lines := strings.Split(strings.TrimRight(csvRec.Body.String(), "\n"), "\n")
	assert.Len(t, lines, 2)

	pdfRec := doJSON(t, srv, http.MethodGet, "/api/export/pdf?month=2026-06", nil)
	require.Equal(t, http.StatusOK, pdfRec.Code)
	assert.True(t, bytes.HasPrefix(pdfRec.Body.Bytes(), []byte("%PDF")))

	xlsxRec := doJSON(t, srv, http.MethodGet, "/api/export/xlsx?month=2026-06", nil)
	require.Equal(t, http.StatusOK, xlsxRec.Code)
	assert.True(t, bytes.HasPrefix(xlsxRec.Body.Bytes(), []byte("PK")))

	badRec := doJSON(t, srv, http.MethodGet, "/api/export/docx?month=2026-06", nil)
	assert.Equal(t, http.StatusBadRequest, badRec.Code)
}

func TestAPIKeySettings(t *testing.T) {
	srv := newTestServer(t, &fakeExtractor{})

	status := doJSON(t, srv, http.MethodGet, "/api/settings/api-key", nil)
	require.Equal(t, http.StatusOK, status.Code)
	assert.JSONEq(t, `{"configured":false}`, status.Body.String())

	put := doJSON(t, srv, http.MethodPut, "/api/settings/api-key", apiKeyPayload{APIKey: "sk-test"})
	require.Equal(t, http.StatusNoContent, put.Code)

	status = doJSON(t, srv, http.MethodGet, "/api/settings/api-key", nil)
	assert.JSONEq(t, `{"configured":true}`, status.Body.String())

	// An empty value clears the stored key.
	cleared := doJSON(t, srv, http.MethodPut, "/api/settings/api-key", apiKeyPayload{})
	require.Equal(t, http.StatusNoContent, cleared.Code)

	status = doJSON(t, srv, http.MethodGet, "/api/settings/api-key", nil)
	assert.JSONEq(t, `{"configured":false}`, status.Body.String())
}
