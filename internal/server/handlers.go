package server

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/e6ai/expense-agent/constants"

	"github.com/e6ai/expense-agent/internal/entity"
	"github.com/e6ai/expense-agent/internal/receipts"
	"github.com/e6ai/expense-agent/internal/reports"
)

const dateLayout = "2006-01-02"

type draftResponse struct {
	Vendor   string  `json:"vendor"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Date     string  `json:"date"`
	Category string  `json:"category"`
	ImageB64 string  `json:"image_b64"`
}

// handleExtract accepts a receipt photo (multipart "file" field or raw body)
// and returns the extracted draft. Nothing is persisted until the draft is
// confirmed via POST /api/receipts.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	image, err := readUpload(r)
	if err != nil {
		badRequest(w, "No image provided.")
		return
	}

	draft, err := s.receipts.ExtractDraft(r.Context(), image)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, draftResponse{
		Vendor:   draft.Vendor,
		Amount:   draft.Amount,
		Currency: draft.Currency,
		Date:     draft.Date.Format(dateLayout),
		Category: string(draft.Category),
		ImageB64: base64.StdEncoding.EncodeToString(draft.Image),
	})
}

func readUpload(r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxUploadBytes)

	ct := r.Header.Get("Content-Type")
	if len(ct) >= 19 && ct[:19] == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return nil, err
		}
		f, header, err := r.FormFile("file")
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if ext := filepath.Ext(header.Filename); ext != "" && !constants.IsAllowedExt(ext) {
			return nil, fmt.Errorf("unsupported file type %q", ext)
		}
		return io.ReadAll(f)
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty body")
	}
	return data, nil
}

type confirmPayload struct {
	Vendor   string  `json:"vendor"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Date     string  `json:"date"`
	Category string  `json:"category"`
	Notes    string  `json:"notes"`
	ImageB64 string  `json:"image_b64"`
}

// handleConfirmReceipt persists a user-approved draft.
func (s *Server) handleConfirmReceipt(w http.ResponseWriter, r *http.Request) {
	var payload confirmPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		badRequest(w, "Invalid request body.")
		return
	}

	var date time.Time
	if payload.Date != "" {
		var err error
		date, err = time.Parse(dateLayout, payload.Date)
		if err != nil {
			badRequest(w, "Date must be YYYY-MM-DD.")
			return
		}
	}

	var image []byte
	if payload.ImageB64 != "" {
		var err error
		image, err = base64.StdEncoding.DecodeString(payload.ImageB64)
		if err != nil {
			badRequest(w, "Image must be base64 encoded.")
			return
		}
	}

	rec, err := s.receipts.Confirm(r.Context(), receipts.ConfirmRequest{
		Vendor:   payload.Vendor,
		Amount:   payload.Amount,
		Currency: payload.Currency,
		Date:     date,
		Category: payload.Category,
		Notes:    payload.Notes,
		Image:    image,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	if month := r.URL.Query().Get("month"); month != "" {
		year, m, ok := parseMonth(month)
		if !ok {
			badRequest(w, "Month must be YYYY-MM.")
			return
		}
		recs, err := s.receipts.ListMonth(r.Context(), year, m)
		if err != nil {
			writeError(w, err)
			return
		}
		writeReceiptList(w, recs)
		return
	}

	recs, err := s.receipts.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeReceiptList(w, recs)
}

func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, err := s.receipts.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleReceiptImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	data, err := s.receipts.Image(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	_, _ = w.Write(data)
}

type updatePayload struct {
	Vendor   *string  `json:"vendor"`
	Amount   *float64 `json:"amount"`
	Currency *string  `json:"currency"`
	Date     *string  `json:"date"`
	Category *string  `json:"category"`
	Notes    *string  `json:"notes"`
}

func (s *Server) handleUpdateReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var payload updatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		badRequest(w, "Invalid request body.")
		return
	}

	req := receipts.UpdateRequest{
		Vendor:   payload.Vendor,
		Amount:   payload.Amount,
		Currency: payload.Currency,
		Category: payload.Category,
		Notes:    payload.Notes,
	}
	if payload.Date != nil {
		date, err := time.Parse(dateLayout, *payload.Date)
		if err != nil {
			badRequest(w, "Date must be YYYY-MM-DD.")
			return
		}
		req.Date = &date
	}

	rec, err := s.receipts.Update(r.Context(), id, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.receipts.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReport returns the aggregated monthly summary.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	year, month, ok := parseMonth(r.PathValue("month"))
	if !ok {
		badRequest(w, "Month must be YYYY-MM.")
		return
	}

	recs, err := s.receipts.ListMonth(r.Context(), year, month)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reports.MonthlySummary(recs, year, month))
}

// handleReportMonths lists the months that have at least one receipt, newest
// first, as YYYY-MM strings.
func (s *Server) handleReportMonths(w http.ResponseWriter, r *http.Request) {
	recs, err := s.receipts.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	months := reports.AvailableMonths(recs)
	out := make([]string, 0, len(months))
	for _, m := range months {
		out = append(out, m.Format("2006-01"))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleExport streams the month's receipts in the requested format.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	year, month, ok := parseMonth(r.URL.Query().Get("month"))
	if !ok {
		badRequest(w, "Month must be YYYY-MM.")
		return
	}

	var (
		data        []byte
		err         error
		contentType string
		ext         string
	)
	switch format := r.PathValue("format"); format {
	case "csv":
		data, err = s.exports.MonthCSV(r.Context(), year, month)
		contentType, ext = "text/csv", "csv"
	case "pdf":
		data, err = s.exports.MonthPDF(r.Context(), year, month)
		contentType, ext = "application/pdf", "pdf"
	case "xlsx":
		data, err = s.exports.MonthXLSX(r.Context(), year, month)
		contentType, ext = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "xlsx"
	default:
		badRequest(w, "Format must be csv, pdf, or xlsx.")
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	filename := fmt.Sprintf("expenses-%04d-%02d.%s", year, month, ext)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write(data)
}

type apiKeyPayload struct {
	APIKey string `json:"api_key"`
}

// handleGetAPIKey reports whether a key is configured; the secret itself is
// never returned.
func (s *Server) handleGetAPIKey(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"configured": s.creds.Get() != ""})
}

// handleSetAPIKey stores a new key; an empty value clears the stored key.
func (s *Server) handleSetAPIKey(w http.ResponseWriter, r *http.Request) {
	var payload apiKeyPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		badRequest(w, "Invalid request body.")
		return
	}
	if err := s.creds.Set(r.Context(), payload.APIKey); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeReceiptList keeps an empty result an array, not null.
func writeReceiptList(w http.ResponseWriter, recs []*entity.Receipt) {
	if recs == nil {
		recs = []*entity.Receipt{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		badRequest(w, "Receipt id must be a UUID.")
		return uuid.Nil, false
	}
	return id, true
}

func parseMonth(s string) (int, time.Month, bool) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return 0, 0, false
	}
	return t.Year(), t.Month(), true
}
