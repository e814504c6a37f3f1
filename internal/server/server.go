// Package server exposes the extraction pipeline and receipt ledger over
// HTTP JSON.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/e6ai/expense-agent/internal/common"
	"github.com/e6ai/expense-agent/internal/credentials"
	"github.com/e6ai/expense-agent/internal/export"
	"github.com/e6ai/expense-agent/internal/receipts"
)

// maxUploadBytes caps receipt image uploads.
const maxUploadBytes = int64(50 << 20)

// Server routes API requests to the receipts service, export service, and
// credential manager.
type Server struct {
	receipts *receipts.Service
	exports  *export.Service
	creds    *credentials.Manager
	logger   *slog.Logger
	mux      *http.ServeMux
}

func NewServer(rs *receipts.Service, es *export.Service, creds *credentials.Manager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		receipts: rs,
		exports:  es,
		creds:    creds,
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Routes go from most specific to least specific.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/extract", s.handleExtract)

	s.mux.HandleFunc("GET /api/receipts/{id}/image", s.handleReceiptImage)
	s.mux.HandleFunc("GET /api/receipts/{id}", s.handleGetReceipt)
	s.mux.HandleFunc("PATCH /api/receipts/{id}", s.handleUpdateReceipt)
	s.mux.HandleFunc("DELETE /api/receipts/{id}", s.handleDeleteReceipt)
	s.mux.HandleFunc("GET /api/receipts", s.handleListReceipts)
	s.mux.HandleFunc("POST /api/receipts", s.handleConfirmReceipt)

	s.mux.HandleFunc("GET /api/reports/{month}", s.handleReport)
	s.mux.HandleFunc("GET /api/reports", s.handleReportMonths)
	s.mux.HandleFunc("GET /api/export/{format}", s.handleExport)

	s.mux.HandleFunc("GET /api/settings/api-key", s.handleGetAPIKey)
	s.mux.HandleFunc("PUT /api/settings/api-key", s.handleSetAPIKey)

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
}

// ServeHTTP applies the request-scoped logging middleware and dispatches.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqID := uuid.New().String()
	ctx := common.WithRequestID(r.Context(), reqID)

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r.WithContext(ctx))

	level := slog.LevelInfo
	if rec.status >= 500 {
		level = slog.LevelError
	} else if rec.status >= 400 {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "http.request",
		"req_id", reqID,
		"method", r.Method,
		"path", r.URL.Path,
		"status", rec.status,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http.listen", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("http.shutdown")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
