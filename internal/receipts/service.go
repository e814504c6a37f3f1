// Package receipts implements the draft/confirm lifecycle: extraction
// produces an in-memory draft, and only an explicit confirmation turns a
// draft into a persisted ledger record.
package receipts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/e6ai/expense-agent/constants"
	"github.com/e6ai/expense-agent/internal/common"
	"github.com/e6ai/expense-agent/internal/entity"
	"github.com/e6ai/expense-agent/internal/llm"
	"github.com/e6ai/expense-agent/internal/repository"
	"github.com/e6ai/expense-agent/internal/storage"
)

// Service handles receipt business logic.
type Service struct {
	repo      repository.ReceiptRepository
	extractor llm.Extractor
	images    storage.Storage
	logger    *slog.Logger
}

func NewService(repo repository.ReceiptRepository, extractor llm.Extractor, images storage.Storage, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, extractor: extractor, images: images, logger: logger}
}

// ExtractDraft runs the extraction pipeline once and returns an unpersisted
// draft. Extraction failures surface unchanged; nothing is written anywhere.
func (s *Service) ExtractDraft(ctx context.Context, image []byte) (*entity.Draft, error) {
	result, _, err := s.extractor.Extract(ctx, image)
	if err != nil {
		return nil, err
	}
	return &entity.Draft{
		Vendor:   result.Vendor,
		Amount:   result.Amount,
		Currency: result.Currency,
		Date:     result.Date,
		Category: result.Category,
		Image:    image,
	}, nil
}

// ConfirmRequest carries the user-approved (possibly edited) draft fields.
// Values are persisted as given; no amount validation happens here.
type ConfirmRequest struct {
	Vendor   string
	Amount   float64
	Currency string
	Date     time.Time
	Category string
	Notes    string
	Image    []byte
}

// Confirm promotes a draft to a persisted receipt. The category is coerced
// into the taxonomy; the image, when present, is stored out-of-line.
func (s *Service) Confirm(ctx context.Context, req ConfirmRequest) (*entity.Receipt, error) {
	category, _ := constants.ParseCategory(req.Category)

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}
	date := req.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}

	rec := &entity.Receipt{
		ID:        uuid.New(),
		Vendor:    req.Vendor,
		Amount:    req.Amount,
		Currency:  currency,
		Date:      date,
		Category:  category,
		CreatedAt: time.Now().UTC(),
		Notes:     req.Notes,
	}

	if len(req.Image) > 0 {
		name, err := s.images.Save(rec.ID.String()+".jpg", req.Image)
		if err != nil {
			return nil, fmt.Errorf("store image: %w", err)
		}
		rec.ImagePath = name
	}

	if err := s.repo.Insert(ctx, rec); err != nil {
		if rec.ImagePath != "" {
			if delErr := s.images.Delete(rec.ImagePath); delErr != nil {
				s.logger.Warn("receipts.orphan_image", "id", rec.ID.String(), "error", delErr)
			}
		}
		return nil, err
	}

	s.logger.Info("receipts.confirmed",
		"req_id", common.RequestIDFromContext(ctx),
		"id", rec.ID.String(),
		"vendor", rec.Vendor,
		"amount", rec.Amount,
	)
	return rec, nil
}

// List returns all receipts, newest purchase first.
func (s *Service) List(ctx context.Context) ([]*entity.Receipt, error) {
	return s.repo.ListAll(ctx)
}

// ListMonth returns the receipts for one calendar month.
func (s *Service) ListMonth(ctx context.Context, year int, month time.Month) ([]*entity.Receipt, error) {
	return s.repo.ListMonth(ctx, year, month)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*entity.Receipt, error) {
	return s.repo.GetByID(ctx, id)
}

// Image returns the stored photograph for a receipt.
func (s *Service) Image(ctx context.Context, id uuid.UUID) ([]byte, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.ImagePath == "" {
		return nil, fmt.Errorf("receipt %s has no image", id)
	}
	return s.images.Get(rec.ImagePath)
}

// UpdateRequest carries user edits to an existing receipt. Nil fields are
// left unchanged.
type UpdateRequest struct {
	Vendor   *string
	Amount   *float64
	Currency *string
	Date     *time.Time
	Category *string
	Notes    *string
}

// Update applies user edits. CreatedAt and the stored image never change.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*entity.Receipt, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Vendor != nil {
		rec.Vendor = *req.Vendor
	}
	if req.Amount != nil {
		rec.Amount = *req.Amount // accepted as-is, even if negative
	}
	if req.Currency != nil {
		rec.Currency = *req.Currency
	}
	if req.Date != nil {
		rec.Date = *req.Date
	}
	if req.Category != nil {
		rec.Category, _ = constants.ParseCategory(*req.Category)
	}
	if req.Notes != nil {
		rec.Notes = *req.Notes
	}

	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes the record and its stored image. A missing image file does
// not fail the deletion.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if rec.ImagePath != "" {
		if err := s.images.Delete(rec.ImagePath); err != nil {
			s.logger.Warn("receipts.image_delete_failed", "id", id.String(), "error", err)
		}
	}
	return nil
}
