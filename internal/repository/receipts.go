package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/e6ai/expense-agent/constants"
	"github.com/e6ai/expense-agent/internal/common"
	"github.com/e6ai/expense-agent/internal/entity"
)

// ReceiptRepository is the ledger store. Records enter only through Insert
// (explicit user confirmation) and leave only through Delete.
type ReceiptRepository interface {
	Insert(ctx context.Context, r *entity.Receipt) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Receipt, error)
	// ListAll returns all receipts sorted by purchase date descending.
	ListAll(ctx context.Context) ([]*entity.Receipt, error)
	// ListMonth returns receipts whose purchase date falls in the given
	// calendar month, sorted by purchase date descending.
	ListMonth(ctx context.Context, year int, month time.Month) ([]*entity.Receipt, error)
	// Update rewrites the user-editable fields (vendor, amount, currency,
	// date, category, notes). CreatedAt and the image are immutable.
	Update(ctx context.Context, r *entity.Receipt) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type receiptRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewReceiptRepository(db *sql.DB, logger *slog.Logger) ReceiptRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &receiptRepository{db: db, logger: logger}
}

const receiptColumns = "id, vendor, amount, currency, tx_date, category, image_path, created_at, notes"

func (r *receiptRepository) Insert(ctx context.Context, rec *entity.Receipt) error {
	query := `INSERT INTO receipts (` + receiptColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID.String(),
		rec.Vendor,
		rec.Amount,
		rec.Currency,
		rec.Date.UTC().Format(time.RFC3339),
		string(rec.Category),
		rec.ImagePath,
		rec.CreatedAt.UTC().Format(time.RFC3339),
		rec.Notes,
	)
	if err != nil {
		return fmt.Errorf("insert receipt: %w", err)
	}
	r.logger.Info("repo.receipt.inserted", "id", rec.ID.String(), "vendor", rec.Vendor)
	return nil
}

func (r *receiptRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE id = ?`
	rec, err := scanReceipt(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("get receipt: %w", err)
	}
	return rec, nil
}

func (r *receiptRepository) ListAll(ctx context.Context) ([]*entity.Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts ORDER BY tx_date DESC, created_at DESC`
	return r.list(ctx, query)
}

func (r *receiptRepository) ListMonth(ctx context.Context, year int, month time.Month) ([]*entity.Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts
		WHERE substr(tx_date, 1, 7) = ? ORDER BY tx_date DESC, created_at DESC`
	return r.list(ctx, query, fmt.Sprintf("%04d-%02d", year, int(month)))
}

func (r *receiptRepository) list(ctx context.Context, query string, args ...any) ([]*entity.Receipt, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	var result []*entity.Receipt
	for rows.Next() {
		rec, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *receiptRepository) Update(ctx context.Context, rec *entity.Receipt) error {
	query := `UPDATE receipts
		SET vendor = ?, amount = ?, currency = ?, tx_date = ?, category = ?, notes = ?
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query,
		rec.Vendor,
		rec.Amount,
		rec.Currency,
		rec.Date.UTC().Format(time.RFC3339),
		string(rec.Category),
		rec.Notes,
		rec.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("update receipt: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update receipt: rows affected: %w", err)
	}
	if affected == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *receiptRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM receipts WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete receipt: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete receipt: rows affected: %w", err)
	}
	if affected == 0 {
		return common.ErrNotFound
	}
	r.logger.Info("repo.receipt.deleted", "id", id.String())
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row rowScanner) (*entity.Receipt, error) {
	var (
		rec       entity.Receipt
		id        string
		txDate    string
		category  string
		createdAt string
	)
	if err := row.Scan(&id, &rec.Vendor, &rec.Amount, &rec.Currency, &txDate, &category, &rec.ImagePath, &createdAt, &rec.Notes); err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse receipt id %q: %w", id, err)
	}
	rec.ID = parsed

	if rec.Date, err = time.Parse(time.RFC3339, txDate); err != nil {
		return nil, fmt.Errorf("parse tx_date %q: %w", txDate, err)
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}

	// Rows predating a taxonomy change still map into the enum.
	rec.Category, _ = constants.ParseCategory(category)
	return &rec, nil
}
