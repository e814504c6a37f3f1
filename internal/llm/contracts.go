package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/e6ai/expense-agent/constants"
)

// ExtractionResult is the normalized shape we want from the model. It is
// transient: callers either discard it or promote it to a ledger record on
// user confirmation.
type ExtractionResult struct {
	Vendor   string             `json:"vendor"`
	Amount   float64            `json:"amount"`
	Currency string             `json:"currency"` // ISO 4217
	Date     time.Time          `json:"date"`
	Category constants.Category `json:"category"`
}

// Extraction failure kinds. All are terminal for the current operation; none
// are retried.
var (
	// ErrNoCredential means no API secret is configured; no request was sent.
	ErrNoCredential = errors.New("no api key configured")
	// ErrEncodingFailed means the captured image could not be compressed.
	ErrEncodingFailed = errors.New("image encoding failed")
	// ErrParseFailed means the response envelope or its embedded JSON could
	// not be parsed into the expected shape.
	ErrParseFailed = errors.New("failed to parse extraction response")
	// ErrExtractionInFlight rejects an overlapping extraction on the same client.
	ErrExtractionInFlight = errors.New("extraction already in flight")
)

// APIError is a non-success HTTP response from the model provider. The raw
// body is surfaced for diagnostics, not parsed further.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Body)
}

// Extractor is the interface the receipts service depends on.
type Extractor interface {
	Extract(ctx context.Context, image []byte) (ExtractionResult, []byte /*rawJSON*/, error)
}
