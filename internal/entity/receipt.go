package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/e6ai/expense-agent/constants"
)

// Receipt is a confirmed ledger record.
//
// CreatedAt is set once at construction and never changes; Date is the
// purchase date and is freely editable. Amount is stored as entered; edits
// are not validated at this layer.
type Receipt struct {
	ID        uuid.UUID          `json:"id"`
	Vendor    string             `json:"vendor"`
	Amount    float64            `json:"amount"`
	Currency  string             `json:"currency"`
	Date      time.Time          `json:"date"`
	Category  constants.Category `json:"category"`
	ImagePath string             `json:"image_path,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	Notes     string             `json:"notes"`
}

// Draft is an unpersisted extraction result pending user confirmation.
// The original image bytes travel with it so confirmation can store them.
type Draft struct {
	Vendor   string             `json:"vendor"`
	Amount   float64            `json:"amount"`
	Currency string             `json:"currency"`
	Date     time.Time          `json:"date"`
	Category constants.Category `json:"category"`
	Image    []byte             `json:"-"`
}
