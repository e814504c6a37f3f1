package llm

import (
	"strings"

	"github.com/e6ai/expense-agent/constants"
)

// BuildExtractionPrompt composes the single user-turn instruction. The model
// must answer with a strict five-field JSON object; everything downstream
// assumes that flat shape.
func BuildExtractionPrompt() string {
	parts := []string{
		"Extract receipt information from this image. Return ONLY valid JSON with these fields:",
		`{`,
		`  "vendor": "store name",`,
		`  "amount": 12.99,`,
		`  "currency": "USD",`,
		`  "date": "2025-01-15",`,
		`  "category": "Food & Drink"`,
		`}`,
		"Category must be one of: " + strings.Join(constants.AsStringSlice(), ", ") + ".",
		"If you can't determine a field, use reasonable defaults. Amount must be a number. Date must be YYYY-MM-DD.",
	}
	return strings.Join(parts, "\n")
}
