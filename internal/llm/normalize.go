package llm

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/e6ai/expense-agent/constants"
)

// Normalize maps a raw chat-completions envelope to an ExtractionResult.
// Pure: no I/O, no clock reads. "now" is the capture time used when the
// date field is absent or unparseable.
//
// Envelope problems (no choices, empty content, unparseable JSON) fail with
// ErrParseFailed. Once a JSON object is in hand, individual fields never
// fail: missing or mistyped values fall back to defaults so a structurally
// valid-but-incomplete response still yields an editable draft.
func Normalize(envelope []byte, now time.Time) (ExtractionResult, []byte, error) {
	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(envelope, &cc); err != nil {
		return ExtractionResult{}, nil, fmt.Errorf("%w: decode envelope: %v", ErrParseFailed, err)
	}
	if len(cc.Choices) == 0 {
		return ExtractionResult{}, nil, fmt.Errorf("%w: no choices in response", ErrParseFailed)
	}
	content := strings.TrimSpace(cc.Choices[0].Message.Content)
	if content == "" {
		return ExtractionResult{}, nil, fmt.Errorf("%w: empty message content", ErrParseFailed)
	}

	// The model may wrap the object in prose or a fenced code block; take the
	// first complete object, else try the content as-is.
	payload := []byte(content)
	if obj, ok := ExtractJSONObject(content); ok {
		payload = obj
	}

	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return ExtractionResult{}, nil, fmt.Errorf("%w: decode fields: %v", ErrParseFailed, err)
	}

	out := ExtractionResult{
		Vendor:   "Unknown",
		Amount:   0,
		Currency: "USD",
		Date:     now,
		Category: constants.Other,
	}
	if v, ok := fields["vendor"].(string); ok {
		out.Vendor = v
	}
	if v, ok := fields["amount"].(float64); ok { // covers integer and float JSON numbers
		out.Amount = v
	}
	if v, ok := fields["currency"].(string); ok {
		out.Currency = v
	}
	if v, ok := fields["date"].(string); ok {
		if d, err := time.Parse("2006-01-02", v); err == nil {
			out.Date = d
		}
	}
	if v, ok := fields["category"].(string); ok {
		out.Category, _ = constants.ParseCategory(v)
	}
	return out, payload, nil
}

// ExtractJSONObject returns the first syntactically complete top-level JSON
// object embedded in s. The scanner tracks brace depth and string-literal
// escaping, so nested objects and braces inside strings are handled.
func ExtractJSONObject(s string) ([]byte, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return nil, false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return []byte(s[start : i+1]), true
			}
		}
	}
	return nil, false
}
