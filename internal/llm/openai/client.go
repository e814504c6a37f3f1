package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/e6ai/expense-agent/internal/imaging"
	"github.com/e6ai/expense-agent/internal/llm"
)

// Extract implements llm.Extractor using vision chat/completions: the image
// travels inline as a base64 data URI at reduced detail, and the model is
// asked for the strict five-field JSON object.
//
// Single attempt, no retry. At most one extraction is in flight per client;
// an overlapping call fails fast with ErrExtractionInFlight.
func (c *Client) Extract(ctx context.Context, image []byte) (llm.ExtractionResult, []byte, error) {
	select {
	case c.busy <- struct{}{}:
		defer func() { <-c.busy }()
	default:
		return llm.ExtractionResult{}, nil, llm.ErrExtractionInFlight
	}

	rid := uuid.New().String()
	start := time.Now()

	secret := c.secrets.Get()
	if secret == "" {
		c.log.Warn("llm.extract.no_credential", "req_id", rid)
		return llm.ExtractionResult{}, nil, llm.ErrNoCredential
	}

	c.log.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"image_bytes", len(image),
	)

	jpeg, err := imaging.EncodeJPEG(image, c.cfg.JPEGQuality)
	if err != nil {
		c.log.Error("llm.extract.encode_error", "req_id", rid, "error", err)
		return llm.ExtractionResult{}, nil, fmt.Errorf("%w: %v", llm.ErrEncodingFailed, err)
	}
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg)

	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": c.cfg.Temperature,
		"max_tokens":  c.cfg.MaxTokens,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": llm.BuildExtractionPrompt()},
					{"type": "image_url", "image_url": map[string]any{"url": dataURL, "detail": "low"}},
				},
			},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + secret}
	raw, _, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.log)
	if err != nil {
		c.log.Error("llm.extract.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.ExtractionResult{}, nil, err
	}

	result, fieldsJSON, err := llm.Normalize(raw, time.Now().UTC())
	if err != nil {
		c.log.Error("llm.extract.parse_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.ExtractionResult{}, raw, err
	}

	// Advisory only: a schema miss means some field fell back to a default.
	if vErr := llm.ValidateJSONAgainstSchema(llm.BuildReceiptJSONSchema(), fieldsJSON); vErr != nil {
		c.log.Warn("llm.extract.schema_mismatch", "req_id", rid, "error", vErr)
	}

	c.log.Info("llm.extract.ok",
		"req_id", rid,
		"vendor", result.Vendor,
		"amount", result.Amount,
		"currency", result.Currency,
		"date", result.Date.Format("2006-01-02"),
		"category", string(result.Category),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return result, fieldsJSON, nil
}
