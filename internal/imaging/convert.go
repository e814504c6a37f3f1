// Package imaging normalizes captured receipt images for the extraction
// request: any supported input (JPEG, PNG, GIF, HEIC/HEIF, single-page PDF)
// is decoded and re-encoded as a compact JPEG.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // register GIF decoder
	"image/jpeg"
	_ "image/png" // register PNG decoder

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// DefaultQuality matches the capture flow's compression target.
const DefaultQuality = 60

// EncodeJPEG decodes data and re-encodes it as JPEG at the given quality
// (1..100). PDFs are rasterized from their first page; most receipts are a
// single page anyway.
func EncodeJPEG(data []byte, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	img, err := decode(data)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func decode(data []byte) (image.Image, error) {
	if isPDF(data) {
		return pdfFirstPage(data)
	}
	if isHEIC(data) {
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding heic: %w", err)
		}
		return img, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

func pdfFirstPage(data []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering pdf page: %w", err)
	}
	return img, nil
}

func isPDF(data []byte) bool {
	return len(data) >= 5 && string(data[:5]) == "%PDF-"
}

// isHEIC sniffs the ftyp box brands used by iPhone captures.
func isHEIC(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heif", "mif1", "msf1":
		return true
	}
	return false
}
