package extractor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract is an OCREngine backed by the local Tesseract installation.
// A fresh client is created per recognition because gosseract clients are
// not safe for concurrent use.
type Tesseract struct{}

// NewTesseract creates a Tesseract OCR engine.
func NewTesseract() *Tesseract { return &Tesseract{} }

// Recognize runs Tesseract over the image with the given languages and
// page segmentation mode.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image, langs []string, psm int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode page image: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(langs...); err != nil {
		return "", fmt.Errorf("set ocr languages: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(psm)); err != nil {
		return "", fmt.Errorf("set page segmentation mode %d: %w", psm, err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("load page image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract recognize: %w", err)
	}
	return text, nil
}
