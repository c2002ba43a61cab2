// Package extractor converts PDF documents into per-page text, preferring
// the native text layer and falling back to OCR when a page's text layer is
// missing or too degraded to trust.
package extractor

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"
)

// Sufficiency thresholds for a page's text layer.
const (
	minTextLength = 120 // runes after stripping whitespace
	minWordCount  = 20
)

// Document is a page-addressable view of an open PDF. Page numbers are
// zero-based. Implementations are not required to be safe for concurrent
// use of the same page, but concurrent access to different pages must work.
type Document interface {
	NumPages() int
	// Text returns the native text layer of a page.
	Text(page int) (string, error)
	// Image renders a page to an image at the given DPI for OCR.
	Image(page int, dpi float64) (image.Image, error)
	Close() error
}

// OCREngine recognizes text in a rendered page image.
type OCREngine interface {
	Recognize(ctx context.Context, img image.Image, langs []string, psm int) (string, error)
}

// Config tunes the extraction and OCR behavior.
type Config struct {
	Languages   []string
	PrimaryDPI  float64
	FallbackDPI float64
	PSMModes    []int
	Workers     int
}

// Extractor extracts page texts from PDFs with OCR fallback.
type Extractor struct {
	ocr  OCREngine
	cfg  Config
	open func(path string) (Document, error)
}

// New creates an Extractor using the given OCR engine. Zero-valued config
// fields are filled with the defaults the original tuning settled on.
func New(ocr OCREngine, cfg Config) *Extractor {
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"eng", "deu"}
	}
	if cfg.PrimaryDPI == 0 {
		cfg.PrimaryDPI = 200
	}
	if cfg.FallbackDPI == 0 {
		cfg.FallbackDPI = 300
	}
	if len(cfg.PSMModes) == 0 {
		cfg.PSMModes = []int{6, 3, 8}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Extractor{ocr: ocr, cfg: cfg, open: openFitz}
}

// Extract opens the PDF at path and returns its page texts in page order.
// Pages that fail extraction are logged and omitted; a document with no
// extractable pages yields an empty slice, never an error.
func (e *Extractor) Extract(ctx context.Context, path string) ([]string, error) {
	doc, err := e.open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer doc.Close()

	return e.ExtractDocument(ctx, doc), nil
}

// ExtractDocument runs per-page extraction concurrently over an open document.
func (e *Extractor) ExtractDocument(ctx context.Context, doc Document) []string {
	n := doc.NumPages()
	texts := make([]string, n)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for page := range n {
		g.Go(func() error {
			text, err := e.extractPage(ctx, doc, page)
			if err != nil {
				slog.Warn("page extraction failed", "page", page+1, "error", err)
				return nil // page failures never abort the document
			}
			texts[page] = strings.TrimSpace(text)
			return nil
		})
	}
	g.Wait()

	pages := make([]string, 0, n)
	for _, t := range texts {
		if t != "" {
			pages = append(pages, t)
		}
	}
	return pages
}

// extractPage tries the native text layer first and falls back to OCR.
// When OCR is also insufficient, non-empty native text wins over OCR output.
func (e *Extractor) extractPage(ctx context.Context, doc Document, page int) (string, error) {
	native, err := doc.Text(page)
	if err != nil {
		slog.Debug("native text extraction failed", "page", page+1, "error", err)
		native = ""
	}
	if Sufficient(native) {
		return native, nil
	}

	slog.Debug("native text insufficient, running OCR", "page", page+1)
	best, err := e.bestOCR(ctx, doc, page)
	if err != nil {
		if strings.TrimSpace(native) != "" {
			return native, nil
		}
		return "", err
	}
	if Sufficient(best) {
		return best, nil
	}
	if strings.TrimSpace(native) != "" {
		return native, nil
	}
	return best, nil
}

// bestOCR renders the page at each configured DPI, recognizes it under each
// page segmentation mode, and keeps the highest-quality result.
func (e *Extractor) bestOCR(ctx context.Context, doc Document, page int) (string, error) {
	var (
		bestText    string
		bestQuality float64
		lastErr     error
		attempted   bool
	)
	for _, dpi := range []float64{e.cfg.PrimaryDPI, e.cfg.FallbackDPI} {
		img, err := doc.Image(page, dpi)
		if err != nil {
			slog.Debug("page render failed", "page", page+1, "dpi", dpi, "error", err)
			lastErr = err
			continue
		}
		for _, psm := range e.cfg.PSMModes {
			if err := ctx.Err(); err != nil {
				return bestText, err
			}
			attempted = true
			text, err := e.ocr.Recognize(ctx, img, e.cfg.Languages, psm)
			if err != nil {
				slog.Debug("ocr attempt failed", "page", page+1, "dpi", dpi, "psm", psm, "error", err)
				lastErr = err
				continue
			}
			if q := Quality(text); q > bestQuality {
				bestQuality = q
				bestText = text
			}
		}
	}
	if !attempted && lastErr != nil {
		return "", fmt.Errorf("render page %d: %w", page+1, lastErr)
	}
	if bestText == "" && lastErr != nil {
		return "", fmt.Errorf("ocr page %d: %w", page+1, lastErr)
	}
	return bestText, nil
}

// Sufficient reports whether a page text is trustworthy on its own:
// enough non-whitespace runes, enough of them alphanumeric, enough words.
func Sufficient(text string) bool {
	if text == "" {
		return false
	}
	var stripped, alnum int
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		stripped++
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			alnum++
		}
	}
	if stripped < minTextLength {
		return false
	}
	if alnum < minTextLength/2 {
		return false
	}
	return len(strings.Fields(text)) >= minWordCount
}
