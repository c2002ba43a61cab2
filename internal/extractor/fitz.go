package extractor

import (
	"image"

	"github.com/gen2brain/go-fitz"
)

// fitzDocument adapts a MuPDF document to the Document interface.
type fitzDocument struct {
	doc *fitz.Document
}

func openFitz(path string) (Document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	return &fitzDocument{doc: doc}, nil
}

func (d *fitzDocument) NumPages() int { return d.doc.NumPage() }

func (d *fitzDocument) Text(page int) (string, error) {
	return d.doc.Text(page)
}

func (d *fitzDocument) Image(page int, dpi float64) (image.Image, error) {
	return d.doc.ImageDPI(page, dpi)
}

func (d *fitzDocument) Close() error { return d.doc.Close() }

// PageCount opens the PDF at path just long enough to count its pages.
func PageCount(path string) (int, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return 0, err
	}
	defer doc.Close()
	return doc.NumPage(), nil
}
