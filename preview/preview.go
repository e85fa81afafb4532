// Package preview turns one page of dot instructions into a viewable artefact
package preview

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"

	"github.com/gen2brain/go-fitz"

	"github.com/nixxel-company-limited/embosser-controller/dots"
)

// DefaultDPI renders a US Letter sheet at 1275x1650 pixels
const DefaultDPI = 150

// Renderer renders a page to PDF bytes on the gateway
type Renderer interface {
	PreviewPDF(ctx context.Context, page dots.Page) ([]byte, error)
}

// Fetch renders page to a PDF
func Fetch(ctx context.Context, r Renderer, page dots.Page) ([]byte, error) {
	pdf, err := r.PreviewPDF(ctx, page)
	if err != nil {
		return nil, err
	}
	if len(pdf) == 0 {
		return nil, errors.New("preview: empty pdf")
	}
	return pdf, nil
}

// Rasterize renders the first page of pdf at dpi
func Rasterize(pdf []byte, dpi float64) (image.Image, error) {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, fmt.Errorf("preview: open pdf: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, errors.New("preview: pdf has no pages")
	}
	img, err := doc.ImageDPI(0, dpi)
	if err != nil {
		return nil, fmt.Errorf("preview: render page: %w", err)
	}
	return img, nil
}

// WritePNG encodes img to w
func WritePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

// SaveFile writes the preview of page to path. With asPNG the PDF is rasterized
// at dpi first
func SaveFile(ctx context.Context, r Renderer, page dots.Page, path string, asPNG bool, dpi float64) error {
	pdf, err := Fetch(ctx, r, page)
	if err != nil {
		return err
	}
	if !asPNG {
		return os.WriteFile(path, pdf, 0o644)
	}

	img, err := Rasterize(pdf, dpi)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WritePNG(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
