package document

import (
	"bytes"
	"fmt"

	"github.com/gen2brain/go-fitz"
)

// PDFInspector checks a PDF before it is uploaded for transcription
type PDFInspector interface {
	// PageCount opens data and returns its page count
	PageCount(data []byte) (int, error)
}

var pdfMagic = []byte("%PDF-")

// FitzInspector opens PDFs with MuPDF
type FitzInspector struct{}

// PageCount returns the number of pages in data
func (FitzInspector) PageCount(data []byte) (int, error) {
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), pdfMagic) {
		return 0, fmt.Errorf("missing %s header", pdfMagic)
	}
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()
	return doc.NumPage(), nil
}
