// Package document owns the paginated result of the latest transcription
package document

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nixxel-company-limited/embosser-controller/dots"
	"github.com/nixxel-company-limited/embosser-controller/failure"
	"github.com/nixxel-company-limited/embosser-controller/gateway"
	"github.com/nixxel-company-limited/embosser-controller/notify"
)

// Transcriber turns content into a document
type Transcriber interface {
	Transcribe(ctx context.Context, req gateway.TranscribeRequest) (dots.Document, error)
}

// Content is text or a PDF file to transcribe
type Content struct {
	text     string
	fileName string
	file     []byte
	isPDF    bool
}

// Text builds text content
func Text(s string) Content {
	return Content{text: s}
}

// PDF builds file content
func PDF(name string, data []byte) Content {
	return Content{fileName: name, file: data, isPDF: true}
}

// IsPDF reports whether c carries a file
func (c Content) IsPDF() bool {
	return c.isPDF
}

func (c Content) empty() bool {
	if c.isPDF {
		return len(c.file) == 0
	}
	return strings.TrimSpace(c.text) == ""
}

func (c Content) request() gateway.TranscribeRequest {
	if c.isPDF {
		return gateway.TranscribeRequest{Type: gateway.TypePDF, FileName: c.fileName, File: c.file}
	}
	return gateway.TranscribeRequest{Type: gateway.TypeText, Text: c.text}
}

// Store holds the current document. Submissions replace it wholesale
type Store struct {
	transcriber Transcriber
	inspector   PDFInspector
	notifier    notify.Notifier
	logger      zerolog.Logger
	mu          sync.RWMutex
	doc         dots.Document
	inFlight    bool
}

// NewStore creates an empty store. A nil inspector skips local PDF checks
func NewStore(transcriber Transcriber, inspector PDFInspector, notifier notify.Notifier, logger zerolog.Logger) *Store {
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Store{
		transcriber: transcriber,
		inspector:   inspector,
		notifier:    notifier,
		logger:      logger.With().Str("component", "document").Logger(),
	}
}

// Submit transcribes content and, on success, replaces the current document.
// On failure the previous document is kept
func (s *Store) Submit(ctx context.Context, content Content) (dots.Document, error) {
	doc, err := s.Transcribe(ctx, content)
	if err != nil {
		return nil, err
	}
	s.Replace(doc)
	s.notifier.Notify(Transcribed(doc))
	return doc.Clone(), nil
}

// Transcribe checks and transcribes content without touching the current
// document. Callers that own a view over the document commit the result with
// Replace once they can reset that view in the same step
func (s *Store) Transcribe(ctx context.Context, content Content) (dots.Document, error) {
	if err := s.check(content); err != nil {
		s.logger.Debug().Err(err).Msg("submission rejected")
		s.notifier.Notify(notify.Warning("Submit", failure.Message(err)))
		return nil, err
	}

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		err := failure.WithOp("submit", failure.ErrBusy)
		s.notifier.Notify(notify.Warning("Submit", failure.Message(err)))
		return nil, err
	}
	s.inFlight = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()

	s.logger.Info().Bool("pdf", content.IsPDF()).Msg("transcribing")
	doc, err := s.transcriber.Transcribe(ctx, content.request())
	if err != nil {
		return nil, err
	}

	mismatched, err := doc.Validate()
	if err != nil {
		ferr := failure.NewApplication(gateway.PathTranscribe, 0, err.Error())
		s.notifier.Notify(notify.Error("Transcription failed", failure.Message(ferr)))
		return nil, ferr
	}
	if len(mismatched) > 0 {
		s.logger.Warn().Ints("pages", mismatched).Msg("dot page indices disagree with page position")
	}
	return doc, nil
}

// Replace makes doc the current document
func (s *Store) Replace(doc dots.Document) {
	doc = doc.Clone()
	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
	s.logger.Info().Int("pages", doc.PageCount()).Msg("document replaced")
}

// Transcribed is the notification announcing a newly loaded document
func Transcribed(doc dots.Document) notify.Notification {
	return notify.Success("Transcribed", pluralPages(doc.PageCount()))
}

func (s *Store) check(content Content) error {
	if content.empty() {
		return failure.WithOp("submit", failure.ErrEmptyContent)
	}
	if !content.isPDF || s.inspector == nil {
		return nil
	}
	n, err := s.inspector.PageCount(content.file)
	if err != nil {
		return failure.NewPrecondition("submit", "not a readable PDF: "+err.Error())
	}
	if n == 0 {
		return failure.NewPrecondition("submit", "PDF has no pages")
	}
	return nil
}

// Document returns a copy of the current document
func (s *Store) Document() dots.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone()
}

// Page returns a copy of page i
func (s *Store) Page(i int) (dots.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Page(i)
}

// PageCount returns the number of pages in the current document
func (s *Store) PageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.doc)
}

// Submitting reports whether a submission is in flight
func (s *Store) Submitting() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inFlight
}

// Clear drops the current document
func (s *Store) Clear() {
	s.mu.Lock()
	s.doc = nil
	s.mu.Unlock()
}

func pluralPages(n int) string {
	if n == 1 {
		return "1 page"
	}
	return fmt.Sprintf("%d pages", n)
}
