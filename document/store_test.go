package document

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixxel-company-limited/embosser-controller/dots"
	"github.com/nixxel-company-limited/embosser-controller/failure"
	"github.com/nixxel-company-limited/embosser-controller/gateway"
	"github.com/nixxel-company-limited/embosser-controller/notify"
)

// MockTranscriber returns a fixed document or error
type MockTranscriber struct {
	mu    sync.Mutex
	doc   dots.Document
	err   error
	block chan struct{}
	reqs  []gateway.TranscribeRequest
}

func (m *MockTranscriber) Transcribe(ctx context.Context, req gateway.TranscribeRequest) (dots.Document, error) {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reqs = append(m.reqs, req)
	return m.doc.Clone(), m.err
}

func (m *MockTranscriber) requests() []gateway.TranscribeRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]gateway.TranscribeRequest(nil), m.reqs...)
}

// MockInspector reports a fixed page count
type MockInspector struct {
	pages int
	err   error
}

func (m MockInspector) PageCount([]byte) (int, error) {
	return m.pages, m.err
}

func helloDocument() dots.Document {
	return dots.Document{
		{{X: 0, Y: 0, Punch: true, Page: 0}},
		{{X: 0, Y: 0, Punch: false, Page: 1}},
	}
}

func TestSubmitText(t *testing.T) {
	tr := &MockTranscriber{doc: helloDocument()}
	hub := notify.NewHub()
	notes, cancel := hub.Subscribe(4)
	defer cancel()

	s := NewStore(tr, nil, hub, zerolog.Nop())
	doc, err := s.Submit(context.Background(), Text("hello"))
	require.NoError(t, err)

	assert.Equal(t, 2, doc.PageCount())
	assert.Equal(t, 2, s.PageCount())
	assert.Equal(t, helloDocument(), s.Document())

	reqs := tr.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, gateway.TypeText, reqs[0].Type)
	assert.Equal(t, "hello", reqs[0].Text)

	n := <-notes
	assert.Equal(t, notify.LevelSuccess, n.Level)
	assert.Equal(t, "2 pages", n.Message)
}

func TestSubmitPDF(t *testing.T) {
	tr := &MockTranscriber{doc: helloDocument()}
	s := NewStore(tr, MockInspector{pages: 3}, nil, zerolog.Nop())

	_, err := s.Submit(context.Background(), PDF("letter.pdf", []byte("%PDF-1.7")))
	require.NoError(t, err)

	reqs := tr.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, gateway.TypePDF, reqs[0].Type)
	assert.Equal(t, "letter.pdf", reqs[0].FileName)
}

func TestSubmitRejectedLocally(t *testing.T) {
	testCases := []struct {
		name      string
		content   Content
		inspector PDFInspector
	}{
		{"EmptyText", Text("   \n"), nil},
		{"EmptyFile", PDF("empty.pdf", nil), nil},
		{"UnreadablePDF", PDF("bad.pdf", []byte("junk")), MockInspector{err: errors.New("missing header")}},
		{"NoPages", PDF("blank.pdf", []byte("%PDF-1.7")), MockInspector{pages: 0}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tr := &MockTranscriber{doc: helloDocument()}
			s := NewStore(tr, tc.inspector, nil, zerolog.Nop())

			_, err := s.Submit(context.Background(), tc.content)
			assert.True(t, failure.Is(err, failure.Precondition))
			assert.Empty(t, tr.requests(), "no request should be issued")
			assert.Zero(t, s.PageCount())
		})
	}
}

func TestSubmitFailureKeepsPreviousDocument(t *testing.T) {
	tr := &MockTranscriber{doc: helloDocument()}
	s := NewStore(tr, nil, nil, zerolog.Nop())
	_, err := s.Submit(context.Background(), Text("hello"))
	require.NoError(t, err)

	tr.mu.Lock()
	tr.err = failure.NewApplication(gateway.PathTranscribe, 500, "liblouis crashed")
	tr.mu.Unlock()

	_, err = s.Submit(context.Background(), Text("world"))
	assert.True(t, failure.Is(err, failure.Application))
	assert.Equal(t, helloDocument(), s.Document())
}

func TestSubmitInvalidDocument(t *testing.T) {
	tr := &MockTranscriber{doc: dots.Document{{{Page: -2}}}}
	s := NewStore(tr, nil, nil, zerolog.Nop())

	_, err := s.Submit(context.Background(), Text("hello"))
	assert.True(t, failure.Is(err, failure.Application))
	assert.Zero(t, s.PageCount())
}

func TestSubmitBusy(t *testing.T) {
	tr := &MockTranscriber{doc: helloDocument(), block: make(chan struct{})}
	s := NewStore(tr, nil, nil, zerolog.Nop())

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background(), Text("first"))
		done <- err
	}()

	require.Eventually(t, s.Submitting, time.Second, 5*time.Millisecond)

	_, err := s.Submit(context.Background(), Text("second"))
	assert.ErrorIs(t, err, failure.ErrBusy)

	close(tr.block)
	require.NoError(t, <-done)
	assert.False(t, s.Submitting())
	assert.Len(t, tr.requests(), 1)
}

func TestStoreReadsAreCopies(t *testing.T) {
	tr := &MockTranscriber{doc: helloDocument()}
	s := NewStore(tr, nil, nil, zerolog.Nop())
	doc, err := s.Submit(context.Background(), Text("hello"))
	require.NoError(t, err)

	doc[0][0].Punch = false
	page, err := s.Page(0)
	require.NoError(t, err)
	assert.True(t, page[0].Punch)

	page[0].X = 42
	assert.Equal(t, helloDocument(), s.Document())

	_, err = s.Page(5)
	assert.Error(t, err)
}

func TestStoreClear(t *testing.T) {
	tr := &MockTranscriber{doc: helloDocument()}
	s := NewStore(tr, nil, nil, zerolog.Nop())
	_, err := s.Submit(context.Background(), Text("hello"))
	require.NoError(t, err)

	s.Clear()
	assert.Zero(t, s.PageCount())
	assert.Nil(t, s.Document())
}

func TestTranscribeDoesNotCommit(t *testing.T) {
	tr := &MockTranscriber{doc: helloDocument()}
	s := NewStore(tr, nil, nil, zerolog.Nop())

	doc, err := s.Transcribe(context.Background(), Text("hello"))
	require.NoError(t, err)
	assert.Equal(t, 2, doc.PageCount())
	assert.Zero(t, s.PageCount(), "nothing is committed until Replace")

	s.Replace(doc)
	doc[0][0].Punch = false
	assert.Equal(t, helloDocument(), s.Document())
}

func TestTranscribed(t *testing.T) {
	n := Transcribed(dots.Document{{}})
	assert.Equal(t, notify.LevelSuccess, n.Level)
	assert.Equal(t, "Transcribed", n.Title)
	assert.Equal(t, "1 page", n.Message)
}
