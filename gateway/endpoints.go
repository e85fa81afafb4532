package gateway

import (
	"context"
	"net/http"

	"github.com/nixxel-company-limited/embosser-controller/dots"
	"github.com/nixxel-company-limited/embosser-controller/failure"
)

// Gateway routes
const (
	PathTranscribe  = "/"
	PathConnect     = "/connect"
	PathDisconnect  = "/disconnect"
	PathPrintDots   = "/print_dots"
	PathPausePrint  = "/pause_print"
	PathResumePrint = "/resume_print"
	PathStopPrint   = "/stop_print"
	PathPrintedDots = "/printed_dots"
	PathPreviewPDF  = "/dot_pos_to_pdf"
)

// Content types understood by the transcription route
const (
	TypeText = "text"
	TypePDF  = "pdf"
)

// TranscribeRequest carries exactly one of Text or File
type TranscribeRequest struct {
	Type     string
	Text     string
	FileName string
	File     []byte
}

type connectRequest struct {
	Port     string `json:"port"`
	BaudRate int    `json:"baudRate"`
}

type dotPositionsRequest struct {
	DotPositions dots.Page `json:"dotPositions"`
}

// Transcribe converts text or PDF content into a paginated document
func (c *Client) Transcribe(ctx context.Context, req TranscribeRequest) (dots.Document, error) {
	var body Body
	switch req.Type {
	case TypeText:
		body = Multipart([][2]string{{"type", TypeText}, {"text", req.Text}}, nil)
	case TypePDF:
		name := req.FileName
		if name == "" {
			name = "document.pdf"
		}
		body = Multipart([][2]string{{"type", TypePDF}}, &File{Field: "file", Name: name, Data: req.File})
	default:
		return nil, failure.NewPrecondition(PathTranscribe, "unknown content type "+req.Type)
	}

	res, err := c.Call(ctx, http.MethodPost, PathTranscribe, body)
	if err != nil {
		return nil, err
	}
	var doc dots.Document
	if err := res.DecodeJSON(&doc); err != nil {
		return nil, c.decodeFailure(PathTranscribe, res, err)
	}
	return doc, nil
}

// Connect asks the gateway to open the device on port at baud
func (c *Client) Connect(ctx context.Context, port string, baud int) error {
	_, err := c.Call(ctx, http.MethodPost, PathConnect, JSON(connectRequest{Port: port, BaudRate: baud}))
	return err
}

// Disconnect asks the gateway to close the device
func (c *Client) Disconnect(ctx context.Context) error {
	_, err := c.Call(ctx, http.MethodPost, PathDisconnect, nil)
	return err
}

// PrintDots submits one page. Success means accepted, not printed
func (c *Client) PrintDots(ctx context.Context, page dots.Page) error {
	_, err := c.Call(ctx, http.MethodPost, PathPrintDots, JSON(dotPositionsRequest{DotPositions: nonNil(page)}))
	return err
}

// PausePrint pauses the job the device is running
func (c *Client) PausePrint(ctx context.Context) error {
	_, err := c.Call(ctx, http.MethodPost, PathPausePrint, nil)
	return err
}

// ResumePrint resumes a paused job
func (c *Client) ResumePrint(ctx context.Context) error {
	_, err := c.Call(ctx, http.MethodPost, PathResumePrint, nil)
	return err
}

// StopPrint ends the job the device is running
func (c *Client) StopPrint(ctx context.Context) error {
	_, err := c.Call(ctx, http.MethodPost, PathStopPrint, nil)
	return err
}

// PrintedDots fetches the dots struck so far. Failures are not reported to the
// operator: pollers call this every tick and treat errors as transient
func (c *Client) PrintedDots(ctx context.Context) (dots.Page, error) {
	res, err := c.call(ctx, http.MethodPost, PathPrintedDots, nil)
	if err != nil {
		return nil, err
	}
	if len(res.Body) == 0 {
		return dots.Page{}, nil
	}
	var page dots.Page
	if err := res.DecodeJSON(&page); err != nil {
		return nil, failure.NewApplication(PathPrintedDots, res.StatusCode, "malformed response: "+err.Error())
	}
	return nonNil(page), nil
}

// PreviewPDF renders one page to a PDF on the gateway side
func (c *Client) PreviewPDF(ctx context.Context, page dots.Page) ([]byte, error) {
	res, err := c.Call(ctx, http.MethodPost, PathPreviewPDF, JSON(dotPositionsRequest{DotPositions: nonNil(page)}))
	if err != nil {
		return nil, err
	}
	return res.Bytes(), nil
}

func (c *Client) decodeFailure(path string, res *Response, err error) error {
	ferr := failure.NewApplication(path, res.StatusCode, "malformed response: "+err.Error())
	c.report(path, ferr)
	return ferr
}

func nonNil(p dots.Page) dots.Page {
	if p == nil {
		return dots.Page{}
	}
	return p
}
