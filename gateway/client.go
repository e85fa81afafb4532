package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nixxel-company-limited/embosser-controller/failure"
	"github.com/nixxel-company-limited/embosser-controller/notify"
)

// Conf locates the gateway
type Conf struct {
	Host    string
	Timeout time.Duration
}

// Client is a typed wrapper around the embossing gateway. It holds no session state
type Client struct {
	*http.Client // [Embedded]
	Conf         Conf
	notifier     notify.Notifier
	logger       zerolog.Logger
}

// New creates a gateway client. A nil notifier discards notifications
func New(conf Conf, notifier notify.Notifier, logger zerolog.Logger) *Client {
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Client{
		Client:   &http.Client{Timeout: conf.Timeout},
		Conf:     Conf{Host: strings.TrimRight(conf.Host, "/"), Timeout: conf.Timeout},
		notifier: notifier,
		logger:   logger.With().Str("component", "gateway").Logger(),
	}
}

// Response is a successful gateway answer, read fully
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// DecodeJSON decodes the body into v
func (r *Response) DecodeJSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Bytes returns the raw body
func (r *Response) Bytes() []byte {
	return r.Body
}

// Body is a request payload that knows its own encoding
type Body interface {
	Encode() (io.Reader, string, error)
}

type jsonBody struct {
	v any
}

func (b jsonBody) Encode() (io.Reader, string, error) {
	raw, err := json.Marshal(b.v)
	if err != nil {
		return nil, "", err
	}
	return bytes.NewReader(raw), "application/json", nil
}

// JSON encodes v as the request body
func JSON(v any) Body {
	return jsonBody{v: v}
}

// File is one multipart file part
type File struct {
	Field string
	Name  string
	Data  []byte
}

type multipartBody struct {
	fields [][2]string
	file   *File
}

func (b multipartBody) Encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, kv := range b.fields {
		if err := w.WriteField(kv[0], kv[1]); err != nil {
			return nil, "", err
		}
	}
	if b.file != nil {
		part, err := w.CreateFormFile(b.file.Field, b.file.Name)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(b.file.Data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// Multipart builds a multipart/form-data body. fields are written in order, file may be nil
func Multipart(fields [][2]string, file *File) Body {
	return multipartBody{fields: fields, file: file}
}

// errorBody is the structured error some gateway routes return
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Call sends a request and classifies the outcome. Failures are reported to the
// notifier and returned as *failure.Error values
func (c *Client) Call(ctx context.Context, method, path string, body Body) (*Response, error) {
	res, err := c.call(ctx, method, path, body)
	if err != nil {
		c.report(path, err)
	}
	return res, err
}

func (c *Client) report(path string, err error) {
	c.notifier.Notify(notify.Error(titleFor(path), failure.Message(err)))
}

// call is Call without the operator notification
func (c *Client) call(ctx context.Context, method, path string, body Body) (*Response, error) {
	var reader io.Reader
	contentType := ""
	if body != nil {
		r, ct, err := body.Encode()
		if err != nil {
			return nil, failure.NewPrecondition(path, "encode request: "+err.Error())
		}
		reader, contentType = r, ct
	}

	upstrReq, err := http.NewRequestWithContext(ctx, method, c.Conf.Host+path, reader)
	if err != nil {
		return nil, failure.NewUnreachable(path, err)
	}
	if contentType != "" {
		upstrReq.Header.Set("Content-Type", contentType)
	}
	upstrReq.Header.Set("Accept", "application/json, application/pdf")

	upstrRes, err := c.Do(upstrReq)
	if err != nil {
		c.logger.Debug().Err(err).Str("path", path).Msg("gateway unreachable")
		return nil, failure.NewUnreachable(path, err)
	}
	defer func() {
		if closeErr := upstrRes.Body.Close(); closeErr != nil {
			c.logger.Warn().Err(closeErr).Str("path", path).Msg("close response body")
		}
	}()

	raw, err := io.ReadAll(upstrRes.Body)
	if err != nil {
		return nil, failure.NewUnreachable(path, err)
	}

	if upstrRes.StatusCode < 200 || upstrRes.StatusCode > 299 {
		msg := statusText(upstrRes)
		var eb errorBody
		if jsonErr := json.Unmarshal(raw, &eb); jsonErr == nil {
			switch {
			case eb.Error != "":
				msg = eb.Error
			case eb.Message != "":
				msg = eb.Message
			}
		}
		c.logger.Debug().Int("status", upstrRes.StatusCode).Str("path", path).Str("message", msg).Msg("gateway rejected request")
		return nil, failure.NewApplication(path, upstrRes.StatusCode, msg)
	}

	return &Response{
		StatusCode: upstrRes.StatusCode,
		Header:     upstrRes.Header,
		Body:       raw,
	}, nil
}

func statusText(res *http.Response) string {
	if text := strings.TrimSpace(strings.TrimPrefix(res.Status, strconv.Itoa(res.StatusCode))); text != "" {
		return text
	}
	if text := http.StatusText(res.StatusCode); text != "" {
		return text
	}
	return res.Status
}

var titles = map[string]string{
	PathTranscribe:  "Transcription failed",
	PathConnect:     "Connect failed",
	PathDisconnect:  "Disconnect failed",
	PathPrintDots:   "Print failed",
	PathPausePrint:  "Pause failed",
	PathResumePrint: "Resume failed",
	PathStopPrint:   "Stop failed",
	PathPreviewPDF:  "Preview failed",
}

func titleFor(path string) string {
	if t, ok := titles[path]; ok {
		return t
	}
	return "Error"
}
