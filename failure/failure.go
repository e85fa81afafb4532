// Package failure classifies every error the controller can surface to an operator
package failure

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Kind is the operator-facing class of a failure
type Kind int

const (
	// KindUnknown is returned by KindOf for errors not produced by this package
	KindUnknown Kind = iota
	// Unreachable means the gateway could not be reached at all
	Unreachable
	// Application means the gateway answered and rejected the request
	Application
	// Precondition means the operation was rejected locally before any request
	Precondition
)

func (k Kind) String() string {
	switch k {
	case Unreachable:
		return "unreachable"
	case Application:
		return "application"
	case Precondition:
		return "precondition"
	default:
		return "unknown"
	}
}

// Error is a classified failure
type Error struct {
	Kind    Kind
	Op      string // operation or gateway path
	Message string
	Status  int // HTTP status, Application only
	Err     error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s %s: %s", e.Kind, e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches two *Error values by kind and message, so sentinels work with errors.Is
// even after being re-wrapped with a different Op
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

// NewUnreachable wraps a transport failure
func NewUnreachable(op string, err error) error {
	msg := "gateway unreachable"
	if err != nil {
		msg = err.Error()
	}
	return pkgerrors.WithStack(&Error{Kind: Unreachable, Op: op, Message: msg, Err: err})
}

// NewApplication builds a gateway rejection
func NewApplication(op string, status int, msg string) error {
	return pkgerrors.WithStack(&Error{Kind: Application, Op: op, Status: status, Message: msg})
}

// NewPrecondition builds a local rejection
func NewPrecondition(op, msg string) error {
	return pkgerrors.WithStack(&Error{Kind: Precondition, Op: op, Message: msg})
}

// WithOp re-tags a precondition sentinel with the operation that hit it
func WithOp(op string, sentinel *Error) error {
	e := *sentinel
	e.Op = op
	return pkgerrors.WithStack(&e)
}

// Precondition sentinels. Compare with errors.Is
var (
	ErrNotConnected     = &Error{Kind: Precondition, Message: "device not connected"}
	ErrAlreadyConnected = &Error{Kind: Precondition, Message: "device already connected"}
	ErrNoDocument       = &Error{Kind: Precondition, Message: "no document loaded"}
	ErrBusy             = &Error{Kind: Precondition, Message: "a request is already in flight"}
	ErrEmptyContent     = &Error{Kind: Precondition, Message: "content is empty"}
	ErrInvalidPort      = &Error{Kind: Precondition, Message: "port must not be empty"}
	ErrUnsupportedBaud  = &Error{Kind: Precondition, Message: "unsupported baud rate"}
	ErrClosed           = &Error{Kind: Precondition, Message: "controller is shut down"}
)

// As extracts the classified error, if any
func As(err error) (*Error, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// KindOf reports the kind of err, or KindUnknown
func KindOf(err error) Kind {
	if fe, ok := As(err); ok {
		return fe.Kind
	}
	return KindUnknown
}

// Is reports whether err is classified as kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the operator-facing message of err
func Message(err error) string {
	if fe, ok := As(err); ok {
		return fe.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
