package errs

import (
	"errors"
	"fmt"
	"strings"
)

// error kinds shared by every export stage
var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrUnsupportedFrameRate = errors.New("unsupported frame rate")
	ErrAlignment            = errors.New("alignment failure")
	ErrEncoding             = errors.New("encoding error")
	ErrExternalCollaborator = errors.New("external collaborator error")
)

// NoIndex marks an Error that does not point at a list element.
const NoIndex = -1

// Error carries the kind plus enough context to render a precise message.
type Error struct {
	Kind  error
	Op    string
	Index int
	Value any
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Op != "" {
		sb.WriteString(e.Op)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Kind.Error())
	if e.Msg != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Msg)
	}
	if e.Index != NoIndex {
		sb.WriteString(fmt.Sprintf(" (index %d)", e.Index))
	}
	if e.Value != nil {
		sb.WriteString(fmt.Sprintf(" (value %v)", e.Value))
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, op string, index int, value any, format string, args ...any) *Error {
	return &Error{
		Kind:  kind,
		Op:    op,
		Index: index,
		Value: value,
		Msg:   fmt.Sprintf(format, args...),
	}
}

func InvalidInput(op string, index int, value any, format string, args ...any) *Error {
	return newError(ErrInvalidInput, op, index, value, format, args...)
}

func UnsupportedFrameRate(op string, value any, format string, args ...any) *Error {
	return newError(ErrUnsupportedFrameRate, op, NoIndex, value, format, args...)
}

func Alignment(op string, index int, format string, args ...any) *Error {
	return newError(ErrAlignment, op, index, nil, format, args...)
}

func Encoding(op string, index int, value any, format string, args ...any) *Error {
	return newError(ErrEncoding, op, index, value, format, args...)
}

// Collaborator wraps a failure of probe, transcription or detection data.
func Collaborator(op string, err error, format string, args ...any) *Error {
	e := newError(ErrExternalCollaborator, op, NoIndex, nil, format, args...)
	e.Err = err
	return e
}

// KindOf returns the kind sentinel of err, or nil for foreign errors.
func KindOf(err error) error {
	for _, kind := range []error{
		ErrInvalidInput,
		ErrUnsupportedFrameRate,
		ErrAlignment,
		ErrEncoding,
		ErrExternalCollaborator,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	switch KindOf(err) {
	case nil:
		if err == nil {
			return 0
		}
		return 1
	case ErrInvalidInput:
		return 2
	case ErrUnsupportedFrameRate:
		return 3
	case ErrAlignment:
		return 4
	case ErrEncoding:
		return 5
	case ErrExternalCollaborator:
		return 6
	}
	return 1
}
