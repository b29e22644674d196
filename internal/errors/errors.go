package errors

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Code codes.Code

const (
	CodeInvalidArgument = Code(codes.InvalidArgument)
	CodeNotFound        = Code(codes.NotFound)
	CodeAlreadyExists   = Code(codes.AlreadyExists)
	CodeInternal        = Code(codes.Internal)
	CodeUnauthenticated = Code(codes.Unauthenticated)

	// CodeInvalidState means the operation is not valid for the current game status.
	CodeInvalidState = Code(codes.FailedPrecondition)
	// CodeGameComplete means a question was requested after the last one was answered.
	CodeGameComplete = Code(codes.OutOfRange)
	// CodeOutOfSequence means an answer was submitted with no outstanding question,
	// or a second call raced an in-flight one.
	CodeOutOfSequence = Code(codes.Aborted)
	// CodeUnavailable means a collaborator (question source, checker, store) failed or timed out.
	// Operations failing with this code did not change any state and can be retried.
	CodeUnavailable = Code(codes.Unavailable)
)

func (c Code) String() string {
	return codes.Code(c).String()
}

var code2http = map[Code]int{
	CodeInvalidArgument: http.StatusBadRequest,
	CodeNotFound:        http.StatusNotFound,
	CodeAlreadyExists:   http.StatusConflict,
	CodeInternal:        http.StatusInternalServerError,
	CodeUnauthenticated: http.StatusUnauthorized,
	CodeInvalidState:    http.StatusConflict,
	CodeGameComplete:    http.StatusConflict,
	CodeOutOfSequence:   http.StatusConflict,
	CodeUnavailable:     http.StatusServiceUnavailable,
}

var code2name = map[Code]string{
	CodeInvalidState:  "invalid state",
	CodeGameComplete:  "game already complete",
	CodeOutOfSequence: "out of sequence",
	CodeUnavailable:   "upstream unavailable",
}

// Sentinels for errors.Is checks. Any *Error with the same code matches.
var (
	ErrInvalidState    = New(CodeInvalidState)
	ErrGameComplete    = New(CodeGameComplete)
	ErrOutOfSequence   = New(CodeOutOfSequence)
	ErrUnavailable     = New(CodeUnavailable)
	ErrNotFound        = New(CodeNotFound)
	ErrInvalidArgument = New(CodeInvalidArgument)
)

type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	err     error
}

func New(code Code, opts ...Option) *Error {
	msg, ok := code2name[code]
	if !ok {
		msg = codes.Code(code).String()
	}

	e := &Error{
		Code:    code,
		Message: msg,
	}

	for _, opt := range opts {
		opt.apply(e)
	}

	return e
}

func (e *Error) Error() string {
	s := fmt.Sprintf("code: %d, message: %s", e.Code, e.Message)
	if e.err != nil {
		s += fmt.Sprintf(", err: %s", e.err)
	}

	return s
}

func (e *Error) Unwrap() error {
	return e.err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func (e *Error) GRPCStatus() *status.Status {
	return status.New(codes.Code(e.Code), e.Message)
}

func (e *Error) HTTPStatusCode() int {
	if c, ok := code2http[e.Code]; ok {
		return c
	}

	return http.StatusInternalServerError
}

func Convert(err error) *Error {
	var e *Error
	if !errors.As(err, &e) {
		return Internal(err)
	}

	return e
}

func Internal(err error) *Error {
	return New(CodeInternal, WithCause(err))
}

// Unavailable wraps a collaborator failure.
func Unavailable(err error) *Error {
	return New(CodeUnavailable, WithCause(err))
}

type Option interface {
	apply(*Error)
}

type optionFunc func(*Error)

func (f optionFunc) apply(e *Error) {
	f(e)
}

func WithCause(err error) Option {
	return optionFunc(func(e *Error) {
		e.err = err
	})
}

func WithMessagef(format string, args ...any) Option {
	return optionFunc(func(e *Error) {
		e.Message = fmt.Sprintf(format, args...)
	})
}
