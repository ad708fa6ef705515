package apierr

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
)

// Caller-facing error codes. They mirror the lower-kebab gRPC code names used by callable endpoints.
const (
	CodeInvalidArgument    = "invalid-argument"
	CodeResourceExhausted  = "resource-exhausted"
	CodeFailedPrecondition = "failed-precondition"
	CodeInternal           = "internal"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

// GRPCCode reports the gRPC code equivalent of e.Code.
func (e *Error) GRPCCode() codes.Code {
	if e == nil {
		return codes.OK
	}
	switch e.Code {
	case CodeInvalidArgument:
		return codes.InvalidArgument
	case CodeResourceExhausted:
		return codes.ResourceExhausted
	case CodeFailedPrecondition:
		return codes.FailedPrecondition
	default:
		return codes.Internal
	}
}

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func InvalidArgument(err error) *Error {
	return New(http.StatusBadRequest, CodeInvalidArgument, err)
}

func ResourceExhausted(err error) *Error {
	return New(http.StatusTooManyRequests, CodeResourceExhausted, err)
}

func FailedPrecondition(err error) *Error {
	return New(http.StatusBadRequest, CodeFailedPrecondition, err)
}

func Internal(err error) *Error {
	return New(http.StatusInternalServerError, CodeInternal, err)
}

// From returns the *Error in err's chain, or wraps err as an internal error.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal(err)
}
