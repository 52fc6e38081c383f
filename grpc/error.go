package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error is what an RPC ended with, as recorded on its span.
type Error struct {
	// Server is set when the error was seen by the server side of the call.
	Server bool
	Err    error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Code() codes.Code {
	return status.Code(e.Err)
}

// Temporary reports whether sending the same call again could succeed.
func (e *Error) Temporary() bool {
	if !e.Server && (errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, context.DeadlineExceeded)) {
		return true
	}
	//nolint:exhaustive // everything else is permanent
	switch e.Code() {
	case codes.Unavailable, codes.ResourceExhausted, codes.Aborted, codes.DeadlineExceeded:
		return true
	}
	return false
}

// IsTemporary reports whether err holds an RPC Error that is Temporary.
func IsTemporary(err error) bool {
	e := &Error{}
	return errors.As(err, &e) && e.Temporary()
}
