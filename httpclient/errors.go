package httpclient

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is returned for any response status of 300 or above.
type StatusError struct {
	Method   string
	Route    string
	Code     int
	Attempts int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s after %d attempt(s)",
		e.Method, e.Route, e.Code, http.StatusText(e.Code), e.Attempts)
}

// HasStatusCode reports whether err is a StatusError with one of codes.
func HasStatusCode(err error, codes ...int) bool {
	e := &StatusError{}
	if !errors.As(err, &e) {
		return false
	}
	for _, code := range codes {
		if e.Code == code {
			return true
		}
	}
	return false
}

// IsRequestProblem reports whether err is a StatusError in the 4XX range.
func IsRequestProblem(err error) bool {
	e := &StatusError{}
	return errors.As(err, &e) && e.Code >= 400 && e.Code < 500
}
