package o11y

import "errors"

// warning is recorded on a span as a warning field, and does not fail the span.
type warning struct {
	msg string
}

func (w *warning) Error() string {
	return w.msg
}

// NewWarning returns an error that End and AddResultToSpan report as a warning. Every
// warning is distinct, so two with the same message are not equal under errors.Is.
func NewWarning(msg string) error {
	return &warning{msg: msg}
}

// IsWarning reports whether err, or any error it wraps, is a warning.
func IsWarning(err error) bool {
	w := &warning{}
	return errors.As(err, &w)
}
