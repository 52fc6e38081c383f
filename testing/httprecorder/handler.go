package httprecorder

import (
	"net/http"

	"github.com/circleci/testservers/o11y"
)

// Handler records every request before passing it to h. A nil h answers 200 with no body.
func (r *RequestRecorder) Handler(h http.Handler) http.Handler {
	if h == nil {
		h = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		err := r.Record(req)
		if err != nil {
			o11y.LogError(req.Context(), "problem recording HTTP request", err)
		}
		h.ServeHTTP(w, req)
	})
}
