package o11ygin

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"

	"github.com/circleci/testservers/o11y"
	"github.com/circleci/testservers/o11y/otel"
)

func newRouter(t *testing.T) (*gin.Engine, *otel.Provider, *bytes.Buffer) {
	t.Helper()

	buf := &bytes.Buffer{}
	p, err := otel.New(context.Background(), otel.Config{Service: "test", Writer: buf, Test: true})
	assert.Assert(t, err)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(p, "test-server"), Recovery(), ClientCancelled())
	r.GET("/trace/:id", func(c *gin.Context) {
		ctx := c.Request.Context()
		c.String(http.StatusOK, o11y.FromContext(ctx).Helpers().TraceID(ctx))
	})
	r.GET("/panic", func(c *gin.Context) {
		panic("handler exploded")
	})
	return r, p, buf
}

func TestMiddleware_JoinsRemoteTrace(t *testing.T) {
	r, p, buf := newRouter(t)

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	req := httptest.NewRequest(http.MethodGet, "/trace/123", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Check(t, cmp.Equal(w.Code, http.StatusOK))
	assert.Check(t, cmp.Equal(w.Body.String(), traceID))

	p.Close(context.Background())
	assert.Check(t, cmp.Contains(buf.String(), "GET /trace/:id"))
	assert.Check(t, cmp.Contains(buf.String(), "handler.vars.id=123"))
	assert.Check(t, cmp.Contains(buf.String(), "http.status_code=200"))
}

func TestMiddleware_NewTrace(t *testing.T) {
	r, p, _ := newRouter(t)
	defer p.Close(context.Background())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/trace/1", nil))

	assert.Check(t, cmp.Equal(w.Code, http.StatusOK))
	assert.Check(t, cmp.Len(w.Body.String(), 32))
}

func TestRecovery(t *testing.T) {
	r, p, buf := newRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Check(t, cmp.Equal(w.Code, http.StatusInternalServerError))

	p.Close(context.Background())
	assert.Check(t, cmp.Contains(buf.String(), "has_panicked=true"))
}
