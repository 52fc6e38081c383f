package ginrouter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"

	"github.com/circleci/testservers/internal/syncbuffer"
	"github.com/circleci/testservers/o11y"
	"github.com/circleci/testservers/o11y/otel"
)

func TestDefault(t *testing.T) {
	b := &syncbuffer.SyncBuffer{}

	p, err := otel.New(context.Background(), otel.Config{Writer: b, Test: true})
	assert.NilError(t, err)
	ctx := o11y.WithProvider(context.Background(), p)

	r := Default(ctx, "test server")
	r.GET("/foo", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/foo", nil))
	assert.Check(t, cmp.Equal(w.Code, http.StatusOK))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Check(t, cmp.Equal(w.Code, http.StatusInternalServerError))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Check(t, cmp.Equal(w.Code, http.StatusNotFound))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/foo", nil))
	assert.Check(t, cmp.Equal(w.Code, http.StatusMethodNotAllowed))

	p.Close(ctx)
	out := b.String()
	assert.Check(t, cmp.Contains(out, "GET /foo"))
	assert.Check(t, cmp.Contains(out, "http.server_name=test server"))
	assert.Check(t, cmp.Contains(out, "GET not-found"))
}
