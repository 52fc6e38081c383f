// Package ginrouter builds the gin engine every harness service routes with.
package ginrouter

import (
	"context"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/circleci/testservers/o11y"
	"github.com/circleci/testservers/o11y/wrappers/o11ygin"
)

var releaseMode sync.Once

// Default returns a gin engine that traces every request as serverName, turns panics
// into 500s and stops work for clients that have gone away. A known path requested with
// the wrong method gets a 405.
func Default(ctx context.Context, serverName string) *gin.Engine {
	releaseMode.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	r := gin.New()
	r.UseRawPath = true
	r.HandleMethodNotAllowed = true
	r.ContextWithFallback = true

	r.Use(
		o11ygin.Middleware(o11y.FromContext(ctx), serverName),
		o11ygin.Recovery(),
		o11ygin.ClientCancelled(),
	)
	return r
}
