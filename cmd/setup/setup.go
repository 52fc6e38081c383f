// Package setup holds the configuration and wiring every service binary shares.
package setup

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	o11yconf "github.com/circleci/testservers/config/o11y"
	"github.com/circleci/testservers/httpserver"
	"github.com/circleci/testservers/httpserver/ginrouter"
	"github.com/circleci/testservers/httpserver/healthcheck"
	"github.com/circleci/testservers/o11y"
	"github.com/circleci/testservers/system"
)

type CLI struct {
	o11yconf.CLI

	Host          string        `env:"LISTEN_HOST" default:"::1" help:"The loopback address to listen on"`
	ShutdownDelay time.Duration `env:"SHUTDOWN_DELAY" default:"0s" help:"Delay shutdown by this amount" hidden:""`
}

// Addr is port on the configured host, which the test runner sets to the loopback
// address it found the free port on.
func (c CLI) Addr(port int) string {
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// flushTimeout bounds how long exiting services wait for their spans to be exported.
const flushTimeout = 5 * time.Second

// LoadO11y returns a context carrying the service's provider. The cleanup flushes spans
// even when the context it is given has been cancelled.
func LoadO11y(version, service string, cli CLI) (context.Context, func(context.Context), error) {
	ctx, cleanup, err := o11yconf.Setup(context.Background(), cli.Config(service, version))
	if err != nil {
		return ctx, nil, err
	}
	return ctx, func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
		defer cancel()
		cleanup(ctx)
	}, nil
}

// LoadAPI creates the service router and adds the server to the system. The router
// gets health endpoints for the system's health checks, the server's own included, and
// routes adds the service's handlers.
func LoadAPI(ctx context.Context, name, addr string, sys *system.System, routes func(r *gin.Engine)) error {
	r := ginrouter.Default(ctx, name)
	server, err := httpserver.Load(ctx, httpserver.Config{
		Name:    name,
		Addr:    addr,
		Handler: r,
	}, sys)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", name, err)
	}

	err = healthcheck.Register(r, sys.HealthChecks())
	if err != nil {
		return err
	}
	routes(r)

	host, p, _ := net.SplitHostPort(server.Addr())
	o11y.Log(ctx, "started",
		o11y.Field("server.address", host),
		o11y.Field("server.port", p),
	)
	return nil
}
