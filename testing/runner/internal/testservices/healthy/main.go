// Command healthy serves its environment at /api/env, and /health.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"

	"github.com/alecthomas/kong"
	"github.com/gin-gonic/gin"

	"github.com/circleci/testservers/cmd/setup"
	"github.com/circleci/testservers/o11y"
	"github.com/circleci/testservers/system"
	"github.com/circleci/testservers/termination"
)

type cli struct {
	setup.CLI

	Port      int  `env:"PORT" required:""`
	Unhealthy bool `env:"UNHEALTHY" default:"false" help:"Report unhealthy forever"`
}

func main() {
	err := run()
	if err != nil && !errors.Is(err, termination.ErrTerminated) {
		log.Fatal(err)
	}
}

func run() error {
	c := cli{}
	kong.Parse(&c)

	ctx, cleanup, err := setup.LoadO11y("dev", "healthy", c.CLI)
	if err != nil {
		return err
	}
	defer cleanup(ctx)

	sys := system.New(ctx)
	if c.Unhealthy {
		sys.AddHealthCheck(unhealthy{})
	}

	err = setup.LoadAPI(ctx, "healthy", c.Addr(c.Port), sys, func(r *gin.Engine) {
		r.GET("/api/env", func(c *gin.Context) {
			c.JSON(http.StatusOK, os.Environ())
		})
	})
	if err != nil {
		return err
	}

	o11y.Log(ctx, "healthy: running")
	return sys.Run(0)
}

type unhealthy struct{}

func (unhealthy) HealthChecks() (string, func(ctx context.Context) error, func(ctx context.Context) error) {
	return "unhealthy", func(context.Context) error {
		return errors.New("never ready")
	}, nil
}
