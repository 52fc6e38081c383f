// Command echo-server answers POST /echo with the request body.
package main

import (
	"errors"
	"io"
	"log" //nolint:depguard // non-o11y log is allowed for a top-level fatal
	"net/http"

	"github.com/alecthomas/kong"
	"github.com/gin-gonic/gin"

	"github.com/circleci/testservers/cmd"
	"github.com/circleci/testservers/cmd/setup"
	"github.com/circleci/testservers/o11y"
	"github.com/circleci/testservers/system"
	"github.com/circleci/testservers/termination"
)

type cli struct {
	setup.CLI

	Port int `env:"PORT" default:"9001" help:"The port to listen on, on LISTEN_HOST"`
}

func main() {
	err := run(cmd.Version)
	if err != nil && !errors.Is(err, termination.ErrTerminated) {
		log.Fatal("Unexpected Error: ", err)
	}
	log.Println("exited 0")
}

func run(version string) (err error) {
	cli := cli{}
	kong.Parse(&cli)

	ctx, o11yCleanup, err := setup.LoadO11y(version, "echo-server", cli.CLI)
	if err != nil {
		return err
	}
	defer o11yCleanup(ctx)

	ctx, runSpan := o11y.StartSpan(ctx, "main: run")
	defer o11y.End(runSpan, &err)

	sys := system.New(ctx)
	defer sys.Cleanup(ctx)

	err = setup.LoadAPI(ctx, "echo-server", cli.Addr(cli.Port), sys, func(r *gin.Engine) {
		r.POST("/echo", echo)
	})
	if err != nil {
		return err
	}

	return sys.Run(cli.ShutdownDelay)
}

func echo(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	o11y.AddField(c.Request.Context(), "body", string(body))

	contentType := c.ContentType()
	if contentType == "" {
		contentType = "text/plain; charset=utf-8"
	}
	c.Data(http.StatusOK, contentType, body)
}
