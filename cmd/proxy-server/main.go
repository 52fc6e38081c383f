// Command proxy-server forwards every request, other than its own health checks, to
// the service at TARGET_URL and answers with that service's response body.
package main

import (
	"errors"
	"log" //nolint:depguard // non-o11y log is allowed for a top-level fatal
	"net/url"

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

	Port      int      `env:"PORT" default:"9002" help:"The port to listen on, on LISTEN_HOST"`
	TargetURL *url.URL `env:"TARGET_URL" required:"" help:"The root URL of the service to proxy"`
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

	target, err := targetURL(cli.TargetURL)
	if err != nil {
		return err
	}

	ctx, o11yCleanup, err := setup.LoadO11y(version, "proxy-server", cli.CLI)
	if err != nil {
		return err
	}
	defer o11yCleanup(ctx)

	ctx, runSpan := o11y.StartSpan(ctx, "main: run")
	defer o11y.End(runSpan, &err)
	runSpan.AddField("target_url", target.String())

	sys := system.New(ctx)
	defer sys.Cleanup(ctx)

	p := newProxy(target)
	sys.AddCleanup(p.close)
	err = setup.LoadAPI(ctx, "proxy-server", cli.Addr(cli.Port), sys, func(r *gin.Engine) {
		r.NoRoute(p.forward)
	})
	if err != nil {
		return err
	}

	return sys.Run(cli.ShutdownDelay)
}

func targetURL(u *url.URL) (*url.URL, error) {
	switch {
	case u == nil:
		return nil, errors.New("TARGET_URL is required")
	case u.Scheme == "":
		return nil, errors.New("target URL has no scheme")
	case u.Host == "":
		return nil, errors.New("target URL has no authority")
	}
	return u, nil
}
