// Command memory-collector accepts OTLP trace exports over gRPC and keeps them in
// memory until it is terminated.
package main

import (
	"context"
	"errors"
	"log" //nolint:depguard // non-o11y log is allowed for a top-level fatal

	"github.com/alecthomas/kong"

	"github.com/circleci/testservers/background"
	"github.com/circleci/testservers/cmd"
	"github.com/circleci/testservers/cmd/setup"
	"github.com/circleci/testservers/o11y"
	"github.com/circleci/testservers/system"
	"github.com/circleci/testservers/termination"
	"github.com/circleci/testservers/testing/collector"
)

type cli struct {
	setup.CLI

	Port int `env:"PORT" default:"50051" help:"The OTLP gRPC port to listen on, on LISTEN_HOST"`
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

	ctx, o11yCleanup, err := setup.LoadO11y(version, "memory-collector", cli.CLI)
	if err != nil {
		return err
	}
	defer o11yCleanup(ctx)

	ctx, runSpan := o11y.StartSpan(ctx, "main: run")
	defer o11y.End(runSpan, &err)

	sys := system.New(ctx)
	defer sys.Cleanup(ctx)

	_, err = loadCollector(ctx, sys, cli.Addr(cli.Port))
	if err != nil {
		return err
	}

	return sys.Run(cli.ShutdownDelay)
}

// loadCollector binds the collector and registers it with the system, which stops it
// on cleanup.
func loadCollector(ctx context.Context, sys *system.System, addr string) (*background.Server, error) {
	state := collector.NewState()
	srv, err := background.Serve[*collector.Server](ctx, collector.Builder{State: state, Addr: addr})
	if err != nil {
		return nil, err
	}
	o11y.Log(ctx, "collector: listening", o11y.Field("address", srv.Addr().String()))

	sys.AddCleanup(func(ctx context.Context) error {
		err := srv.Stop(ctx)
		o11y.Log(ctx, "collector: stopped", o11y.Field("resource_spans", len(state.Read())))
		return err
	})
	sys.AddService(func(ctx context.Context) error {
		select {
		case <-srv.Done():
			return srv.Err()
		case <-ctx.Done():
			return nil
		}
	})
	return srv, nil
}
