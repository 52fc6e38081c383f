/*
Package runner builds a service binary, runs it on a free loopback port and hands it to
the test only once it is accepting connections and reporting healthy.

It is part of our belief that testing binaries that will be shipping into production
with as little modification as is possible is one of the most effective ways of
producing high value tests.

A started service is told where to listen through the LISTEN_HOST and PORT environment
variables, LISTEN_HOST being whichever loopback address the free port was found on, and
where to send traces through OTEL_EXPORTER_OTLP_ENDPOINT. It is expected to serve
GET /health once it is ready, unless started WithoutHealthCheck.

Stopping a process sends it SIGTERM and, if it has not exited within the stop timeout,
SIGKILL. Runner.Stop stops every process the runner started, so a test only needs:

	r := runner.New(runner.Config{Target: "../..", Source: "./cmd"})
	t.Cleanup(func() { assert.Check(t, r.Stop()) })

	echo, err := r.Start(ctx, "echo-server")
	assert.Assert(t, err)
*/
package runner
