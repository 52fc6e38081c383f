/*
Package collector is an in-memory OpenTelemetry trace collector for tests.

It serves the OTLP gRPC TraceService, keeping every batch of spans it is sent, so a
test can start services with the collector's URL as their OTLP endpoint and then check
the traces they produced.

	state := collector.NewState()
	srv, err := collector.Serve(ctx, state)
	...
	r := runner.New(runner.Config{CollectorEndpoint: srv.URL(), ...})
*/
package collector
