package httpserver

import (
	"context"
	"fmt"

	"github.com/circleci/testservers/system"
)

var _ system.HealthChecker = (*HTTPServer)(nil)

// Load binds the server and adds it to the system, which serves it on Run. The server
// is also a health check of the system, ready once it is serving.
func Load(ctx context.Context, cfg Config, sys *system.System) (*HTTPServer, error) {
	server, err := New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to bind %q server: %w", cfg.Name, err)
	}

	sys.AddService(server.Serve)
	sys.AddHealthCheck(server)
	return server, nil
}
