package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/circleci/testservers/colourise"
	"github.com/circleci/testservers/internal/syncbuffer"
	"github.com/circleci/testservers/o11y"
	"github.com/circleci/testservers/testing/compiler"
)

const defaultTimeout = time.Second

type Config struct {
	// Target is the directory the go tool builds from, usually the module root.
	Target string
	// Source is the directory, relative to Target, holding one main package per service.
	Source string

	// CollectorEndpoint is passed to services as OTEL_EXPORTER_OTLP_ENDPOINT.
	CollectorEndpoint string
	// Env is added to the environment of every service, as KEY=VALUE.
	Env []string

	// PortTimeout bounds the wait for a service to accept connections.
	PortTimeout time.Duration
	// HealthTimeout bounds the wait for a service to report healthy.
	HealthTimeout time.Duration
	// StopTimeout is how long a service has to exit after SIGTERM before it is killed.
	StopTimeout time.Duration

	// NoColour leaves the "[name]" prefix on echoed service output uncoloured.
	NoColour bool
}

type Runner struct {
	cfg      Config
	compiler *compiler.Compiler

	mu        sync.Mutex
	processes []*Process
}

func New(cfg Config) *Runner {
	if cfg.PortTimeout == 0 {
		cfg.PortTimeout = defaultTimeout
	}
	if cfg.HealthTimeout == 0 {
		cfg.HealthTimeout = defaultTimeout
	}
	if cfg.StopTimeout == 0 {
		cfg.StopTimeout = defaultTimeout
	}
	return &Runner{
		cfg:      cfg,
		compiler: compiler.New(),
	}
}

type startOptions struct {
	env         []string
	healthCheck bool
}

type StartOption func(*startOptions)

// WithEnv sets an environment variable for this one service.
func WithEnv(key, value string) StartOption {
	return func(o *startOptions) {
		o.env = append(o.env, key+"="+value)
	}
}

// WithoutHealthCheck makes Start return as soon as the service accepts connections.
func WithoutHealthCheck() StartOption {
	return func(o *startOptions) {
		o.healthCheck = false
	}
}

// Start builds the service called name, runs it and waits until it is ready.
//
// If the service does not become ready the error is returned, and the process is
// left for Stop to tear down, so its logs can still be inspected.
func (r *Runner) Start(ctx context.Context, name string, opts ...StartOption) (*Process, error) {
	p, err := r.start(ctx, name, opts...)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// start returns the process whenever one was spawned, even if it never became ready.
func (r *Runner) start(ctx context.Context, name string, opts ...StartOption) (p *Process, err error) {
	ctx, span := o11y.StartSpan(ctx, "runner: start")
	defer o11y.End(span, &err)
	span.AddField("name", name)

	so := startOptions{healthCheck: true}
	for _, o := range opts {
		o(&so)
	}

	binary, err := r.compiler.Compile(ctx, name, r.cfg.Target, packagePath(r.cfg.Source, name))
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", name, err)
	}

	addr, err := freePort()
	if err != nil {
		return nil, err
	}
	span.AddField("address", addr)

	//#nosec:G204 // this is intentionally running a command for tests
	cmd := exec.Command(binary)
	cmd.Env = r.environment(addr, so.env)
	setSysProcAttr(cmd)
	// A grandchild holding the output pipes open must not block the reap forever.
	cmd.WaitDelay = killReapTimeout

	logs := &syncbuffer.SyncBuffer{}
	colour := !r.cfg.NoColour
	cmd.Stdout = io.MultiWriter(logs, colourise.NewPrefixWriter(os.Stdout, name, colour))
	cmd.Stderr = io.MultiWriter(logs, colourise.NewPrefixWriter(os.Stderr, name, colour))

	err = cmd.Start()
	if err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}

	p = newProcess(ctx, name, addr, cmd, logs, r.cfg.StopTimeout)
	r.track(p)
	span.AddField("pid", p.Pid())

	err = waitForPort(ctx, p, r.cfg.PortTimeout)
	if err == nil && so.healthCheck {
		err = waitForHealth(ctx, p, r.cfg.HealthTimeout)
	}
	if err != nil {
		return p, fmt.Errorf("%s not ready: %w\n%s", name, err, logs.Tail(20))
	}

	o11y.Log(ctx, "runner: ready",
		o11y.Field("name", name),
		o11y.Field("url", p.URL()),
	)
	return p, nil
}

// environment is assembled so the values the runner owns win over anything
// configured, since later duplicates take precedence.
func (r *Runner) environment(addr *net.TCPAddr, extra []string) []string {
	env := []string{"OTEL_BSP_SCHEDULE_DELAY=100"}
	env = append(env, r.cfg.Env...)
	env = append(env, extra...)
	env = append(env,
		"LISTEN_HOST="+addr.IP.String(),
		"PORT="+strconv.Itoa(addr.Port),
	)
	if r.cfg.CollectorEndpoint != "" {
		env = append(env, "OTEL_EXPORTER_OTLP_ENDPOINT="+r.cfg.CollectorEndpoint)
	}
	return env
}

// With starts the service, runs fn with it and stops it again, however fn returns.
// A service that never becomes ready is stopped before With returns, and fn is not run.
func (r *Runner) With(ctx context.Context, name string, fn func(*Process) error, opts ...StartOption) (err error) {
	p, err := r.start(ctx, name, opts...)
	if err != nil {
		if p != nil {
			err = errors.Join(err, p.Stop())
		}
		return err
	}
	defer func() {
		stopErr := p.Stop()
		if err == nil {
			err = stopErr
		}
	}()
	return fn(p)
}

// Stop stops every process started by the runner in parallel, then removes the
// built binaries. The runner can not be used afterwards.
func (r *Runner) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, _ := errgroup.WithContext(context.Background())
	for _, p := range r.processes {
		g.Go(p.Stop)
	}
	r.processes = nil

	err := g.Wait()
	r.compiler.Cleanup()
	return err
}

// packagePath keeps relative sources relative, the go tool reads "cmd/x" as an import path.
func packagePath(source, name string) string {
	p := path.Join(source, name)
	if path.IsAbs(p) {
		return p
	}
	return "./" + p
}

func (r *Runner) track(p *Process) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.processes = append(r.processes, p)
}
