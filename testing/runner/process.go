package runner

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/circleci/testservers/internal/syncbuffer"
	"github.com/circleci/testservers/o11y"
)

// State is where a process is in its lifecycle. It only moves forwards.
type State int32

const (
	Running State = iota
	TerminatingGraceful
	TerminatingForced
	Exited
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case TerminatingGraceful:
		return "terminating-graceful"
	case TerminatingForced:
		return "terminating-forced"
	case Exited:
		return "exited"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// killReapTimeout bounds the wait for the kernel to reap a process after SIGKILL.
const killReapTimeout = 5 * time.Second

type Process struct {
	// ctx carries o11y for logging the stop, it is never cancelled
	ctx         context.Context
	name        string
	addr        *net.TCPAddr
	cmd         *exec.Cmd
	logs        *syncbuffer.SyncBuffer
	stopTimeout time.Duration

	state   atomic.Int32
	exited  chan struct{}
	waitErr error

	stopOnce sync.Once
	stopErr  error
}

// newProcess takes ownership of a started command, and reaps it when it exits.
func newProcess(ctx context.Context, name string, addr *net.TCPAddr, cmd *exec.Cmd,
	logs *syncbuffer.SyncBuffer, stopTimeout time.Duration) *Process {

	p := &Process{
		ctx:         context.WithoutCancel(ctx),
		name:        name,
		addr:        addr,
		cmd:         cmd,
		logs:        logs,
		stopTimeout: stopTimeout,
		exited:      make(chan struct{}),
	}
	go func() {
		p.waitErr = cmd.Wait()
		p.state.Store(int32(Exited))
		close(p.exited)
	}()
	return p
}

func (p *Process) Name() string {
	return p.name
}

// Addr is the loopback address the process was told to listen on.
func (p *Process) Addr() net.Addr {
	return p.addr
}

func (p *Process) URL() string {
	return "http://" + p.addr.String()
}

func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Logs returns everything the process has written to stdout and stderr so far.
func (p *Process) Logs() string {
	return p.logs.String()
}

// Exited is closed once the process has exited and been reaped.
func (p *Process) Exited() <-chan struct{} {
	return p.exited
}

// ExitErr is the result of waiting on the process. It is nil while the process runs,
// and for a zero exit status.
func (p *Process) ExitErr() error {
	select {
	case <-p.exited:
		return p.waitErr
	default:
		return nil
	}
}

func (p *Process) State() State {
	return State(p.state.Load())
}

// Stop asks the process to exit with SIGTERM, and sends SIGKILL if it is still running
// after the stop timeout. It returns once the process has been reaped. Stop may be
// called any number of times from any goroutine, and only the first call signals.
func (p *Process) Stop() error {
	p.stopOnce.Do(func() {
		p.stopErr = p.terminate()
	})
	return p.stopErr
}

func (p *Process) terminate() (err error) {
	select {
	case <-p.exited:
		return nil
	default:
	}

	ctx, span := o11y.StartSpan(p.ctx, "runner: stop")
	defer o11y.End(span, &err)
	span.AddField("name", p.name)
	span.AddField("pid", p.Pid())

	p.advance(Running, TerminatingGraceful)
	// The process may exit between the check above and the signal. That is success.
	_ = signal(p.cmd.Process, syscall.SIGTERM)

	timer := time.NewTimer(p.stopTimeout)
	defer timer.Stop()
	select {
	case <-p.exited:
		return nil
	case <-timer.C:
	}

	p.advance(TerminatingGraceful, TerminatingForced)
	o11y.LogError(ctx, "runner: kill", o11y.NewWarning(
		fmt.Sprintf("%s still running %s after SIGTERM", p.name, p.stopTimeout)),
		o11y.Field("pid", p.Pid()),
	)
	_ = p.cmd.Process.Kill()

	select {
	case <-p.exited:
		return nil
	case <-time.After(killReapTimeout):
		return fmt.Errorf("process %s (pid %d) still running %s after SIGKILL", p.name, p.Pid(), killReapTimeout)
	}
}

// advance moves the state on, unless the process has exited in the meantime.
func (p *Process) advance(from, to State) {
	p.state.CompareAndSwap(int32(from), int32(to))
}

func signal(proc *os.Process, sig os.Signal) error {
	err := proc.Signal(sig)
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}
