package runner

import (
	"os/exec"
	"syscall"
)

// setSysProcAttr asks the kernel to signal the child when the test binary dies, so a
// crashed or killed test run cannot orphan it.
// Pdeathsig fires when the forking OS thread exits, not the process.
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Pdeathsig: syscall.SIGTERM,
	}
}
