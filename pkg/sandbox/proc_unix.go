//go:build unix

package sandbox

import (
	"os/exec"
	"syscall"
)

// configureProcess puts the shell in its own process group so a timeout
// kills everything it spawned, not just the shell.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
