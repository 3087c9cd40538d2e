//go:build !windows

package sandbox

import (
	"os/exec"
	"syscall"
)

// setCommandProcessGroup puts the child in its own process group so a
// timeout kill reaches the whole tree, not just the direct child.
func setCommandProcessGroup(cmd *exec.Cmd) {
	if cmd == nil {
		return
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killCommandProcessGroup(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
