//go:build windows

package sandbox

import "os/exec"

// Process groups are a POSIX concept; on Windows kill the direct child.
func setCommandProcessGroup(cmd *exec.Cmd) {
	_ = cmd
}

func killCommandProcessGroup(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}
