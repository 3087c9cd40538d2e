//go:build windows

package shellx

import "os/exec"

// No process groups on Windows; kill the direct child only.
func setCommandProcessGroup(cmd *exec.Cmd) {
	_ = cmd
}

func killCommandProcessGroup(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}
