package qmdx

import (
	"os/exec"
	"sync"
)

var (
	availableOnce sync.Once
	availableVal  bool
)

// Available reports whether the qmd CLI is on $PATH. Checked once per
// process; the tools are simply not registered when it is absent.
func Available() bool {
	availableOnce.Do(func() {
		_, err := exec.LookPath("qmd")
		availableVal = err == nil
	})
	return availableVal
}
