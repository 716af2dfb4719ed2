//go:build unix

package audio

import (
	"os"
	"syscall"
)

const interruptSupported = true

// interruptedExit reports whether the process was terminated by SIGINT
func interruptedExit(state *os.ProcessState) bool {
	if state == nil {
		return false
	}
	status, ok := state.Sys().(syscall.WaitStatus)
	return ok && status.Signaled() && status.Signal() == syscall.SIGINT
}
