//go:build unix

package lock

import (
	"golang.org/x/sys/unix"
	"os"
	"syscall"
)

// describeTermination explains why a process that did not exit normally has no exit code.
func describeTermination(state *os.ProcessState) string {
	status, ok := state.Sys().(syscall.WaitStatus)
	if !ok || !status.Signaled() {
		return state.String()
	}

	name := unix.SignalName(status.Signal())
	if name == "" {
		name = status.Signal().String()
	}

	if status.CoreDump() {
		return "terminated by " + name + ", core dumped"
	}

	return "terminated by " + name
}
