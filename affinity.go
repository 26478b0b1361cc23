//go:build linux

package taskpool

import (
	"golang.org/x/sys/unix"
)

// PinToCPU binds the calling OS thread to cpu. Callers should hold the
// thread with runtime.LockOSThread.
func PinToCPU(cpu int) error {
	var mask unix.CPUSet
	mask.Zero()
	mask.Set(cpu)
	return unix.SchedSetaffinity(0, &mask)
}
