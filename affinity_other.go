//go:build !linux

package taskpool

import "errors"

func PinToCPU(cpu int) error {
	return errors.New("taskpool: cpu pinning is only supported on linux")
}
