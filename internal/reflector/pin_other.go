//go:build !linux

package reflector

import "runtime"

func pinThread(cpu int) error {
	runtime.LockOSThread()
	return nil
}
