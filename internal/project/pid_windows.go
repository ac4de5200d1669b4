//go:build windows

package project

import "os"

// pidAlive reports whether the PID maps to a live process. FindProcess on
// Windows opens a handle, so an error means the process is gone.
func pidAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	proc.Release()
	return true
}
