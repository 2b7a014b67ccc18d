//go:build !windows

package runner

import "syscall"

// processGroupAttr places the child in its own process group so timeout
// handling can signal the whole group, grounded on the exec.go pattern of
// placing subprocess children in a fresh process group for clean teardown.
func processGroupAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

func killProcessGroup(pid int) error {
	return syscall.Kill(-pid, syscall.SIGKILL)
}
