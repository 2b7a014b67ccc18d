//go:build windows

package runner

import (
	"os/exec"
	"syscall"
)

func processGroupAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{}
}

func killProcessGroup(pid int) error {
	// Best-effort: no process-group semantics on Windows without a job
	// object; taskkill /T ends the child and the processes it started.
	p, err := exec.LookPath("taskkill")
	if err != nil {
		return err
	}
	return exec.Command(p, "/PID", itoaPid(pid), "/F", "/T").Run()
}

func itoaPid(pid int) string {
	if pid == 0 {
		return "0"
	}
	var buf [12]byte
	i := len(buf)
	n := pid
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
