//go:build unix

package service

import (
	"os/exec"
	"syscall"
)

// killGroup puts the command into its own process group and makes context
// cancellation kill the whole group, npx forks the actual tool.
func killGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
