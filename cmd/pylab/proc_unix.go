//go:build unix

package main

import (
	"os/exec"
	"syscall"
)

// detach puts pylabd in its own process group so terminal signals sent to
// the CLI do not reach the daemon
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
