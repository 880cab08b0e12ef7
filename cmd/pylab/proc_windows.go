//go:build windows

package main

import (
	"os/exec"
	"syscall"
)

// detach starts pylabd in a new process group, away from the CLI's console
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}
