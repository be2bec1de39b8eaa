//go:build windows

package cmd

import (
	"os"
	"os/exec"
)

func setDetached(cmd *exec.Cmd) {
	// Windows: no Setsid equivalent needed for background processes
}

func stopProcess(proc *os.Process) error {
	return proc.Kill()
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	proc.Release()
	return true
}
