//go:build unix

package tool

import (
	"os"
	"os/exec"
	"syscall"
)

// setProcessGroup puts the child in its own group so kill reaches anything
// it spawned.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killProcessTree(cmd *exec.Cmd) error {
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}

func shellCommand(text string) (string, []string) {
	return "sh", []string{"-c", text}
}

func terminatingSignal(state *os.ProcessState) (int, bool) {
	ws, ok := state.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return 0, false
	}
	return int(ws.Signal()), true
}
