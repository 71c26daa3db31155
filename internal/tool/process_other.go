//go:build !unix

package tool

import (
	"os"
	"os/exec"
)

func setProcessGroup(cmd *exec.Cmd) {}

func killProcessTree(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}

func shellCommand(text string) (string, []string) {
	return "cmd", []string{"/C", text}
}

func terminatingSignal(*os.ProcessState) (int, bool) {
	return 0, false
}
