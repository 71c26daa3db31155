package tool

import (
	"fmt"
	"os"
	"os/exec"
	"time"
)

// waitDelay bounds how long Wait keeps copying output after the process is
// gone, for children that inherited the pipes.
const waitDelay = 2 * time.Second

// runProcess starts name with args in ec.Dir, capturing stdout and stderr
// into one tail buffer. A single select decides between normal exit, the
// timeout and cancellation; the latter two go through kill.
func runProcess(ec ExecContext, name string, args []string) Result {
	buf := NewTailBuffer(ec.TailLines)

	cmd := exec.Command(name, args...)
	cmd.Dir = ec.Dir
	cmd.Env = append(os.Environ(), ec.Env...)
	cmd.Stdout = buf
	cmd.Stderr = buf
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return Result{
			SpawnErr: fmt.Errorf("failed to start %s: %w", name, err),
			Output:   buf.String(),
		}
	}

	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
	}()

	var timeout <-chan time.Time
	if ec.Timeout > 0 {
		timer := time.NewTimer(ec.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	var res Result
	select {
	case err := <-exited:
		res.ExitCode, res.SpawnErr = exitStatus(cmd, name, err)
	case <-timeout:
		res.TimedOut = true
		kill(cmd)
		<-exited
	case <-ec.context().Done():
		res.Cancelled = true
		kill(cmd)
		<-exited
	}

	res.Output = buf.String()
	return res
}

// exitStatus turns the result of Wait into an exit code. A child killed by
// a signal it did not get from us reports 128+signal, as a shell would. When
// no status can be determined the error is returned instead.
func exitStatus(cmd *exec.Cmd, name string, waitErr error) (*int, error) {
	state := cmd.ProcessState
	if state == nil {
		return nil, fmt.Errorf("failed to wait for %s: %w", name, waitErr)
	}
	if code := state.ExitCode(); code >= 0 {
		return intPtr(code), nil
	}
	if sig, ok := terminatingSignal(state); ok {
		return intPtr(128 + sig), nil
	}
	return nil, fmt.Errorf("%s ended without an exit status: %s", name, state)
}

func kill(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	if err := killProcessTree(cmd); err != nil {
		_ = cmd.Process.Kill()
	}
}
