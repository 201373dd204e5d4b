package services

import (
	"os/exec"
	"syscall"
	"time"
)

const (
	// spawnGracePeriod is how long a freshly spawned viewer must
	// stay alive before creation is considered successful.
	spawnGracePeriod = 200 * time.Millisecond

	// terminateTimeout bounds each stage of the graceful-then-
	// forceful termination sequence.
	terminateTimeout = 5 * time.Second
)

// viewerProcess wraps one external viewer process. A monitor
// goroutine reaps the process and closes done, which backs all
// liveness checks — no polling of /proc.
type viewerProcess struct {
	cmd  *exec.Cmd
	done chan struct{}
}

// startProcess spawns command detached from the server's process
// group with discarded stdio. Viewer output goes nowhere; the viewer
// is a GUI, not a pipeline stage.
func startProcess(command []string) (*viewerProcess, error) {
	cmd := exec.Command(command[0], command[1:]...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	p := &viewerProcess{cmd: cmd, done: make(chan struct{})}
	go func() {
		cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

// PID returns the viewer's process id.
func (p *viewerProcess) PID() int {
	return p.cmd.Process.Pid
}

// Alive reports whether the process has not yet been reaped.
func (p *viewerProcess) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// waitFor blocks until the process exits or the timeout elapses,
// reporting whether it exited.
func (p *viewerProcess) waitFor(timeout time.Duration) bool {
	select {
	case <-p.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Terminate sends a graceful termination signal, waits up to
// terminateTimeout, then escalates to a forceful kill and waits
// again. Already-exited processes are a no-op.
func (p *viewerProcess) Terminate() {
	if !p.Alive() {
		return
	}
	p.cmd.Process.Signal(syscall.SIGTERM)
	if p.waitFor(terminateTimeout) {
		return
	}
	p.cmd.Process.Kill()
	p.waitFor(terminateTimeout)
}
