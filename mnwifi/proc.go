// Package mnwifi is the emulator-side glue: it owns every external
// process the harness spawns (drone binaries, tcpdump), applies link
// impairments, and reads the position telemetry files the emulator
// writes. Nothing here is reached over the network; it all shells out on
// the emulation host.
package mnwifi

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Proc is one spawned external process. The registry keeps the handle;
// callers that need to stop a specific process early (a capture, say)
// hold the *Proc themselves.
type Proc struct {
	Name string

	cmd     *exec.Cmd
	done    chan struct{}
	waitErr error
	logFile *os.File
}

// Wait blocks until the process exits and returns its exit error.
func (p *Proc) Wait() error {
	<-p.done
	return p.waitErr
}

// ProcRegistry owns spawned process handles so shutdown is explicit and
// complete: every process started through it is stopped by StopAll, in
// reverse start order, TERM first and KILL after a grace period.
type ProcRegistry struct {
	mu    sync.Mutex
	procs []*Proc
	grace time.Duration
	log   *zap.Logger
}

func NewProcRegistry(grace time.Duration, log *zap.Logger) *ProcRegistry {
	if grace <= 0 {
		grace = 2 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ProcRegistry{grace: grace, log: log}
}

// Start spawns a process and registers it. Output goes to the harness's
// own stdout/stderr.
func (r *ProcRegistry) Start(name string, bin string, args ...string) (*Proc, error) {
	cmd := exec.Command(bin, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return r.launch(name, cmd, nil)
}

// StartLogged spawns a process with stdout and stderr redirected to the
// given file, the way drone instances log to /tmp/<id>.log.
func (r *ProcRegistry) StartLogged(name, logPath, bin string, args ...string) (*Proc, error) {
	f, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("open log for %s: %w", name, err)
	}
	cmd := exec.Command(bin, args...)
	cmd.Stdout = f
	cmd.Stderr = f
	return r.launch(name, cmd, f)
}

func (r *ProcRegistry) launch(name string, cmd *exec.Cmd, logFile *os.File) (*Proc, error) {
	if err := cmd.Start(); err != nil {
		if logFile != nil {
			logFile.Close()
		}
		return nil, fmt.Errorf("start %s: %w", name, err)
	}
	p := &Proc{Name: name, cmd: cmd, done: make(chan struct{}), logFile: logFile}
	go func() {
		p.waitErr = cmd.Wait()
		if p.logFile != nil {
			p.logFile.Close()
		}
		close(p.done)
	}()

	r.mu.Lock()
	r.procs = append(r.procs, p)
	r.mu.Unlock()
	r.log.Info("process started", zap.String("name", name), zap.Int("pid", cmd.Process.Pid))
	return p, nil
}

// Stop terminates one process: SIGTERM, grace period, then SIGKILL. The
// TERM-first order matters for tcpdump, which flushes its pcap buffers on
// TERM but leaves a truncated file on KILL.
func (r *ProcRegistry) Stop(p *Proc) {
	select {
	case <-p.done:
		return // already exited
	default:
	}
	p.cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-p.done:
		r.log.Info("process stopped", zap.String("name", p.Name))
	case <-time.After(r.grace):
		r.log.Warn("process ignored SIGTERM, killing", zap.String("name", p.Name))
		p.cmd.Process.Kill()
		<-p.done
	}
}

// StopAll stops every registered process in reverse start order, so
// captures outlive the drones they observe.
func (r *ProcRegistry) StopAll() {
	r.mu.Lock()
	procs := r.procs
	r.procs = nil
	r.mu.Unlock()
	for i := len(procs) - 1; i >= 0; i-- {
		r.Stop(procs[i])
	}
}
