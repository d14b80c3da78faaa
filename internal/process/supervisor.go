// Package process spawns detached helper processes and signals them by pid.
//
// Callers never hold an *os.Process across invocations: a pid written to disk
// by one process is probed and signalled by another, so every operation here
// works from the bare pid.
package process

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"github.com/mattjoyce/dictation/internal/log"
	gopsutil "github.com/shirou/gopsutil/v3/process"
)

// Supervisor launches capture processes in their own session.
type Supervisor struct {
	logPath string
	logger  *slog.Logger
}

// NewSupervisor returns a Supervisor. Child stdout and stderr are appended to
// logPath, or discarded when it is empty.
func NewSupervisor(logPath string) *Supervisor {
	return &Supervisor{
		logPath: logPath,
		logger:  log.WithComponent("process"),
	}
}

// Spawn starts name with args, detached from the caller's terminal and
// session, and returns its pid. The binary is executed directly so the pid
// belongs to the capture process itself.
func (s *Supervisor) Spawn(name string, args ...string) (int, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return 0, fmt.Errorf("resolve %s: %w", name, err)
	}

	out, err := s.openOutput()
	if err != nil {
		return 0, err
	}
	defer out.Close()

	cmd := exec.Command(path, args...)
	cmd.Stdin = nil
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start %s: %w", name, err)
	}
	pid := cmd.Process.Pid

	// Reap the child if it exits while we are still alive, otherwise it lingers
	// as a zombie and looks alive to other probes.
	go func() {
		err := cmd.Wait()
		s.logger.Debug("spawned process exited", "pid", pid, "error", err)
	}()

	s.logger.Debug("spawned process", "pid", pid, "binary", path, "args", args)
	return pid, nil
}

func (s *Supervisor) openOutput() (*os.File, error) {
	if s.logPath == "" {
		f, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", os.DevNull, err)
		}
		return f, nil
	}
	if err := os.MkdirAll(filepath.Dir(s.logPath), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(s.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open process log: %w", err)
	}
	return f, nil
}

// IsAlive reports whether pid refers to a running process. Zombies count as dead.
func (s *Supervisor) IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	exists, err := gopsutil.PidExists(int32(pid))
	if err != nil || !exists {
		return false
	}
	p, err := gopsutil.NewProcess(int32(pid))
	if err != nil {
		return false
	}
	status, err := p.Status()
	if err != nil {
		// The process vanished between the two probes.
		return false
	}
	for _, st := range status {
		if st == gopsutil.Zombie {
			return false
		}
	}
	return true
}

// SignalGraceful asks pid to finish up (SIGINT), which lets recorders finalize their output.
func (s *Supervisor) SignalGraceful(pid int) error {
	return s.signal(pid, syscall.SIGINT)
}

// SignalForce kills pid (SIGKILL).
func (s *Supervisor) SignalForce(pid int) error {
	return s.signal(pid, syscall.SIGKILL)
}

func (s *Supervisor) signal(pid int, sig syscall.Signal) error {
	if pid <= 0 {
		return fmt.Errorf("invalid pid %d", pid)
	}
	if err := syscall.Kill(pid, sig); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return nil
		}
		return fmt.Errorf("signal %s to %d: %w", sig, pid, err)
	}
	s.logger.Debug("signalled process", "pid", pid, "signal", sig.String())
	return nil
}
