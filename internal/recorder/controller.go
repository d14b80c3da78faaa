package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mattjoyce/dictation/internal/config"
	"github.com/mattjoyce/dictation/internal/lock"
	"github.com/mattjoyce/dictation/internal/log"
)

var (
	// ErrAlreadyRecording is returned by Start while a live session exists.
	ErrAlreadyRecording = errors.New("recording already in progress")
	// ErrSpawnFailed is returned by Start when the capture process could not be
	// launched or exited during the start grace period.
	ErrSpawnFailed = errors.New("failed to start audio capture")
)

const fileTimeLayout = "20060102_150405"

// ProcessSupervisor is the subset of process control the controller needs.
type ProcessSupervisor interface {
	Spawn(name string, args ...string) (int, error)
	IsAlive(pid int) bool
	SignalGraceful(pid int) error
	SignalForce(pid int) error
}

// Options tunes a Controller.
type Options struct {
	Command        []string
	RecordingsPath string
	PIDFile        string
	SampleRate     int
	Channels       int
	MaxDuration    time.Duration
	MinBytes       int64
	StartGrace     time.Duration
	StopTimeout    time.Duration
	PollInterval   time.Duration
	KillWait       time.Duration
}

// OptionsFromConfig maps the recording config section to controller options.
func OptionsFromConfig(cfg config.RecordingConfig) Options {
	return Options{
		Command:        cfg.Command,
		RecordingsPath: cfg.RecordingsPath,
		PIDFile:        cfg.PIDFile,
		SampleRate:     cfg.SampleRate,
		Channels:       cfg.Channels,
		MaxDuration:    cfg.MaxDuration,
		MinBytes:       cfg.MinBytes,
		StartGrace:     cfg.StartGrace,
		StopTimeout:    cfg.StopTimeout,
		PollInterval:   cfg.PollInterval,
		KillWait:       cfg.KillWait,
	}
}

// Info describes the active session.
type Info struct {
	PID       int           `json:"pid"`
	File      string        `json:"file"`
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Controller owns the Idle/Recording state machine. State lives entirely in
// the lock record, so any number of Controllers in any number of processes
// observe the same session.
type Controller struct {
	opts    Options
	records *lock.RecordFile
	proc    ProcessSupervisor
	now     func() time.Time
	logger  *slog.Logger
}

// NewController returns a Controller for opts using proc to manage the capture process.
func NewController(opts Options, proc ProcessSupervisor) *Controller {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 50 * time.Millisecond
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 2 * time.Second
	}
	return &Controller{
		opts:    opts,
		records: lock.NewRecordFile(opts.PIDFile),
		proc:    proc,
		now:     time.Now,
		logger:  log.WithComponent("recorder"),
	}
}

// Start launches the capture process and records the session. It returns the
// path the audio is being written to.
func (c *Controller) Start(ctx context.Context) (string, error) {
	var path string
	err := c.records.WithGuard(ctx, func() error {
		if _, active := c.observeLocked(); active {
			return ErrAlreadyRecording
		}

		if err := os.MkdirAll(c.opts.RecordingsPath, 0o755); err != nil {
			return fmt.Errorf("create recordings directory: %w", err)
		}

		started := c.now()
		path = c.nextFileName(started)
		argv := c.expandCommand(path)
		if len(argv) == 0 {
			return fmt.Errorf("%w: empty capture command", ErrSpawnFailed)
		}

		pid, err := c.proc.Spawn(argv[0], argv[1:]...)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSpawnFailed, err)
		}
		logger := log.WithRecording(path).With("pid", pid)

		if err := sleepCtx(ctx, c.opts.StartGrace); err != nil {
			_ = c.proc.SignalForce(pid)
			return err
		}
		if !c.proc.IsAlive(pid) {
			logger.Warn("capture process exited during start grace period")
			return fmt.Errorf("%w: %s exited immediately", ErrSpawnFailed, argv[0])
		}

		rec := lock.Record{PID: pid, File: path, StartedAt: started.Unix()}
		if err := c.records.Create(rec); err != nil {
			_ = c.proc.SignalForce(pid)
			if errors.Is(err, lock.ErrRecordExists) {
				return ErrAlreadyRecording
			}
			return err
		}

		logger.Info("recording started")
		return nil
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

// Stop ends the active session. ok is false when nothing was recording, the
// capture process had already died, or the capture produced no usable audio.
// The lock record is always removed.
func (c *Controller) Stop(ctx context.Context) (path string, ok bool, err error) {
	err = c.records.WithGuard(ctx, func() error {
		rec, active := c.observeLocked()
		if !active {
			return nil
		}
		path, ok = c.stopLocked(rec)
		return nil
	})
	return path, ok, err
}

// IsRecording reports whether a live session exists, clearing stale records
// and enforcing the maximum duration along the way.
func (c *Controller) IsRecording(ctx context.Context) bool {
	active := false
	err := c.records.WithGuard(ctx, func() error {
		_, active = c.observeLocked()
		return nil
	})
	if err != nil {
		c.logger.Warn("recording state check without guard", "error", err)
		rec, rerr := c.records.Read()
		return rerr == nil && c.proc.IsAlive(rec.PID)
	}
	return active
}

// Info returns the active session, or nil when idle.
func (c *Controller) Info(ctx context.Context) (*Info, error) {
	var info *Info
	err := c.records.WithGuard(ctx, func() error {
		rec, active := c.observeLocked()
		if !active {
			return nil
		}
		started := rec.Started()
		info = &Info{
			PID:       rec.PID,
			File:      rec.File,
			StartedAt: started,
			Elapsed:   c.now().Sub(started),
		}
		return nil
	})
	return info, err
}

// Watch enforces the maximum duration for long-running hosts that may not
// otherwise observe the session. It returns when ctx is done.
func (c *Controller) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.IsRecording(ctx)
		}
	}
}

// observeLocked reads the record and heals it: corrupt or stale records are
// deleted and an overdue session is stopped. Must hold the guard.
func (c *Controller) observeLocked() (lock.Record, bool) {
	rec, err := c.records.Read()
	if err != nil {
		if !errors.Is(err, lock.ErrNoRecord) {
			c.logger.Warn("discarding unreadable lock record", "error", err)
			_ = c.records.Remove()
		}
		return lock.Record{}, false
	}

	if !c.proc.IsAlive(rec.PID) {
		log.WithRecording(rec.File).Warn("capture process died, clearing stale lock", "pid", rec.PID)
		_ = c.records.Remove()
		return lock.Record{}, false
	}

	if c.opts.MaxDuration > 0 {
		if elapsed := c.now().Sub(rec.Started()); elapsed > c.opts.MaxDuration {
			log.WithRecording(rec.File).Warn("maximum recording duration reached, stopping",
				"elapsed", elapsed.Round(time.Second).String(),
				"max_duration", c.opts.MaxDuration.String())
			c.stopLocked(rec)
			return lock.Record{}, false
		}
	}

	return rec, true
}

// stopLocked runs the graceful-then-forced termination and removes the record.
func (c *Controller) stopLocked(rec lock.Record) (string, bool) {
	logger := log.WithRecording(rec.File).With("pid", rec.PID)

	if c.proc.IsAlive(rec.PID) {
		if err := c.proc.SignalGraceful(rec.PID); err != nil {
			logger.Warn("graceful stop failed", "error", err)
		}
		if !c.waitExit(rec.PID) {
			logger.Warn("capture process ignored interrupt, killing")
			if err := c.proc.SignalForce(rec.PID); err != nil {
				logger.Error("forced stop failed", "error", err)
			}
			time.Sleep(c.opts.KillWait)
		}
	}

	if err := c.records.Remove(); err != nil {
		logger.Error("failed to remove lock record", "error", err)
	}

	info, err := os.Stat(rec.File)
	if err != nil {
		logger.Warn("recording produced no file")
		return "", false
	}
	if info.Size() < c.opts.MinBytes {
		logger.Warn("recording too small, discarding", "bytes", info.Size(), "min_bytes", c.opts.MinBytes)
		return "", false
	}

	logger.Info("recording stopped", "bytes", info.Size())
	return rec.File, true
}

// waitExit polls liveness until the process is gone or the stop timeout elapses.
func (c *Controller) waitExit(pid int) bool {
	deadline := time.Now().Add(c.opts.StopTimeout)
	for time.Now().Before(deadline) {
		if !c.proc.IsAlive(pid) {
			return true
		}
		time.Sleep(c.opts.PollInterval)
	}
	return !c.proc.IsAlive(pid)
}

func (c *Controller) nextFileName(t time.Time) string {
	base := "recording_" + t.Format(fileTimeLayout)
	path := filepath.Join(c.opts.RecordingsPath, base+".wav")
	for i := 2; ; i++ {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return path
		}
		path = filepath.Join(c.opts.RecordingsPath, base+"_"+strconv.Itoa(i)+".wav")
	}
}

func (c *Controller) expandCommand(path string) []string {
	r := strings.NewReplacer(
		"{file}", path,
		"{rate}", strconv.Itoa(c.opts.SampleRate),
		"{channels}", strconv.Itoa(c.opts.Channels),
	)
	argv := make([]string, len(c.opts.Command))
	for i, arg := range c.opts.Command {
		argv[i] = r.Replace(arg)
	}
	return argv
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
