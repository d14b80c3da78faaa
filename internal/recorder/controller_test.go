package recorder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mattjoyce/dictation/internal/lock"
	"github.com/mattjoyce/dictation/internal/log"
	"github.com/mattjoyce/dictation/internal/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR")
	os.Exit(m.Run())
}

// fakeSupervisor simulates capture processes. A spawned process writes
// writeBytes to the {file} argument and stays alive until signalled.
type fakeSupervisor struct {
	mu         sync.Mutex
	nextPID    int
	alive      map[int]bool
	ignoreInt  bool
	spawnErr   error
	dieOnSpawn bool
	writeBytes int
	spawned    [][]string
	graceful   []int
	forced     []int
}

func newFakeSupervisor() *fakeSupervisor {
	return &fakeSupervisor{nextPID: 1000, alive: map[int]bool{}, writeBytes: 4096}
}

func (f *fakeSupervisor) Spawn(name string, args ...string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.spawnErr != nil {
		return 0, f.spawnErr
	}
	f.nextPID++
	pid := f.nextPID
	f.spawned = append(f.spawned, append([]string{name}, args...))
	f.alive[pid] = !f.dieOnSpawn
	if f.writeBytes > 0 && len(args) > 0 {
		_ = os.WriteFile(args[len(args)-1], make([]byte, f.writeBytes), 0o644)
	}
	return pid, nil
}

func (f *fakeSupervisor) IsAlive(pid int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive[pid]
}

func (f *fakeSupervisor) SignalGraceful(pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.graceful = append(f.graceful, pid)
	if !f.ignoreInt {
		f.alive[pid] = false
	}
	return nil
}

func (f *fakeSupervisor) SignalForce(pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forced = append(f.forced, pid)
	f.alive[pid] = false
	return nil
}

func (f *fakeSupervisor) kill(pid int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alive[pid] = false
}

func testOptions(t *testing.T) Options {
	t.Helper()
	dir := t.TempDir()
	return Options{
		Command:        []string{"pw-record", "--rate={rate}", "--channels={channels}", "{file}"},
		RecordingsPath: filepath.Join(dir, "recordings"),
		PIDFile:        filepath.Join(dir, "run", "recording.pid"),
		SampleRate:     16000,
		Channels:       1,
		MaxDuration:    300 * time.Second,
		MinBytes:       100,
		StartGrace:     0,
		StopTimeout:    100 * time.Millisecond,
		PollInterval:   10 * time.Millisecond,
		KillWait:       time.Millisecond,
	}
}

func TestStartWritesLockAndExpandsCommand(t *testing.T) {
	ctx := context.Background()
	opts := testOptions(t)
	sup := newFakeSupervisor()
	c := NewController(opts, sup)
	c.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.Local) }

	path, err := c.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(opts.RecordingsPath, "recording_20260304_050607.wav"), path)

	require.Len(t, sup.spawned, 1)
	assert.Equal(t, []string{"pw-record", "--rate=16000", "--channels=1", path}, sup.spawned[0])

	rec, err := lock.NewRecordFile(opts.PIDFile).Read()
	require.NoError(t, err)
	assert.Equal(t, sup.nextPID, rec.PID)
	assert.Equal(t, path, rec.File)
	assert.Equal(t, c.now().Unix(), rec.StartedAt)

	assert.True(t, c.IsRecording(ctx))
}

func TestStartWhileRecordingFails(t *testing.T) {
	ctx := context.Background()
	sup := newFakeSupervisor()
	c := NewController(testOptions(t), sup)

	first, err := c.Start(ctx)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := c.Start(ctx)
		assert.ErrorIs(t, err, ErrAlreadyRecording)
	}
	assert.Len(t, sup.spawned, 1)

	path, ok, err := c.Stop(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, first, path)

	_, err = c.Start(ctx)
	assert.NoError(t, err)
}

func TestConcurrentStartOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	opts := testOptions(t)
	sup := newFakeSupervisor()
	controllers := []*Controller{NewController(opts, sup), NewController(opts, sup)}

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(c *Controller) {
			defer wg.Done()
			_, err := c.Start(ctx)
			errs <- err
		}(controllers[i%2])
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyRecording)
	}
	assert.Equal(t, 1, succeeded)
}

func TestStopWhileIdleIsIdempotent(t *testing.T) {
	ctx := context.Background()
	c := NewController(testOptions(t), newFakeSupervisor())

	for i := 0; i < 3; i++ {
		path, ok, err := c.Stop(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, path)
	}
}

func TestStopSendsInterruptFirst(t *testing.T) {
	ctx := context.Background()
	sup := newFakeSupervisor()
	c := NewController(testOptions(t), sup)

	_, err := c.Start(ctx)
	require.NoError(t, err)
	pid := sup.nextPID

	_, ok, err := c.Stop(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []int{pid}, sup.graceful)
	assert.Empty(t, sup.forced)
	assert.False(t, c.IsRecording(ctx))
}

func TestStopEscalatesToKill(t *testing.T) {
	ctx := context.Background()
	opts := testOptions(t)
	sup := newFakeSupervisor()
	sup.ignoreInt = true
	c := NewController(opts, sup)

	_, err := c.Start(ctx)
	require.NoError(t, err)
	pid := sup.nextPID

	start := time.Now()
	_, ok, err := c.Stop(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), opts.StopTimeout)
	assert.Equal(t, []int{pid}, sup.graceful)
	assert.Equal(t, []int{pid}, sup.forced)

	_, err = lock.NewRecordFile(opts.PIDFile).Read()
	assert.ErrorIs(t, err, lock.ErrNoRecord)
}

func TestStopRejectsTinyCapture(t *testing.T) {
	ctx := context.Background()
	opts := testOptions(t)
	sup := newFakeSupervisor()
	sup.writeBytes = 10
	c := NewController(opts, sup)

	_, err := c.Start(ctx)
	require.NoError(t, err)

	path, ok, err := c.Stop(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, path)

	_, err = lock.NewRecordFile(opts.PIDFile).Read()
	assert.ErrorIs(t, err, lock.ErrNoRecord, "lock must be removed even without usable audio")
}

func TestStopMissingCapture(t *testing.T) {
	ctx := context.Background()
	sup := newFakeSupervisor()
	sup.writeBytes = 0
	c := NewController(testOptions(t), sup)

	_, err := c.Start(ctx)
	require.NoError(t, err)

	_, ok, err := c.Stop(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStaleLockSelfHeals(t *testing.T) {
	ctx := context.Background()
	opts := testOptions(t)
	sup := newFakeSupervisor()
	c := NewController(opts, sup)

	_, err := c.Start(ctx)
	require.NoError(t, err)
	sup.kill(sup.nextPID)

	assert.False(t, c.IsRecording(ctx))
	_, err = lock.NewRecordFile(opts.PIDFile).Read()
	assert.ErrorIs(t, err, lock.ErrNoRecord)

	_, err = c.Start(ctx)
	assert.NoError(t, err, "a crashed session must not block a new one")
}

func TestStopAfterCrashReturnsNone(t *testing.T) {
	ctx := context.Background()
	opts := testOptions(t)
	sup := newFakeSupervisor()
	c := NewController(opts, sup)

	_, err := c.Start(ctx)
	require.NoError(t, err)
	sup.kill(sup.nextPID)

	path, ok, err := c.Stop(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, path)
	assert.Empty(t, sup.graceful)
	_, err = lock.NewRecordFile(opts.PIDFile).Read()
	assert.ErrorIs(t, err, lock.ErrNoRecord)
}

func TestCorruptLockSelfHeals(t *testing.T) {
	ctx := context.Background()
	opts := testOptions(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(opts.PIDFile), 0o755))
	require.NoError(t, os.WriteFile(opts.PIDFile, []byte("{not json"), 0o644))

	c := NewController(opts, newFakeSupervisor())
	assert.False(t, c.IsRecording(ctx))
	_, err := os.Stat(opts.PIDFile)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestMaxDurationStopsSession(t *testing.T) {
	ctx := context.Background()
	opts := testOptions(t)
	opts.MaxDuration = 5 * time.Second
	sup := newFakeSupervisor()
	c := NewController(opts, sup)

	now := time.Now()
	c.now = func() time.Time { return now }
	_, err := c.Start(ctx)
	require.NoError(t, err)
	pid := sup.nextPID

	c.now = func() time.Time { return now.Add(4 * time.Second) }
	assert.True(t, c.IsRecording(ctx))

	c.now = func() time.Time { return now.Add(6 * time.Second) }
	assert.False(t, c.IsRecording(ctx))
	assert.Equal(t, []int{pid}, sup.graceful)

	_, err = lock.NewRecordFile(opts.PIDFile).Read()
	assert.ErrorIs(t, err, lock.ErrNoRecord)
}

func TestInfo(t *testing.T) {
	ctx := context.Background()
	sup := newFakeSupervisor()
	c := NewController(testOptions(t), sup)

	info, err := c.Info(ctx)
	require.NoError(t, err)
	assert.Nil(t, info)

	now := time.Now().Truncate(time.Second)
	c.now = func() time.Time { return now }
	path, err := c.Start(ctx)
	require.NoError(t, err)

	c.now = func() time.Time { return now.Add(12 * time.Second) }
	info, err = c.Info(ctx)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, path, info.File)
	assert.Equal(t, sup.nextPID, info.PID)
	assert.Equal(t, 12*time.Second, info.Elapsed)
}

func TestStartSpawnFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("spawn error", func(t *testing.T) {
		sup := newFakeSupervisor()
		sup.spawnErr = errors.New("exec: not found")
		c := NewController(testOptions(t), sup)

		_, err := c.Start(ctx)
		assert.ErrorIs(t, err, ErrSpawnFailed)
		assert.False(t, c.IsRecording(ctx))
	})

	t.Run("dies during grace", func(t *testing.T) {
		opts := testOptions(t)
		opts.StartGrace = 5 * time.Millisecond
		sup := newFakeSupervisor()
		sup.dieOnSpawn = true
		c := NewController(opts, sup)

		_, err := c.Start(ctx)
		assert.ErrorIs(t, err, ErrSpawnFailed)
		_, err = lock.NewRecordFile(opts.PIDFile).Read()
		assert.ErrorIs(t, err, lock.ErrNoRecord)
	})
}

func TestFileNamesDoNotCollide(t *testing.T) {
	ctx := context.Background()
	sup := newFakeSupervisor()
	c := NewController(testOptions(t), sup)
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.Local)
	c.now = func() time.Time { return fixed }

	first, err := c.Start(ctx)
	require.NoError(t, err)
	_, _, err = c.Stop(ctx)
	require.NoError(t, err)

	second, err := c.Start(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, "recording_20260101_000000_2.wav", filepath.Base(second))
}

func TestWatchEnforcesMaxDuration(t *testing.T) {
	opts := testOptions(t)
	opts.MaxDuration = time.Second
	sup := newFakeSupervisor()
	c := NewController(opts, sup)

	now := time.Now()
	c.now = func() time.Time { return now }
	_, err := c.Start(context.Background())
	require.NoError(t, err)
	c.now = func() time.Time { return now.Add(time.Hour) }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Watch(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		_, err := lock.NewRecordFile(opts.PIDFile).Read()
		return errors.Is(err, lock.ErrNoRecord)
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

// The remaining tests drive real processes through process.Supervisor.

func shellOptions(t *testing.T, script string) Options {
	opts := testOptions(t)
	opts.Command = []string{"sh", "-c", script, "capture", "{file}"}
	opts.StartGrace = 50 * time.Millisecond
	opts.StopTimeout = 500 * time.Millisecond
	opts.PollInterval = 20 * time.Millisecond
	opts.KillWait = 50 * time.Millisecond
	return opts
}

func TestRealProcessLifecycle(t *testing.T) {
	ctx := context.Background()
	opts := shellOptions(t, `head -c 4096 /dev/zero > "$1"; exec sleep 30`)
	c := NewController(opts, process.NewSupervisor(""))

	path, err := c.Start(ctx)
	require.NoError(t, err)
	assert.True(t, c.IsRecording(ctx))

	_, err = c.Start(ctx)
	assert.ErrorIs(t, err, ErrAlreadyRecording)

	stopped, ok, err := c.Stop(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, path, stopped)
	assert.False(t, c.IsRecording(ctx))
}

func TestRealProcessIgnoringInterruptIsKilled(t *testing.T) {
	ctx := context.Background()
	opts := shellOptions(t, `trap '' INT; head -c 4096 /dev/zero > "$1"; exec sleep 30`)
	sup := process.NewSupervisor("")
	c := NewController(opts, sup)

	_, err := c.Start(ctx)
	require.NoError(t, err)
	info, err := c.Info(ctx)
	require.NoError(t, err)
	require.NotNil(t, info)

	_, ok, err := c.Stop(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Eventually(t, func() bool { return !sup.IsAlive(info.PID) }, 2*time.Second, 20*time.Millisecond)
}

func TestRealProcessExitingImmediately(t *testing.T) {
	opts := shellOptions(t, `exit 3`)
	c := NewController(opts, process.NewSupervisor(""))

	_, err := c.Start(context.Background())
	assert.ErrorIs(t, err, ErrSpawnFailed)
}
