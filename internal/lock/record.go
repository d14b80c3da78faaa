package lock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

var (
	// ErrNoRecord means no recording session is registered.
	ErrNoRecord = errors.New("no lock record")
	// ErrRecordExists is returned by Create when another writer got there first.
	ErrRecordExists = errors.New("lock record already exists")
	// ErrCorruptRecord means the record exists but cannot be decoded.
	ErrCorruptRecord = errors.New("corrupt lock record")
)

const guardRetry = 10 * time.Millisecond

// Record is the durable description of the active capture process.
// Its presence on disk is the only shared state between invocations.
type Record struct {
	PID       int    `json:"pid"`
	File      string `json:"file"`
	StartedAt int64  `json:"started_at"`
}

// Started returns StartedAt as a time.
func (r Record) Started() time.Time {
	return time.Unix(r.StartedAt, 0)
}

// RecordFile manages the lock record at a fixed path.
type RecordFile struct {
	path string
	mu   sync.Mutex
}

// NewRecordFile returns a manager for the record stored at path.
func NewRecordFile(path string) *RecordFile {
	return &RecordFile{path: path}
}

// Path returns the record location.
func (f *RecordFile) Path() string { return f.path }

// WithGuard runs fn while holding the in-process mutex and an advisory flock on
// <path>.guard, so a check-then-create sequence is atomic across processes.
func (f *RecordFile) WithGuard(ctx context.Context, fn func() error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	guard := flock.New(f.path + ".guard")
	ok, err := guard.TryLockContext(ctx, guardRetry)
	if err != nil {
		return fmt.Errorf("acquire guard: %w", err)
	}
	if !ok {
		return fmt.Errorf("acquire guard: %w", context.Cause(ctx))
	}
	defer func() { _ = guard.Unlock() }()

	return fn()
}

// Create writes rec with an exclusive create. If a record already exists the
// call fails with ErrRecordExists and the existing record is left untouched.
func (f *RecordFile) Create(rec Record) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return ErrRecordExists
		}
		return fmt.Errorf("open lock record: %w", err)
	}

	if err := json.NewEncoder(file).Encode(rec); err != nil {
		_ = file.Close()
		_ = os.Remove(f.path)
		return fmt.Errorf("write lock record: %w", err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		_ = os.Remove(f.path)
		return fmt.Errorf("sync lock record: %w", err)
	}
	return file.Close()
}

// Read loads the record. A missing file yields ErrNoRecord; undecodable
// content or a non-positive pid yields an error wrapping ErrCorruptRecord.
func (f *RecordFile) Read() (Record, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, ErrNoRecord
		}
		return Record{}, fmt.Errorf("read lock record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if rec.PID <= 0 {
		return Record{}, fmt.Errorf("%w: invalid pid %d", ErrCorruptRecord, rec.PID)
	}
	return rec, nil
}

// Remove deletes the record. Removing an absent record is not an error.
func (f *RecordFile) Remove() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove lock record: %w", err)
	}
	return nil
}
