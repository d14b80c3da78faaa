// Package history persists completed transcriptions.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattjoyce/dictation/internal/transcript"
)

// ErrNotFound is returned by Get for unknown ids.
var ErrNotFound = errors.New("transcription not found")

// DefaultListLimit bounds List when the caller passes a non-positive limit.
const DefaultListLimit = 20

// Entry is one stored transcription.
type Entry struct {
	ID string `json:"id"`
	transcript.Result
	Injected  bool      `json:"injected"`
	CreatedAt time.Time `json:"created_at"`
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Save appends res and returns the new id.
func (s *Store) Save(ctx context.Context, res transcript.Result) (string, error) {
	segments := res.Segments
	if segments == nil {
		segments = []transcript.Segment{}
	}
	segJSON, err := json.Marshal(segments)
	if err != nil {
		return "", fmt.Errorf("marshal segments: %w", err)
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
INSERT INTO transcriptions(id, text, audio_file, model, language, duration_ms, processing_ms, segments, injected, created_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, 0, ?);
`, id, res.Text, res.AudioFile, res.Model, res.Language, res.DurationMs, res.ProcessingMs,
		string(segJSON), s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("insert transcription: %w", err)
	}
	return id, nil
}

// MarkInjected records that the text of id was delivered to the desktop.
func (s *Store) MarkInjected(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE transcriptions SET injected = 1 WHERE id = ?;", id)
	if err != nil {
		return fmt.Errorf("mark injected: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns the entry with id.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, text, audio_file, model, language, duration_ms, processing_ms, segments, injected, created_at
FROM transcriptions WHERE id = ?;`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// List returns up to limit entries, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, text, audio_file, model, language, duration_ms, processing_ms, segments, injected, created_at
FROM transcriptions ORDER BY created_at DESC, rowid DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, fmt.Errorf("list transcriptions: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transcriptions: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (*Entry, error) {
	var (
		e          Entry
		audioFile  sql.NullString
		durationMs sql.NullInt64
		segJSON    string
		injected   int
		createdAt  string
	)
	err := sc.Scan(&e.ID, &e.Text, &audioFile, &e.Model, &e.Language, &durationMs,
		&e.ProcessingMs, &segJSON, &injected, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan transcription: %w", err)
	}
	e.AudioFile = audioFile.String
	e.DurationMs = durationMs.Int64
	e.Injected = injected != 0
	if err := json.Unmarshal([]byte(segJSON), &e.Segments); err != nil {
		return nil, fmt.Errorf("decode segments for %s: %w", e.ID, err)
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at for %s: %w", e.ID, err)
	}
	return &e, nil
}
