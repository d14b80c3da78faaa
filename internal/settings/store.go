// Package settings stores user preferences that override configuration
// defaults for model, language and injection behavior.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultProfile is the profile used by every surface today.
const DefaultProfile = "default"

// ErrUnknownKey is returned by Set for keys that are not preferences.
var ErrUnknownKey = errors.New("unknown preference")

// Preferences holds optional overrides. A nil field falls through to configuration.
type Preferences struct {
	Model           *string `json:"model,omitempty"`
	Language        *string `json:"language,omitempty"`
	Injector        *string `json:"injector,omitempty"`
	AutoInject      *bool   `json:"auto_inject,omitempty"`
	AutoDeleteAudio *bool   `json:"auto_delete_audio,omitempty"`
}

// Keys lists the preference names accepted by Set.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var setters = map[string]func(p *Preferences, v string) error{
	"model":    func(p *Preferences, v string) error { p.Model = optString(v); return nil },
	"language": func(p *Preferences, v string) error { p.Language = optString(v); return nil },
	"injector": func(p *Preferences, v string) error { p.Injector = optString(v); return nil },
	"auto_inject": func(p *Preferences, v string) error {
		b, err := optBool(v)
		p.AutoInject = b
		return err
	},
	"auto_delete_audio": func(p *Preferences, v string) error {
		b, err := optBool(v)
		p.AutoDeleteAudio = b
		return err
	},
}

// An empty value clears the preference.
func optString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func optBool(v string) (*bool, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, fmt.Errorf("invalid boolean %q", v)
	}
	return &b, nil
}

type Store struct {
	db      *sql.DB
	profile string
	now     func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, profile: DefaultProfile, now: time.Now}
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Get returns the stored preferences; all fields are nil when nothing was saved.
func (s *Store) Get(ctx context.Context) (Preferences, error) {
	return s.get(ctx, s.db)
}

func (s *Store) get(ctx context.Context, q querier) (Preferences, error) {
	var (
		p                           Preferences
		model, language, injector   sql.NullString
		autoInject, autoDeleteAudio sql.NullBool
	)
	err := q.QueryRowContext(ctx, `
SELECT model, language, injector, auto_inject, auto_delete_audio
FROM preferences WHERE profile = ?;`, s.profile).Scan(&model, &language, &injector, &autoInject, &autoDeleteAudio)
	if errors.Is(err, sql.ErrNoRows) {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("read preferences: %w", err)
	}
	if model.Valid {
		p.Model = &model.String
	}
	if language.Valid {
		p.Language = &language.String
	}
	if injector.Valid {
		p.Injector = &injector.String
	}
	if autoInject.Valid {
		p.AutoInject = &autoInject.Bool
	}
	if autoDeleteAudio.Valid {
		p.AutoDeleteAudio = &autoDeleteAudio.Bool
	}
	return p, nil
}

// Save replaces the stored preferences with p.
func (s *Store) Save(ctx context.Context, p Preferences) error {
	return s.save(ctx, s.db, p)
}

func (s *Store) save(ctx context.Context, q querier, p Preferences) error {
	_, err := q.ExecContext(ctx, `
INSERT INTO preferences(profile, model, language, injector, auto_inject, auto_delete_audio, updated_at)
VALUES(?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(profile) DO UPDATE SET
  model = excluded.model,
  language = excluded.language,
  injector = excluded.injector,
  auto_inject = excluded.auto_inject,
  auto_delete_audio = excluded.auto_delete_audio,
  updated_at = excluded.updated_at;
`, s.profile, nullString(p.Model), nullString(p.Language), nullString(p.Injector),
		nullBool(p.AutoInject), nullBool(p.AutoDeleteAudio), s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}

// Set updates a single preference by name. An empty value clears it.
func (s *Store) Set(ctx context.Context, key, value string) error {
	set, ok := setters[key]
	if !ok {
		return fmt.Errorf("%w: %s (valid: %s)", ErrUnknownKey, key, strings.Join(Keys(), ", "))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	p, err := s.get(ctx, tx)
	if err != nil {
		return err
	}
	if err := set(&p, value); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if err := s.save(ctx, tx, p); err != nil {
		return err
	}
	return tx.Commit()
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullBool(v *bool) sql.NullBool {
	if v == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *v, Valid: true}
}
