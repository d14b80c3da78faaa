// Package inject types transcribed text into the focused desktop window.
package inject

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/mattjoyce/dictation/internal/log"
)

// ErrUnknownBackend is returned for backend names other than wtype, wl-paste and ydotool.
var ErrUnknownBackend = errors.New("unknown injector")

// Backend names.
const (
	Wtype   = "wtype"
	WlPaste = "wl-paste"
	Ydotool = "ydotool"
)

var requiredBinaries = map[string][]string{
	Wtype:   {"wtype"},
	WlPaste: {"wl-copy", "xdotool"},
	Ydotool: {"ydotool"},
}

// Backends lists the supported backend names.
func Backends() []string {
	return []string{Wtype, WlPaste, Ydotool}
}

// RequiredBinaries returns the executables backend needs on PATH.
func RequiredBinaries(backend string) []string {
	return requiredBinaries[backend]
}

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Injector delivers text through one backend.
type Injector struct {
	backend    string
	pasteDelay time.Duration
	run        runFunc
	lookPath   func(string) (string, error)
	logger     *slog.Logger
}

// New returns an Injector for backend. pasteDelay separates clipboard copy
// from the paste keystroke for the wl-paste backend.
func New(backend string, pasteDelay time.Duration) (*Injector, error) {
	if _, ok := requiredBinaries[backend]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, backend)
	}
	return &Injector{
		backend:    backend,
		pasteDelay: pasteDelay,
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
		lookPath: exec.LookPath,
		logger:   log.WithComponent("inject").With("backend", backend),
	}, nil
}

// Backend returns the configured backend name.
func (i *Injector) Backend() string { return i.backend }

// Available reports an error naming any backend binary missing from PATH.
func (i *Injector) Available() error {
	var missing []string
	for _, bin := range requiredBinaries[i.backend] {
		if _, err := i.lookPath(bin); err != nil {
			missing = append(missing, bin)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s backend needs %s on PATH", i.backend, strings.Join(missing, ", "))
	}
	return nil
}

// Inject types text into the focused window. Blank text is not injected and
// reports false without error.
func (i *Injector) Inject(ctx context.Context, text string) (bool, error) {
	if strings.TrimSpace(text) == "" {
		return false, nil
	}

	var err error
	switch i.backend {
	case Wtype:
		err = i.exec(ctx, "wtype", "--", text)
	case WlPaste:
		err = i.exec(ctx, "wl-copy", "--", text)
		if err == nil {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(i.pasteDelay):
			}
			err = i.exec(ctx, "xdotool", "key", "ctrl+v")
		}
	case Ydotool:
		err = i.exec(ctx, "ydotool", "type", "--", text)
	default:
		return false, fmt.Errorf("%w: %s", ErrUnknownBackend, i.backend)
	}
	if err != nil {
		i.logger.Warn("text injection failed", "error", err)
		return false, err
	}

	i.logger.Debug("text injected", "chars", len(text))
	return true, nil
}

func (i *Injector) exec(ctx context.Context, name string, args ...string) error {
	out, err := i.run(ctx, name, args...)
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			return fmt.Errorf("%s: %w", name, err)
		}
		return fmt.Errorf("%s: %w: %s", name, err, msg)
	}
	return nil
}
