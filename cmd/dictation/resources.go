package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/schollz/progressbar/v3"

	"github.com/mattjoyce/dictation/internal/history"
	"github.com/mattjoyce/dictation/internal/settings"
	"github.com/mattjoyce/dictation/internal/whisper"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	activeStyle = cellStyle.Foreground(lipgloss.Color("10"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers(headers...)
}

// --- MODEL ---

func runModelNoun(args []string) int {
	if len(args) < 1 {
		printModelNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printModelNounHelp(os.Stdout)
		return 0
	}

	action, actionArgs := args[0], args[1:]
	switch action {
	case "list":
		return runModelList(actionArgs)
	case "download":
		return runModelDownload(actionArgs)
	case "delete":
		return runModelDelete(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown model action: %s\n", action)
		return 1
	}
}

func runModelList(args []string) int {
	fs, configPath := newFlagSet("model list")
	jsonOut := fs.Bool("json", false, "Output in JSON")
	if _, err := parseArgs(fs, args); err != nil {
		return 1
	}

	return withApp(*configPath, func(ctx context.Context, a *app) int {
		active := a.service.Effective(ctx).Model
		models := a.service.ListModels()
		if *jsonOut {
			return printJSON(struct {
				Active string              `json:"active"`
				Models []whisper.ModelInfo `json:"models"`
			}{active, models})
		}

		activeRow := -1
		t := newTable("MODEL", "STATUS", "SIZE", "ACTIVE")
		for i, m := range models {
			status, size, mark := "not downloaded", "", ""
			if m.Installed {
				status = "installed"
				size = fmt.Sprintf("%d MB", m.Size/(1024*1024))
			}
			if m.Name == active {
				mark = "*"
				activeRow = i
			}
			t.Row(m.Name, status, size, mark)
		}
		t.StyleFunc(func(row, _ int) lipgloss.Style {
			switch row {
			case table.HeaderRow:
				return headerStyle
			case activeRow:
				return activeStyle
			}
			return cellStyle
		})
		fmt.Println(t)
		return 0
	})
}

func runModelDownload(args []string) int {
	fs, configPath := newFlagSet("model download")
	quiet := fs.Bool("quiet", false, "Hide the progress bar")
	positionals, err := parseArgs(fs, args)
	if err != nil {
		return 1
	}
	if len(positionals) != 1 {
		fmt.Fprintf(os.Stderr, "Usage: dictation model download <name>\nModels: %s\n", strings.Join(whisper.Catalogue, ", "))
		return 1
	}
	name := positionals[0]

	return withApp(*configPath, func(ctx context.Context, a *app) int {
		var progress whisper.ProgressFunc
		var bar *progressbar.ProgressBar
		if !*quiet {
			progress = func(written, total int64) {
				if bar == nil {
					bar = progressbar.NewOptions64(total,
						progressbar.OptionSetWriter(os.Stderr),
						progressbar.OptionSetDescription(fmt.Sprintf("downloading %s", name)),
						progressbar.OptionShowBytes(true),
						progressbar.OptionClearOnFinish(),
					)
				}
				_ = bar.Set64(written)
			}
		}

		res, err := a.service.DownloadModel(ctx, name, progress)
		if bar != nil {
			_ = bar.Finish()
		}
		if errors.Is(err, whisper.ErrUnknownModel) {
			fmt.Fprintf(os.Stderr, "Unknown model %q. Available: %s\n", name, strings.Join(whisper.Catalogue, ", "))
			return 1
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		if res.Existed {
			fmt.Printf("Model '%s' is already downloaded.\n", name)
			return 0
		}
		fmt.Printf("Model '%s' downloaded to: %s\n", name, res.Path)
		return 0
	})
}

func runModelDelete(args []string) int {
	fs, configPath := newFlagSet("model delete")
	positionals, err := parseArgs(fs, args)
	if err != nil {
		return 1
	}
	if len(positionals) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: dictation model delete <name>")
		return 1
	}
	name := positionals[0]

	return withApp(*configPath, func(ctx context.Context, a *app) int {
		deleted, err := a.service.DeleteModel(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		if !deleted {
			fmt.Fprintf(os.Stderr, "Model '%s' is not installed.\n", name)
			return 1
		}
		fmt.Printf("Model '%s' deleted.\n", name)
		return 0
	})
}

// --- HISTORY ---

func runHistoryNoun(args []string) int {
	if len(args) < 1 {
		printHistoryNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printHistoryNounHelp(os.Stdout)
		return 0
	}

	action, actionArgs := args[0], args[1:]
	switch action {
	case "list":
		return runHistoryList(actionArgs)
	case "show":
		return runHistoryShow(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown history action: %s\n", action)
		return 1
	}
}

func runHistoryList(args []string) int {
	fs, configPath := newFlagSet("history list")
	limit := fs.Int("limit", history.DefaultListLimit, "Number of entries to show")
	jsonOut := fs.Bool("json", false, "Output in JSON")
	if _, err := parseArgs(fs, args); err != nil {
		return 1
	}
	if *limit < 1 {
		fmt.Fprintln(os.Stderr, "--limit must be positive")
		return 1
	}

	return withApp(*configPath, func(ctx context.Context, a *app) int {
		entries, err := a.service.History(ctx, *limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		if *jsonOut {
			if entries == nil {
				entries = []history.Entry{}
			}
			return printJSON(entries)
		}
		if len(entries) == 0 {
			fmt.Println("No transcriptions yet.")
			return 0
		}

		t := newTable("ID", "CREATED", "MODEL", "INJECTED", "TEXT")
		for _, e := range entries {
			injected := ""
			if e.Injected {
				injected = "yes"
			}
			t.Row(shortID(e.ID), e.CreatedAt.Local().Format(time.DateTime), e.Model, injected, truncate(e.Text, 60))
		}
		t.StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
		fmt.Println(t)
		return 0
	})
}

func runHistoryShow(args []string) int {
	fs, configPath := newFlagSet("history show")
	jsonOut := fs.Bool("json", false, "Output in JSON")
	reinject := fs.Bool("inject", false, "Type the stored text into the focused window again")
	positionals, err := parseArgs(fs, args)
	if err != nil {
		return 1
	}
	if len(positionals) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: dictation history show <id> [--inject] [--json]")
		return 1
	}
	id := positionals[0]

	return withApp(*configPath, func(ctx context.Context, a *app) int {
		e, err := a.service.HistoryEntry(ctx, id)
		if err != nil && errors.Is(err, history.ErrNotFound) && len(id) < 36 {
			e, err = findByPrefix(ctx, a, id)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		if *reinject {
			ok, err := a.service.InjectText(ctx, e.Text)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Inject failed: %v\n", err)
				return 1
			}
			if !ok {
				fmt.Fprintln(os.Stderr, "Nothing to inject.")
			}
		}
		if *jsonOut {
			return printJSON(e)
		}
		fmt.Printf("ID:         %s\n", e.ID)
		fmt.Printf("Created:    %s\n", e.CreatedAt.Local().Format(time.RFC3339))
		fmt.Printf("Model:      %s\n", e.Model)
		fmt.Printf("Language:   %s\n", e.Language)
		fmt.Printf("Duration:   %.1fs\n", float64(e.DurationMs)/1000)
		fmt.Printf("Processing: %.1fs\n", e.Processing().Seconds())
		fmt.Printf("Injected:   %t\n", e.Injected)
		if e.AudioFile != "" {
			fmt.Printf("Audio:      %s\n", e.AudioFile)
		}
		fmt.Printf("\n%s\n", e.Text)
		return 0
	})
}

// findByPrefix resolves the short ids printed by history list.
func findByPrefix(ctx context.Context, a *app, prefix string) (*history.Entry, error) {
	entries, err := a.service.History(ctx, 500)
	if err != nil {
		return nil, err
	}
	var match *history.Entry
	for i := range entries {
		if strings.HasPrefix(entries[i].ID, prefix) {
			if match != nil {
				return nil, fmt.Errorf("id prefix %q is ambiguous", prefix)
			}
			match = &entries[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", history.ErrNotFound, prefix)
	}
	return match, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// --- PREFS ---

func runPrefsNoun(args []string) int {
	if len(args) < 1 {
		printPrefsNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printPrefsNounHelp(os.Stdout)
		return 0
	}

	action, actionArgs := args[0], args[1:]
	switch action {
	case "show":
		return runPrefsShow(actionArgs)
	case "set":
		return runPrefsSet(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown prefs action: %s\n", action)
		return 1
	}
}

func runPrefsShow(args []string) int {
	fs, configPath := newFlagSet("prefs show")
	jsonOut := fs.Bool("json", false, "Output in JSON")
	if _, err := parseArgs(fs, args); err != nil {
		return 1
	}

	return withApp(*configPath, func(ctx context.Context, a *app) int {
		stored, err := a.settings.Get(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		effective := a.service.Effective(ctx)
		if *jsonOut {
			return printJSON(struct {
				Stored    settings.Preferences `json:"stored"`
				Effective any                  `json:"effective"`
			}{stored, effective})
		}

		source := func(set bool) string {
			if set {
				return "preference"
			}
			return "config"
		}
		t := newTable("KEY", "VALUE", "SOURCE")
		t.Row("model", effective.Model, source(stored.Model != nil))
		t.Row("language", effective.Language, source(stored.Language != nil))
		t.Row("injector", effective.Injector, source(stored.Injector != nil))
		t.Row("auto_inject", strconv.FormatBool(effective.AutoInject), source(stored.AutoInject != nil))
		t.Row("auto_delete_audio", strconv.FormatBool(effective.AutoDeleteAudio), source(stored.AutoDeleteAudio != nil))
		t.StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
		fmt.Println(t)
		return 0
	})
}

func runPrefsSet(args []string) int {
	fs, configPath := newFlagSet("prefs set")
	positionals, err := parseArgs(fs, args)
	if err != nil {
		return 1
	}
	if len(positionals) == 0 {
		fmt.Fprintf(os.Stderr, "Usage: dictation prefs set <key>=<value>...\nKeys: %s\nAn empty value clears the preference.\n",
			strings.Join(settings.Keys(), ", "))
		return 1
	}

	return withApp(*configPath, func(ctx context.Context, a *app) int {
		for _, kv := range positionals {
			key, value, ok := strings.Cut(kv, "=")
			if !ok {
				fmt.Fprintf(os.Stderr, "Invalid assignment %q (expected key=value)\n", kv)
				return 1
			}
			if err := a.settings.Set(ctx, key, value); err != nil {
				if errors.Is(err, settings.ErrUnknownKey) {
					fmt.Fprintf(os.Stderr, "Unknown preference %q. Keys: %s\n", key, strings.Join(settings.Keys(), ", "))
					return 1
				}
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				return 1
			}
			if value == "" {
				fmt.Printf("Cleared %s\n", key)
			} else {
				fmt.Printf("Set %s = %s\n", key, value)
			}
		}
		return 0
	})
}

func printModelNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: dictation model <action>")
	fmt.Fprintln(w, "Actions: list, download <name>, delete <name>")
}

func printHistoryNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: dictation history <action>")
	fmt.Fprintln(w, "Actions: list [--limit N], show <id> [--inject]")
}

func printPrefsNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: dictation prefs <action>")
	fmt.Fprintln(w, "Actions: show, set <key>=<value>...")
}
