package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/mattjoyce/dictation/internal/config"
	"github.com/mattjoyce/dictation/internal/dictation"
	"github.com/mattjoyce/dictation/internal/events"
	"github.com/mattjoyce/dictation/internal/history"
	"github.com/mattjoyce/dictation/internal/inject"
	"github.com/mattjoyce/dictation/internal/log"
	"github.com/mattjoyce/dictation/internal/metrics"
	"github.com/mattjoyce/dictation/internal/process"
	"github.com/mattjoyce/dictation/internal/recorder"
	"github.com/mattjoyce/dictation/internal/settings"
	"github.com/mattjoyce/dictation/internal/storage"
	"github.com/mattjoyce/dictation/internal/whisper"
)

// app is the wired object graph shared by every command.
type app struct {
	cfg      *config.Config
	db       *sql.DB
	recorder *recorder.Controller
	models   *whisper.Models
	history  *history.Store
	settings *settings.Store
	metrics  *metrics.Metrics
	events   *events.Hub
	service  *dictation.Service
}

func loadConfig(configPath string) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, err
	}
	log.SetupWithFormat(cfg.Service.LogLevel, cfg.Service.LogFormat, os.Stderr)
	return cfg, nil
}

func openApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger := log.WithComponent("main")

	db, err := storage.OpenSQLite(ctx, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.Storage.Path, err)
	}

	a := &app{
		cfg:      cfg,
		db:       db,
		recorder: recorder.NewController(recorder.OptionsFromConfig(cfg.Recording), process.NewSupervisor(cfg.Recording.LogFile)),
		models:   whisper.NewModels(cfg.Whisper.ModelsPath, cfg.Whisper.DownloadURL),
		history:  history.NewStore(db),
		settings: settings.NewStore(db),
		metrics:  metrics.New(),
		events:   events.NewHub(64),
	}

	var injector dictation.TextInjector
	if inj, err := inject.New(cfg.Injection.Backend, cfg.Injection.PasteDelay); err != nil {
		logger.Warn("text injection disabled", "backend", cfg.Injection.Backend, "error", err)
	} else {
		injector = inj
	}

	a.service = dictation.NewService(dictation.Deps{
		Recorder:    a.recorder,
		Engine:      whisper.NewEngine(cfg.Whisper, a.models),
		Injector:    injector,
		History:     a.history,
		Preferences: a.settings,
		Models:      a.models,
		Metrics:     a.metrics,
		Events:      a.events,
		NewInjector: func(backend string) (dictation.TextInjector, error) {
			inj, err := inject.New(backend, cfg.Injection.PasteDelay)
			if err != nil {
				return nil, err
			}
			return inj, nil
		},
	}, dictation.DefaultsFromConfig(cfg))

	return a, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// withApp opens the app for one command and closes it afterwards.
func withApp(configPath string, fn func(ctx context.Context, a *app) int) int {
	ctx := context.Background()
	a, err := openApp(ctx, configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()
	return fn(ctx, a)
}
