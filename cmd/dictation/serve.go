package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mattjoyce/dictation/internal/api"
	"github.com/mattjoyce/dictation/internal/lock"
	"github.com/mattjoyce/dictation/internal/log"
	"github.com/mattjoyce/dictation/internal/mcp"
	"github.com/mattjoyce/dictation/internal/tools"
)

func runServeNoun(args []string) int {
	if len(args) < 1 {
		printServeNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printServeNounHelp(os.Stdout)
		return 0
	}

	action, actionArgs := args[0], args[1:]
	switch action {
	case "mcp":
		if hasHelpFlag(actionArgs) {
			printServeMCPHelp()
			return 0
		}
		return runServeMCP(actionArgs)
	case "http":
		if hasHelpFlag(actionArgs) {
			printServeHTTPHelp()
			return 0
		}
		return runServeHTTP(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown serve action: %s\n", action)
		return 1
	}
}

// runServeMCP answers tool protocol requests on stdin/stdout until stdin closes.
func runServeMCP(args []string) int {
	fs, configPath := newFlagSet("serve mcp")
	if _, err := parseArgs(fs, args); err != nil {
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()
	logger := log.WithComponent("main")

	registry, err := tools.Registry(a.service)
	if err != nil {
		logger.Error("failed to build tool registry", "error", err)
		return 1
	}

	server := mcp.NewServer(registry, mcp.Info{
		Name:            a.cfg.MCP.ServerName,
		Version:         a.cfg.MCP.ServerVersion,
		ProtocolVersion: a.cfg.MCP.ProtocolVersion,
	}, a.metrics)

	logger.Info("tool server starting", "version", version, "tools", len(registry.Tools()))
	if err := server.Serve(ctx, os.Stdin, os.Stdout); err != nil {
		logger.Error("tool server failed", "error", err)
		return 1
	}
	logger.Info("tool server stopped")
	return 0
}

// runServeHTTP runs the HTTP API and the max-duration watchdog until signalled.
func runServeHTTP(args []string) int {
	fs, configPath := newFlagSet("serve http")
	listen := fs.String("listen", "", "Listen address (default: api.listen)")
	if _, err := parseArgs(fs, args); err != nil {
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()
	logger := log.WithComponent("main")
	logger.Info("dictation starting", "version", version, "config", a.cfg.SourcePath)

	pidLockPath := filepath.Join(a.cfg.Service.DataDir, "http.lock")
	pidLock, err := lock.AcquirePIDLock(pidLockPath)
	if err != nil {
		logger.Error("failed to acquire PID lock (another server may be running)", "path", pidLockPath, "error", err)
		return 1
	}
	defer pidLock.Release()

	apiConfig := api.Config{
		Listen:         a.cfg.API.Listen,
		APIKey:         a.cfg.API.APIKey,
		AllowedOrigins: a.cfg.API.AllowedOrigins,
	}
	if *listen != "" {
		apiConfig.Listen = *listen
	}
	server := api.New(apiConfig, a.service, a.metrics, a.events, log.WithComponent("api"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Start(gctx); err != nil {
			return fmt.Errorf("api: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		a.recorder.Watch(gctx, time.Second)
		return nil
	})

	logger.Info("dictation running (press Ctrl+C to stop)", "listen", apiConfig.Listen)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("component failed", "error", err)
		return 1
	}
	logger.Info("dictation stopped")
	return 0
}

func printServeNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: dictation serve <action>")
	fmt.Fprintln(w, "Actions: mcp, http")
}

func printServeMCPHelp() {
	fmt.Println("Usage: dictation serve mcp [--config PATH]")
	fmt.Println("Serve the dictation tools as newline-delimited JSON-RPC 2.0 on stdin/stdout.")
}

func printServeHTTPHelp() {
	fmt.Println("Usage: dictation serve http [--listen ADDR] [--config PATH]")
	fmt.Println("Serve the HTTP API in the foreground.")
}
