package main

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/dictation/internal/config"
	"github.com/mattjoyce/dictation/internal/doctor"
)

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}

	action, actionArgs := args[0], args[1:]
	switch action {
	case "show":
		if hasHelpFlag(actionArgs) {
			printConfigShowHelp()
			return 0
		}
		return runConfigShow(actionArgs)
	case "get":
		if hasHelpFlag(actionArgs) {
			printConfigGetHelp()
			return 0
		}
		return runConfigGet(actionArgs)
	case "check":
		if hasHelpFlag(actionArgs) {
			printConfigCheckHelp()
			return 0
		}
		return runConfigCheck(actionArgs)
	case "lock":
		if hasHelpFlag(actionArgs) {
			printConfigLockHelp()
			return 0
		}
		return runConfigLock(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

func runConfigShow(args []string) int {
	fs, configPath := newFlagSet("config show")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	positionals, err := parseArgs(fs, args)
	if err != nil {
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}

	var result any = cfg
	if len(positionals) > 0 {
		res, err := cfg.GetPath(positionals[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		result = res
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
	} else {
		data, _ := yaml.Marshal(result)
		fmt.Print(string(data))
	}
	return 0
}

func runConfigGet(args []string) int {
	fs, configPath := newFlagSet("config get")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	positionals, err := parseArgs(fs, args)
	if err != nil {
		return 1
	}
	if len(positionals) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: dictation config get <path> [--json]")
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	val, err := cfg.GetPath(positionals[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(val, "", "  ")
		fmt.Println(string(data))
	} else {
		fmt.Printf("%v\n", val)
	}
	return 0
}

func runConfigCheck(args []string) int {
	fs, configPath := newFlagSet("check")
	format := fs.String("format", "human", "Output format (human, json)")
	jsonOut := fs.Bool("json", false, "Output in JSON")
	strict := fs.Bool("strict", false, "Treat warnings as errors")
	if _, err := parseArgs(fs, args); err != nil {
		return 1
	}
	if *jsonOut {
		*format = "json"
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config load error: %v\n", err)
		return 1
	}

	result := doctor.New(cfg).Validate()

	switch *format {
	case "json":
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "JSON format error: %v\n", err)
			return 1
		}
		fmt.Println(out)
	default:
		if cfg.SourcePath != "" {
			fmt.Printf("Config: %s\n", cfg.SourcePath)
		} else {
			fmt.Println("Config: built-in defaults")
		}
		fmt.Print(doctor.FormatHuman(result))
	}

	if !result.Valid || (*strict && len(result.Warnings) > 0) {
		return 1
	}
	return 0
}

func runConfigLock(args []string) int {
	fs, configPath := newFlagSet("lock")
	dryRun := fs.Bool("dry-run", false, "Show the hash without writing .checksums")
	var verbose bool
	fs.BoolVar(&verbose, "verbose", false, "Verbose output")
	fs.BoolVar(&verbose, "v", false, "Verbose output")
	if _, err := parseArgs(fs, args); err != nil {
		return 1
	}

	target := *configPath
	if target == "" {
		discovered, err := config.DiscoverConfigPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
			return 1
		}
		target = discovered
	}

	report, err := config.Lock(target, *dryRun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Lock failed: %v\n", err)
		return 1
	}

	if verbose || *dryRun {
		fmt.Printf("%s  %s\n", report.Hash, report.ConfigPath)
	}
	if report.Written {
		fmt.Printf("Wrote %s\n", report.ChecksumPath)
	} else {
		fmt.Println("Dry run: no changes written")
	}
	return 0
}

func printConfigNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: dictation config <action> [flags]")
	fmt.Fprintln(w, "Actions: show, get, check, lock")
}

func printConfigShowHelp() {
	fmt.Println("Usage: dictation config show [path] [--json] [--config PATH]")
	fmt.Println("Print the effective configuration, or the subtree at a dotted path.")
}

func printConfigGetHelp() {
	fmt.Println("Usage: dictation config get <path> [--json] [--config PATH]")
	fmt.Println("Print one value, e.g. whisper.model or recording.command.")
}

func printConfigCheckHelp() {
	fmt.Println("Usage: dictation config check [--json] [--strict] [--config PATH]")
	fmt.Println("Validate the configuration against this machine: binaries, models, and storage.")
}

func printConfigLockHelp() {
	fmt.Println("Usage: dictation config lock [--dry-run] [-v] [--config PATH]")
	fmt.Println("Record the BLAKE3 hash of the config file in .checksums; later loads verify it.")
}
